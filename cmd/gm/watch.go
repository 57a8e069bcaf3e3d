package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/condmatlab/gateman/internal/events"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch [topic...]",
	Short:   "Stream live events from the server",
	GroupID: "runs",
	Long: `Stream live events.

Topics support NATS-style wildcards: * matches one segment, > matches the
rest. With no arguments every gateman event is streamed.

When a NATS URL is configured (GATEMAN_NATS_URL or the active remote's
nats_url) events are consumed from the bus directly; otherwise they are
streamed from the server over SSE.

Examples:
  gm watch
  gm watch gateman.run.>
  gm watch gateman.gate.set`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := args
		if len(topics) == 0 {
			topics = []string{"gateman.>"}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		natsURL := os.Getenv("GATEMAN_NATS_URL")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL != "" {
			return watchNATS(ctx, natsURL, topics, os.Stdout)
		}

		ch, err := gmClient.StreamEvents(ctx, topics)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for ev := range ch {
			printStreamEvent(os.Stdout, ev.ID, ev.Topic, ev.Data)
		}
		return nil
	},
}

// watchNATS subscribes to each topic pattern on the bus and prints events
// until the context is cancelled.
func watchNATS(ctx context.Context, natsURL string, topics []string, out io.Writer) error {
	sub, err := events.NewNATSSubscriber(natsURL)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	merged := make(chan events.Message, 64)
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()

		go func() {
			for msg := range ch {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-merged:
			printStreamEvent(out, "", msg.Topic, msg.Data)
		}
	}
}

// printStreamEvent prints one event, as a JSON line with --json. id is the
// SSE sequence number; NATS deliveries have none.
func printStreamEvent(out io.Writer, id, topic string, data []byte) {
	if jsonOutput {
		entry := map[string]any{
			"topic": topic,
			"data":  json.RawMessage(data),
		}
		if id != "" {
			entry["id"] = id
		}
		line, err := json.Marshal(entry)
		if err != nil {
			return
		}
		fmt.Fprintln(out, string(line))
		return
	}
	fmt.Fprintf(out, "%s  %-24s %s\n", time.Now().Format("15:04:05"), topic, data)
}

package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/condmatlab/gateman/internal/events"
	natsserver "github.com/nats-io/nats-server/v2/server"
)

// syncWriter serializes writes so watchNATS output can be read while the
// watcher is still running.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestWatchNATSPrintsEvents(t *testing.T) {
	url := startTestNATS(t)

	pub, err := events.NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncWriter{}
	done := make(chan error, 1)
	go func() {
		done <- watchNATS(ctx, url, []string{"gateman.run.>", "gateman.gate.set"}, out)
	}()

	// Give the subscriptions a moment to register, then publish one
	// matching event per pattern and one that matches neither.
	time.Sleep(100 * time.Millisecond)
	publish := func(topic, payload string) {
		t.Helper()
		if err := pub.Publish(context.Background(), topic, map[string]string{"v": payload}); err != nil {
			t.Fatalf("publishing to %s: %v", topic, err)
		}
	}
	publish(events.TopicRunStarted, "started")
	publish(events.TopicGateSet, "gate")
	publish("other.subject", "ignored")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := out.String()
		if strings.Contains(s, events.TopicRunStarted) && strings.Contains(s, events.TopicGateSet) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watchNATS: %v", err)
	}

	s := out.String()
	if !strings.Contains(s, events.TopicRunStarted) || !strings.Contains(s, `"started"`) {
		t.Errorf("missing run.started output: %q", s)
	}
	if !strings.Contains(s, events.TopicGateSet) || !strings.Contains(s, `"gate"`) {
		t.Errorf("missing gate.set output: %q", s)
	}
	if strings.Contains(s, "other.subject") {
		t.Errorf("unmatched subject leaked into output: %q", s)
	}
}

func TestWatchNATSConnectError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := watchNATS(ctx, "nats://127.0.0.1:1", []string{"gateman.>"}, &syncWriter{})
	if err == nil {
		t.Fatal("expected connection error")
	}
}

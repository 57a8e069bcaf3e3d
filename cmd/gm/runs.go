package main

import (
	"context"
	"fmt"
	"os"

	"github.com/condmatlab/gateman/internal/client"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:     "runs",
	Short:   "List recorded sweep runs",
	GroupID: "runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetStringSlice("kind")
		state, _ := cmd.Flags().GetStringSlice("state")
		device, _ := cmd.Flags().GetString("device")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		resp, err := gmClient.ListRuns(context.Background(), &client.ListRunsRequest{
			Kind:   kind,
			State:  state,
			Device: device,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp.Runs)
		} else {
			printRunListTable(resp.Runs, resp.Total)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:     "run <id>",
	Short:   "Show one run",
	GroupID: "runs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := gmClient.GetRun(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(run)
		} else {
			printRunTable(run)
		}
		return nil
	},
}

var pointsCmd = &cobra.Command{
	Use:     "points <run-id>",
	Short:   "Show the recorded points of a run",
	GroupID: "runs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := gmClient.GetPoints(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(points)
		} else {
			printPointsTable(points)
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events <run-id>",
	Short:   "Show the audit events of a run",
	GroupID: "runs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := gmClient.GetEvents(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(events)
		} else {
			printEventsTable(events)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().StringSliceP("kind", "k", nil, "filter by kind (1d, 2d, time; repeatable)")
	runsCmd.Flags().StringSliceP("state", "s", nil, "filter by state (running, completed, failed; repeatable)")
	runsCmd.Flags().String("device", "", "filter by device name")
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to return")
	runsCmd.Flags().Int("offset", 0, "offset for pagination")
}

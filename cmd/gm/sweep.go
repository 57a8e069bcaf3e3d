package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/condmatlab/gateman/internal/client"
	"github.com/condmatlab/gateman/internal/events"
	"github.com/condmatlab/gateman/internal/model"
	"github.com/condmatlab/gateman/internal/ui"
	"github.com/spf13/cobra"
)

var sweep1DCmd = &cobra.Command{
	Use:     "sweep1d <gates> <start> <stop> <step>",
	Short:   "Sweep one or more gates together and measure the drain current",
	GroupID: "sweeps",
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, stop, step := parseRange(args[1], args[2], args[3])

		req := &client.Sweep1DRequest{
			Gates:       strings.Split(args[0], ","),
			Start:       start,
			Stop:        stop,
			Step:        step,
			SweepCommon: sweepCommonFlags(cmd),
		}

		run, err := gmClient.Sweep1D(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return reportRun(cmd, run, axisSteps(start, stop, step))
	},
}

var sweep2DCmd = &cobra.Command{
	Use:     "sweep2d <x-gates> <x-start> <x-stop> <x-step> <y-gates> <y-start> <y-stop> <y-step>",
	Short:   "Raster two gate groups and measure the drain current",
	GroupID: "sweeps",
	Args:    cobra.ExactArgs(8),
	RunE: func(cmd *cobra.Command, args []string) error {
		xStart, xStop, xStep := parseRange(args[1], args[2], args[3])
		yStart, yStop, yStep := parseRange(args[5], args[6], args[7])

		req := &client.Sweep2DRequest{
			X: client.SweepAxis{
				Gates: strings.Split(args[0], ","),
				Start: xStart,
				Stop:  xStop,
				Step:  xStep,
			},
			Y: client.SweepAxis{
				Gates: strings.Split(args[4], ","),
				Start: yStart,
				Stop:  yStop,
				Step:  yStep,
			},
			SweepCommon: sweepCommonFlags(cmd),
		}

		run, err := gmClient.Sweep2D(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		total := axisSteps(xStart, xStop, xStep) * axisSteps(yStart, yStop, yStep)
		return reportRun(cmd, run, total)
	},
}

var sweepTimeCmd = &cobra.Command{
	Use:     "sweeptime <total-seconds> <step-seconds>",
	Short:   "Sample the drain current at fixed intervals",
	GroupID: "sweeps",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		total, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid total time %q\n", args[0])
			os.Exit(1)
		}
		step, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid time step %q\n", args[1])
			os.Exit(1)
		}

		req := &client.SweepTimeRequest{
			TotalTime:   total,
			TimeStep:    step,
			SweepCommon: sweepCommonFlags(cmd),
		}

		run, err := gmClient.SweepTime(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		samples := 0
		if step > 0 {
			samples = int(total/step) + 1
		}
		return reportRun(cmd, run, samples)
	},
}

// parseRange parses start/stop/step arguments, exiting on malformed input.
func parseRange(startArg, stopArg, stepArg string) (start, stop, step float64) {
	var err error
	if start, err = strconv.ParseFloat(startArg, 64); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid start %q\n", startArg)
		os.Exit(1)
	}
	if stop, err = strconv.ParseFloat(stopArg, 64); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid stop %q\n", stopArg)
		os.Exit(1)
	}
	if step, err = strconv.ParseFloat(stepArg, 64); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid step %q\n", stepArg)
		os.Exit(1)
	}
	return start, stop, step
}

func axisSteps(start, stop, step float64) int {
	return model.Axis{Start: start, Stop: stop, Step: step}.Steps()
}

// sweepCommonFlags collects the flags shared by every sweep command.
func sweepCommonFlags(cmd *cobra.Command) client.SweepCommon {
	voltageUnit, _ := cmd.Flags().GetString("voltage-unit")
	currentUnit, _ := cmd.Flags().GetString("current-unit")
	initialFlags, _ := cmd.Flags().GetStringArray("initial")
	modelName, _ := cmd.Flags().GetString("model")
	comments, _ := cmd.Flags().GetString("comments")

	common := client.SweepCommon{
		VoltageUnit: voltageUnit,
		CurrentUnit: currentUnit,
		Model:       modelName,
		Comments:    comments,
		Actor:       actor,
	}
	for _, f := range initialFlags {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: invalid initial voltage %q (expected gate=value)\n", f)
			os.Exit(1)
		}
		value, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid initial voltage %q (expected gate=value)\n", f)
			os.Exit(1)
		}
		common.Initial = append(common.Initial, client.InitialVoltage{
			Gate:  k,
			Value: value,
			Unit:  voltageUnit,
		})
	}
	return common
}

// reportRun prints the accepted run and, with --follow, tracks it to completion.
func reportRun(cmd *cobra.Command, run *model.Run, total int) error {
	follow, _ := cmd.Flags().GetBool("follow")
	if !follow {
		if jsonOutput {
			printJSON(run)
		} else {
			fmt.Printf("Started %s\n", run.ID)
		}
		return nil
	}
	return followRun(run.ID, total)
}

// followRun subscribes to the event stream and renders progress until the
// run completes or fails.
func followRun(runID string, total int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ch, err := gmClient.StreamEvents(ctx, []string{"gateman.run.>"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	progress := ui.NewProgressBar()
	progress.Start(total, runID)

	for ev := range ch {
		switch ev.Topic {
		case events.TopicRunPoint:
			var p events.RunPoint
			if err := json.Unmarshal(ev.Data, &p); err != nil || p.RunID != runID {
				continue
			}
			progress.Step()
		case events.TopicRunCompleted:
			var c events.RunCompleted
			if err := json.Unmarshal(ev.Data, &c); err != nil || c.Run == nil || c.Run.ID != runID {
				continue
			}
			progress.Done()
			if jsonOutput {
				printJSON(c.Run)
			} else {
				printRunTable(c.Run)
			}
			return nil
		case events.TopicRunFailed:
			var f events.RunFailed
			if err := json.Unmarshal(ev.Data, &f); err != nil || f.Run == nil || f.Run.ID != runID {
				continue
			}
			progress.Done()
			fmt.Fprintf(os.Stderr, "Error: run %s failed: %s\n", runID, f.Reason)
			os.Exit(1)
		}
	}
	// Stream closed before the run finished (server shutdown or Ctrl-C).
	progress.Done()
	fmt.Fprintf(os.Stderr, "Event stream closed; check `gm run %s` for the outcome\n", runID)
	return nil
}

func addSweepFlags(cmd *cobra.Command) {
	cmd.Flags().String("voltage-unit", "V", "voltage unit for the swept range (V, mV, uV, nV)")
	cmd.Flags().String("current-unit", "uA", "current unit for recorded values (mA, uA, nA, pA)")
	cmd.Flags().StringArrayP("initial", "i", nil, "initial gate voltage before the sweep (gate=value, repeatable)")
	cmd.Flags().StringP("model", "m", "", "ConductorQuantum model to run on the recorded data")
	cmd.Flags().StringP("comments", "c", "", "free-form comment recorded with the run")
	cmd.Flags().BoolP("follow", "f", false, "stream progress until the run finishes")
}

func init() {
	addSweepFlags(sweep1DCmd)
	addSweepFlags(sweep2DCmd)
	addSweepFlags(sweepTimeCmd)
}

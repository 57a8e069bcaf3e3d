package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/condmatlab/gateman/internal/client"
	"github.com/spf13/cobra"
)

var gatesCmd = &cobra.Command{
	Use:     "gates",
	Short:   "List all gates on the device",
	GroupID: "gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		gates, err := gmClient.ListGates(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(gates)
		} else {
			printGateListTable(gates)
		}
		return nil
	},
}

var gateCmd = &cobra.Command{
	Use:     "gate <id>",
	Short:   "Show one gate",
	GroupID: "gates",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := gmClient.GetGate(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(g)
		} else {
			printGateTable(g)
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:     "set <gate> <value>",
	Short:   "Set a gate voltage",
	GroupID: "gates",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid value %q\n", args[1])
			os.Exit(1)
		}
		unit, _ := cmd.Flags().GetString("unit")
		noWait, _ := cmd.Flags().GetBool("no-wait")

		req := &client.SetVoltageRequest{
			Value: value,
			Unit:  unit,
			Actor: actor,
		}
		if noWait {
			wait := false
			req.Wait = &wait
		}

		volts, err := gmClient.SetVoltage(context.Background(), args[0], req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]any{"gate": args[0], "voltage": volts})
		} else {
			fmt.Printf("%s = %g V\n", args[0], volts)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:     "get <gate>",
	Short:   "Read a gate voltage",
	GroupID: "gates",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		volts, err := gmClient.GetVoltage(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]any{"gate": args[0], "voltage": volts})
		} else {
			fmt.Printf("%s = %g V\n", args[0], volts)
		}
		return nil
	},
}

var currentCmd = &cobra.Command{
	Use:     "current <gate>",
	Short:   "Read the current through a measurement input",
	GroupID: "gates",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amplification, _ := cmd.Flags().GetFloat64("amplification")

		value, err := gmClient.ReadCurrent(context.Background(), args[0], amplification)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]any{"gate": args[0], "current": value, "unit": "uA"})
		} else {
			fmt.Printf("%s = %g uA\n", args[0], value)
		}
		return nil
	},
}

var offCmd = &cobra.Command{
	Use:     "off [gate...]",
	Short:   "Ramp gates to zero (all writable gates when none given)",
	GroupID: "gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			gates, err := gmClient.TurnOffAll(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if jsonOutput {
				printJSON(map[string]any{"gates": gates})
			} else {
				fmt.Printf("Turned off %d gates\n", len(gates))
			}
			return nil
		}

		for _, id := range args {
			if err := gmClient.TurnOffGate(context.Background(), id); err != nil {
				fmt.Fprintf(os.Stderr, "Error turning off %s: %v\n", id, err)
				os.Exit(1)
			}
			if !jsonOutput {
				fmt.Printf("Turned off %s\n", id)
			}
		}
		return nil
	},
}

func init() {
	setCmd.Flags().StringP("unit", "u", "V", "voltage unit (V, mV, uV, nV)")
	setCmd.Flags().Bool("no-wait", false, "return without waiting for the voltage to settle")
	currentCmd.Flags().Float64P("amplification", "a", 0, "preamp gain override in V/A (0 = server default)")
}

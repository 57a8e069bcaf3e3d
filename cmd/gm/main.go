package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/condmatlab/gateman/internal/client"
	"github.com/condmatlab/gateman/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool
	actor      string

	gmClient client.GatemanClient
)

func defaultActor() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultServerURL() string {
	if s := os.Getenv("GATEMAN_SERVER"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:7667"
}

func defaultToken() string {
	if t := os.Getenv("GATEMAN_AUTH_TOKEN"); t != "" {
		return t
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "gm <command>",
	Short: "CLI client for the gateman voltage service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			ui.ForceNoColor()
		}
		gmClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if gmClient != nil {
			gmClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "gateman server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name recorded on voltage changes")

	rootCmd.AddGroup(
		&cobra.Group{ID: "gates", Title: "Gates:"},
		&cobra.Group{ID: "sweeps", Title: "Sweeps:"},
		&cobra.Group{ID: "runs", Title: "Runs:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false

	// Gates
	rootCmd.AddCommand(gatesCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(currentCmd)
	rootCmd.AddCommand(offCmd)

	// Sweeps
	rootCmd.AddCommand(sweep1DCmd)
	rootCmd.AddCommand(sweep2DCmd)
	rootCmd.AddCommand(sweepTimeCmd)

	// Runs
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pointsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

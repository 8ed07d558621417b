// simctl controls a running dashboard server from the command line.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simctl",
		Short: "Control energy data simulations",
		Long: `simctl drives the dashboard server's simulation controls.

It can trigger a single simulation, start or stop a continuous sequence,
and inspect the current status and the list of produced files.`,
		SilenceUsage: true,
	}

	server := os.Getenv("SIMCTL_SERVER")
	if server == "" {
		server = defaultServer
	}

	rootCmd.PersistentFlags().String("server", server, "Dashboard server URL (env SIMCTL_SERVER)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().Duration("timeout", 60*time.Second, "Request timeout")

	rootCmd.AddCommand(
		newOnceCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newHistoryCmd(),
	)
	return rootCmd
}

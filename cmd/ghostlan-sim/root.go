package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ghostlan-sim",
	Short: "GhostLAN match simulator and anti-cheat engine",
	Long:  "ghostlan-sim simulates LAN shooter matches with scripted cheaters and runs them through a real-time anti-cheat engine.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(dashboardCmd)
}

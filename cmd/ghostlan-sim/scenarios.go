package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ghostlan-sim/internal/scenario"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List built-in match scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		presets := scenario.BuiltIn()
		for _, n := range scenario.Names() {
			fmt.Fprintf(tw, "%s\t%s\n", n, presets[n].Description)
		}
		return tw.Flush()
	},
}

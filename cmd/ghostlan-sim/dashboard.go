package main

import (
	"github.com/spf13/cobra"

	"ghostlan-sim/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the GreptimeDB tables",
	Long:  "dashboard renders Grafana dashboard JSON querying the GhostLAN event and detection tables. GREPTIMEDB_DATASOURCE_UID selects the datasource.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboard.Render(dashboardOut, dashboard.Tables{})
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}

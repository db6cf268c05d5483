// Package cli wires the observatory commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "observatory",
	Short: "Real-time observability for OpenClaw agent fleets",
	Long: `Observatory ingests structured events from agent gateways, projects
them into live session status, evaluates alert rules, and streams
everything to connected dashboards.

Run the server with 'observatory serve', tail agent transcripts with
'observatory watch', or manage the schema with 'observatory migrate'.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

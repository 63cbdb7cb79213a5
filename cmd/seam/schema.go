package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the derived schema snapshot as JSON",
	Long: `Derive the schema snapshot for the demo user service and print it
to stdout. The output is the exact document a running server publishes
at GET /schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := newDemoRegistry()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reg.Snapshot()); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

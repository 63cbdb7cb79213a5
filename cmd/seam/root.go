package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seam",
	Short: "Schema-derived procedure server",
	Long: `Seam derives JSON schemas from Go handler signatures and serves the
registered procedures over HTTP, validating every payload against the
derived schema on the way in and out.

Quick start:
  seam serve      # Start the demo procedure server
  seam schema     # Print the derived schema snapshot`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "seam.yaml", "config file path")
}

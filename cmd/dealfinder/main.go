// Package main is the entry point for the dealfinder CLI, a terminal
// client for the deal finder gateway: submit a search, follow its
// progress, inspect or cancel the current run.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "dealfinder",
	Short: "Find underpriced Facebook Marketplace listings",
	Long: `dealfinder is a terminal client for the deal finder gateway. It submits
marketplace searches, follows the evaluation stream live, and prints the
scored listings as the producer works through them.

The gateway must already be running; point --gateway at it.`,
}

func init() {
	rootCmd.PersistentFlags().String("gateway", "http://127.0.0.1:8080", "base URL of the deal finder gateway")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the current search run",
	Long: `Cancel stops the run currently in flight on the gateway. Safe to call
when nothing is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Post(strings.TrimRight(gateway, "/")+"/api/search/cancel", "application/json", nil)
		if err != nil {
			return fmt.Errorf("contact gateway: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("gateway returned %d", resp.StatusCode)
		}
		fmt.Println("cancelled")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the gateway's current search state",
	RunE: func(cmd *cobra.Command, args []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(strings.TrimRight(gateway, "/") + "/api/search/state")
		if err != nil {
			return fmt.Errorf("contact gateway: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("gateway returned %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var pretty json.RawMessage = body
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			os.Stdout.Write(body)
			return nil
		}
		os.Stdout.Write(append(out, '\n'))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

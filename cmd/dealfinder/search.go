package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/session"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/streaming"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Submit a search and follow it live",
	Long: `Search submits a marketplace search to the gateway and follows the
snapshot stream until the run finishes. Ctrl-C cancels the run on the
gateway before exiting.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("query", "", "what to search for (required)")
	searchCmd.Flags().String("zip", "", "ZIP code to search around (required)")
	searchCmd.Flags().Int("radius", 0, "search radius in miles (gateway default if omitted)")
	searchCmd.Flags().Float64("threshold", 0, "minimum deal score percent to keep a listing")
	searchCmd.Flags().Int("max-listings", 0, "maximum listings to evaluate")
	searchCmd.Flags().Bool("extract-descriptions", false, "fetch full listing descriptions")
	searchCmd.Flags().Bool("json", false, "print raw snapshots as JSON lines")
	searchCmd.MarkFlagRequired("query")
	searchCmd.MarkFlagRequired("zip")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	gateway, _ := cmd.Flags().GetString("gateway")
	asJSON, _ := cmd.Flags().GetBool("json")

	payload := map[string]interface{}{}
	if v, _ := cmd.Flags().GetString("query"); v != "" {
		payload["query"] = v
	}
	if v, _ := cmd.Flags().GetString("zip"); v != "" {
		payload["zipCode"] = v
	}
	if v, _ := cmd.Flags().GetInt("radius"); v != 0 {
		payload["radius"] = v
	}
	if v, _ := cmd.Flags().GetFloat64("threshold"); v != 0 {
		payload["threshold"] = v
	}
	if v, _ := cmd.Flags().GetInt("max-listings"); v != 0 {
		payload["maxListings"] = v
	}
	if v, _ := cmd.Flags().GetBool("extract-descriptions"); v {
		payload["extractDescriptions"] = true
	}

	body, _ := json.Marshal(payload)
	resp, err := http.Post(strings.TrimRight(gateway, "/")+"/api/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("contact gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway rejected search (%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return followEvents(ctx, gateway, asJSON)
}

// followEvents consumes the gateway's snapshot stream and renders each
// frame until the run reaches a terminal phase.
func followEvents(ctx context.Context, gateway string, asJSON bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(gateway, "/")+"/api/search/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned %d", resp.StatusCode)
	}

	var buf streaming.ChunkBuffer
	chunk := make([]byte, 8*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			for _, line := range buf.Push(chunk[:n], false) {
				terminal, err := renderLine(line, asJSON)
				if err != nil {
					return err
				}
				if terminal {
					return nil
				}
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				// Interrupted: cancel the run on the gateway before exiting.
				cancelRun(gateway)
				fmt.Fprintln(os.Stderr, "cancelled")
				return nil
			}
			if readErr == io.EOF {
				return fmt.Errorf("event stream ended before the run finished")
			}
			return fmt.Errorf("read event stream: %w", readErr)
		}
	}
}

func renderLine(line string, asJSON bool) (terminal bool, err error) {
	payload, ok := strings.CutPrefix(line, "data: ")
	if !ok || strings.TrimSpace(payload) == "" {
		return false, nil
	}

	var snap session.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}

	if asJSON {
		fmt.Println(payload)
	} else {
		printSnapshot(snap)
	}

	switch snap.Phase {
	case session.PhaseDone:
		if !asJSON {
			printListings(snap)
		}
		return true, nil
	case session.PhaseError:
		return true, fmt.Errorf("search failed (%s): %s", snap.ErrorKind, snap.ErrorMessage)
	case session.PhaseCancelled:
		return true, nil
	}
	return false, nil
}

func printSnapshot(snap session.Snapshot) {
	line := fmt.Sprintf("[%s] scanned %d, filtered %d, evaluated %d",
		snap.Phase, snap.ScannedCount, snap.FilteredCount, snap.EvaluatedCount)
	if snap.CurrentItem != nil {
		line += fmt.Sprintf(" | %d/%d %s",
			snap.CurrentItem.ListingIndex, snap.CurrentItem.TotalListings, snap.CurrentItem.Title)
	}
	fmt.Println(line)
}

func printListings(snap session.Snapshot) {
	if len(snap.Listings) == 0 {
		fmt.Println("no deals found")
		return
	}
	fmt.Printf("\n%d deals:\n", len(snap.Listings))
	for _, l := range snap.Listings {
		score := "-"
		if l.DealScore != nil {
			score = fmt.Sprintf("%.0f%%", *l.DealScore)
		}
		fmt.Printf("  %s below comps  %s%.2f  %s\n    %s\n", score, l.Currency, l.Price, l.Title, l.URL)
	}
}

func cancelRun(gateway string) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(strings.TrimRight(gateway, "/")+"/api/search/cancel", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cancel failed: %v\n", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

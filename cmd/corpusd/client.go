package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// reindexCmd triggers a full rescan on a running daemon
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Trigger a full rescan on a running daemon",
	Long: `Ask a running corpusd daemon to rescan the watch root.

The daemon walks the watch root again, re-indexes changed files, and
purges entries for files that no longer exist. The command returns as
soon as the rescan is accepted.

Examples:
  # Rescan using the default server
  corpusd reindex

  # Rescan a daemon on another port
  corpusd reindex --server http://localhost:9001`,
	RunE: runReindex,
}

// statusCmd reports index state of a running daemon
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index state of a running daemon",
	Long: `Show catalog, queue, and vector store statistics for a running daemon.

Examples:
  # Inspect the default server
  corpusd status

  # Inspect a daemon on another port
  corpusd status --server http://localhost:9001`,
	RunE: runStatus,
}

// ReindexResponse matches internal/http/types.go ReindexResponse
type ReindexResponse struct {
	Status string `json:"status"`
}

// StatsResponse matches internal/http/types.go StatsResponse
type StatsResponse struct {
	Files       FileStats         `json:"files"`
	QueueDepth  int               `json:"queue_depth"`
	VectorStore *VectorStoreStats `json:"vectorstore,omitempty"`
}

// FileStats matches internal/http/types.go FileStats
type FileStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// VectorStoreStats matches internal/http/types.go VectorStoreStats
type VectorStoreStats struct {
	Collections int `json:"collections"`
	Points      int `json:"points"`
}

// runReindex handles the reindex command
func runReindex(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/reindex", serverURL)

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var reindexResp ReindexResponse
	if err := json.NewDecoder(resp.Body).Decode(&reindexResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Status: %s\n", reindexResp.Status)
	fmt.Printf("Watch progress with: corpusd status\n")

	return nil
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/stats", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var stats StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server URL:  %s\n", serverURL)
	fmt.Printf("Files:       %d\n", stats.Files.Total)

	statuses := make([]string, 0, len(stats.Files.ByStatus))
	for status := range stats.Files.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %-10s %d\n", status+":", stats.Files.ByStatus[status])
	}

	fmt.Printf("Queue depth: %d\n", stats.QueueDepth)
	if stats.VectorStore != nil {
		fmt.Printf("Collections: %d\n", stats.VectorStore.Collections)
		fmt.Printf("Points:      %d\n", stats.VectorStore.Points)
	}

	return nil
}

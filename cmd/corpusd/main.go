// Corpusd is a local-first document indexing and retrieval daemon.
//
// The serve command crawls a watched directory, chunks and embeds the
// files it finds, and answers semantic queries over HTTP. The remaining
// commands are thin clients of a running daemon, plus an offline tenant
// migration tool.
//
// Usage:
//
//	# Start the daemon with the default config file
//	corpusd serve
//
//	# Trigger a full rescan on a running daemon
//	corpusd reindex
//
//	# Inspect index state
//	corpusd status
//
//	# Bridge stdio MCP clients to a running daemon
//	corpusd mcp
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configFile string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:     "corpusd",
	Short:   "Local document indexing and retrieval daemon",
	Long:    "corpusd indexes a directory of documents into a vector store and serves semantic queries over HTTP and MCP.",
	Version: version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("corpusd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default ~/.config/corpusd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", getEnvOrDefault("CORPUSD_SERVER", "http://localhost:8001"), "Daemon URL for client commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(migrateTenantCmd)
	rootCmd.AddCommand(versionCmd)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

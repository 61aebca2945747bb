// Package main provides the CLI entry point for the nexus agent runtime:
// the agentic loop from spec §4.5 wired to a provider adapter, the tool
// runtime, the memory store, the execution tracker, and the hook bus.
//
// # Basic usage
//
//	nexus chat --config nexus.yaml --message "what's in this workspace?"
//
// # Environment variables
//
//   - NEXUS_AGENT_API_KEY: overrides agent.api_key from the config file.
//   - BURNER_WALLET_BOT_PRIVATE_KEY: the EVM signing key for x402 tools.
//   - BRAVE_SEARCH_API_KEY / SERPAPI_API_KEY: web search backend keys.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

var configPath string

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nexus",
		Short:        "nexus agent runtime",
		Long:         "nexus drives the agentic loop: LLM adapter, tool runtime, memory store, execution tracker, and hook bus.",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "nexus.yaml", "path to the configuration file")
	rootCmd.AddCommand(buildChatCmd())
	rootCmd.AddCommand(buildDoctorCmd())
	return rootCmd
}

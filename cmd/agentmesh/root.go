package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelabs/agentmesh/internal/config"
)

var (
	flagConfigPath string
	flagAgentsPath string
)

var rootCmd = &cobra.Command{
	Use:   "agentmesh",
	Short: "Multi-agent task orchestration",
	Long: `Agentmesh decomposes tasks into dependency-aware subtasks and runs
them in parallel across a pool of LLM-backed agents.

A manager agent breaks the task down, independent subtasks execute
concurrently on exclusively allocated worker agents, results are reviewed
by the manager with one retry on rejection, and everything rolls up into a
single aggregate result.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file (default: XDG path + .agentmesh.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagAgentsPath, "agents", "", "Agent definitions YAML (default: built-in pool)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if flagConfigPath != "" {
		cfg, err := config.LoadFromPath(flagConfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// easelflow is the canvas flow server and project tool.
//
// Usage:
//
//	easelflow serve    [--config easelflow.yaml]
//	easelflow projects [--config easelflow.yaml]
//	easelflow export   --project <id> [-o flow.json]
//	easelflow import   --project <id> -f flow.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atelierhq/easelflow/internal/logging"
	"github.com/atelierhq/easelflow/pkg/flow/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "easelflow",
	Short: "Node-graph engine for AI canvas projects",
	Long: "Easelflow manages canvas flow graphs: nodes, typed connections,\n" +
		"generation runs against image, video, and text providers, and\n" +
		"debounced project persistence.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.Version = version
}

// loadSettings resolves the config file plus flag overrides and
// initializes the global logger.
func loadSettings() (config.Settings, error) {
	settings, err := config.Load(flagConfig)
	if err != nil {
		return config.Settings{}, err
	}
	if flagLogLevel != "" {
		settings.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		settings.LogFormat = flagLogFormat
	}
	logging.Init(logging.ParseLevel(settings.LogLevel), settings.LogFormat)
	return settings, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

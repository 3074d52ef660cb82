package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// cfgFile is the path to the gateway's configuration file.
	cfgFile string
	// verbose enables verbose output across subcommands.
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "modelgate",
	Short: "Modelgate - a LAN-facing reverse-proxy gateway for a local LLM runtime",
	Long: `Modelgate fronts a local LLM runtime's OpenAI-compatible HTTP surface with
a single-backend reverse proxy: an Access Filter at the edge, model lifecycle
and introspection over an admin/debug surface, and a log tailer that turns the
backend's own rolling logs into structured events.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

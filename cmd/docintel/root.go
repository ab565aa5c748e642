package main

import (
	"github.com/spf13/cobra"

	"github.com/JaimeStill/docintel/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config string
}

var rootCmd = &cobra.Command{
	Use:   "docintel",
	Short: "Classify and summarize financial documents",
	Long:  "docintel reads documents from the intake prefix of the configured storage,\nclassifies them, extracts structured fields and writes an HTML report.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.config, "config", config.BaseConfigFile, "Path to config.toml")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.Version = version
}

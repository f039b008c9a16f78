package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arstage",
	Short: "arstage drives AR placement and animation milestones tick by tick",
	Long: `arstage runs the session, surface tracking, placement and animation
pipeline once per host frame and publishes milestones to Lua listeners,
the journal and the HTTP control surface.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	def := os.Getenv("ARSTAGE_CONFIG")
	if def == "" {
		def = "config/stage.toml"
	}
	rootCmd.PersistentFlags().String("config", def, "Path to the TOML config file")
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

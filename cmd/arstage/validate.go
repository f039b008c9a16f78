package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arstage/arstage/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check config, asset manifest, tracks, milestones and scenario",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidate(cmd, configPath(cmd))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	tbl, err := loadTables(cfg)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "assets:     %d\n", tbl.manifest.Count())
	fmt.Fprintf(out, "tracks:     %d\n", len(tbl.tracks))
	fmt.Fprintf(out, "milestones: %d\n", len(tbl.milestones))
	if tbl.scenario != nil {
		fmt.Fprintf(out, "scenario:   %d frames (loop=%t)\n", tbl.scenario.FrameCount(), tbl.scenario.Loop)
	}
	fmt.Fprintln(out, "ok")
	return nil
}

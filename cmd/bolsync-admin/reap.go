package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/target/mmk-bol-sync/internal/adapters/reaper"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Run one retention pass over export jobs and snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmdCtx, cancel, err := newCommandContext(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		db, _, err := connectInfra(cmdCtx, false)
		if err != nil {
			return err
		}
		defer closeDB(cmdCtx, db)

		runner, err := reaper.NewRunner(reaper.RunnerOptions{
			DB:     db,
			Config: cmdCtx.Config.Reaper,
			Logger: cmdCtx.Logger,
		})
		if err != nil {
			return fmt.Errorf("reaper: %w", err)
		}
		if err := runner.RunOnce(cmdCtx.Ctx); err != nil {
			return fmt.Errorf("reaper pass: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "reaper pass completed")
		return err
	},
}

func init() {
	rootCmd.AddCommand(reapCmd)
}

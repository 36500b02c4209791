package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/target/mmk-bol-sync/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
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

		cmdCtx.Logger.Info("running database migrations")
		applied, err := migrate.Run(cmdCtx.Ctx, db, cmdCtx.Logger)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return printVersions(cmd.OutOrStdout(), "applied", applied)
	},
}

var migrateVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the migrations embedded in this binary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		versions, err := migrate.Versions()
		if err != nil {
			return err
		}
		return printVersions(cmd.OutOrStdout(), "embedded", versions)
	},
}

func printVersions(w io.Writer, label string, versions []string) error {
	if outputJSON {
		return writeJSON(w, map[string][]string{label: nonNil(versions)})
	}
	if len(versions) == 0 {
		_, err := fmt.Fprintf(w, "no migrations %s\n", label)
		return err
	}
	for _, v := range versions {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", label, v); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func init() {
	migrateCmd.AddCommand(migrateVersionsCmd)
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-bol-sync/internal/domain/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes a run report as JSON or as a table followed by a
// per-status summary line.
func printReport(w io.Writer, report *model.RunReport, asJSON bool) error {
	if asJSON {
		return writeJSON(w, report)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "KIND\tID\tSTATUS\tDETAIL\n")
	for _, e := range report.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Kind, e.ID, e.Status, e.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := report.Counts()
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	slices.Sort(statuses)

	if _, err := fmt.Fprintf(w, "run %s:", report.RunID); err != nil {
		return err
	}
	if len(statuses) == 0 {
		_, err := fmt.Fprintln(w, " nothing to do")
		return err
	}
	for _, s := range statuses {
		if _, err := fmt.Fprintf(w, " %s=%d", s, counts[model.EntryStatus(s)]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func printTenants(w io.Writer, creds []*model.Credential, asJSON bool) error {
	if asJSON {
		if creds == nil {
			creds = []*model.Credential{}
		}
		return writeJSON(w, creds)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TENANT\tNAME\tACTIVE\tADVERTISING\tINTERVAL\tLAST SYNCED\n")
	for _, c := range creds {
		last := "never"
		if c.LastSyncedAt != nil {
			last = c.LastSyncedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%s\n",
			c.TenantID, c.Name, c.Active, c.HasAdvertising(), c.SyncInterval(), last)
	}
	return tw.Flush()
}

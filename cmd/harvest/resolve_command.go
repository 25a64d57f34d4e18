package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve every outstanding placeholder in the store",
		Args:  argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := ctx.openWorkspace(cmd, true)
			if err != nil {
				return err
			}
			defer ws.Close()

			client, err := ws.client()
			if err != nil {
				return err
			}
			report, err := ws.store.ResolveOutstanding(cmd.Context(), client)
			if err != nil {
				return err
			}

			snapshot := ws.baseID
			if report.Requested > 0 {
				entry, err := ws.save(cmd.Context(), "resolve")
				if err != nil {
					return err
				}
				snapshot = entry.ID
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"requested":   report.Requested,
					"resolved":    report.Resolved,
					"outstanding": report.Outstanding,
					"snapshot":    snapshot,
				})
			}
			out := cmd.OutOrStdout()
			if report.Requested == 0 {
				fmt.Fprintln(out, "No outstanding placeholders")
				return nil
			}
			fmt.Fprintf(out, "Resolved %d of %d placeholder(s), %d outstanding\n", report.Resolved, report.Requested, report.Outstanding)
			return nil
		},
	}
}

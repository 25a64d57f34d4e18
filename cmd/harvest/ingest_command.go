package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var resolve bool

	cmd := &cobra.Command{
		Use:   "ingest [resource] <target>",
		Short: "Fetch a target, parse it, and add the results to the store",
		Long: "Fetch a target from the configured source and parse it with the parsers registered\n" +
			"for its resource. The resource defaults to the first segment of the target.",
		Args: argsBetween(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, target := "", args[0]
			if len(args) == 2 {
				resource, target = args[0], args[1]
			}

			ws, err := ctx.openWorkspace(cmd, true)
			if err != nil {
				return err
			}
			defer ws.Close()

			client, err := ws.client()
			if err != nil {
				return err
			}
			rs, err := client.Ingest(cmd.Context(), resource, target)
			if err != nil {
				return err
			}
			ws.store.AddResults(rs)

			summary := ingestSummary{Target: target, Parsed: rs.Len(), Placeholders: len(rs.Placeholders())}
			if resolve {
				report, err := ws.store.ResolveOutstanding(cmd.Context(), client)
				if err != nil {
					return err
				}
				summary.Resolved = report.Resolved
				summary.Outstanding = report.Outstanding
			}

			entry, err := ws.save(cmd.Context(), fmt.Sprintf("ingest %s", target))
			if err != nil {
				return err
			}
			summary.Snapshot = entry.ID

			if ctx.jsonOutput() {
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingested %s: %d object(s), %d placeholder(s)\n", target, summary.Parsed, summary.Placeholders)
			if resolve {
				fmt.Fprintf(out, "Resolved %d placeholder(s), %d outstanding\n", summary.Resolved, summary.Outstanding)
			}
			fmt.Fprintf(out, "Snapshot %s\n", entry.ShortID())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&resolve, "resolve", "r", false, "Resolve outstanding placeholders after ingesting")
	return cmd
}

type ingestSummary struct {
	Target       string `json:"target"`
	Parsed       int    `json:"parsed"`
	Placeholders int    `json:"placeholders"`
	Resolved     int    `json:"resolved,omitempty"`
	Outstanding  int    `json:"outstanding,omitempty"`
	Snapshot     string `json:"snapshot"`
}

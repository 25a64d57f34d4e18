package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"harvest/internal/archive"
)

func newSnapshotsCommand(ctx *commandContext) *cobra.Command {
	var prune bool
	var keep int

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List archived store snapshots",
		Args:  argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			arch, err := archive.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer arch.Close()

			if prune {
				if keep <= 0 {
					keep = cfg.Archive.Keep
				}
				release, err := arch.Lock(cmd.Context())
				if err != nil {
					return err
				}
				removed, err := arch.Prune(cmd.Context(), keep)
				release()
				if err != nil {
					return err
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d snapshot(s), keeping %d\n", removed, keep)
				}
			}

			entries, err := arch.List(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				type item struct {
					ID           string `json:"id"`
					CreatedAt    string `json:"created_at"`
					Records      int    `json:"records"`
					Placeholders int    `json:"placeholders"`
					Note         string `json:"note,omitempty"`
				}
				items := make([]item, 0, len(entries))
				for _, e := range entries {
					items = append(items, item{
						ID:           e.ID,
						CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
						Records:      e.Records,
						Placeholders: e.Placeholders,
						Note:         e.Note,
					})
				}
				return writeJSON(cmd, items)
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "No snapshots archived")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.ShortID(),
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					strconv.Itoa(e.Records),
					strconv.Itoa(e.Placeholders),
					e.Note,
				})
			}
			fmt.Fprintln(w, renderTable(w,
				[]string{"ID", "Created", "Records", "Placeholders", "Note"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Delete snapshots beyond the retention limit")
	cmd.Flags().IntVar(&keep, "keep", 0, "Snapshots to keep when pruning (default archive.keep)")
	return cmd
}

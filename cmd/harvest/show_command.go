package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"harvest/internal/record"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var tags bool

	cmd := &cobra.Command{
		Use:   "show [kind]",
		Short: "Summarize the store, or list the objects of one kind",
		Long: "Without arguments, show object counts per kind. With a kind (for example Grade,\n" +
			"Meeting, or Placeholder), list the stored objects of that kind. --tags lists\n" +
			"the type tags exports may contain.",
		Args: argsBetween(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := ctx.openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if tags {
				return showTags(cmd, ctx, ws)
			}
			if len(args) == 0 {
				return showCounts(cmd, ctx, ws)
			}
			return showKind(cmd, ctx, ws, matchKind(args[0], ws.store.Kinds()))
		},
	}

	cmd.Flags().BoolVar(&tags, "tags", false, "List registered serialization tags")
	return cmd
}

func showTags(cmd *cobra.Command, ctx *commandContext, ws *workspace) error {
	tags := ws.engine.Tags()
	if ctx.jsonOutput() {
		return writeJSON(cmd, tags)
	}
	w := cmd.OutOrStdout()
	rows := make([][]string, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, []string{tag})
	}
	fmt.Fprintln(w, renderTable(w, []string{"Tag"}, rows, nil))
	return nil
}

func showCounts(cmd *cobra.Command, ctx *commandContext, ws *workspace) error {
	counts := ws.store.Counts()
	kinds := make([]record.Kind, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	if ctx.jsonOutput() {
		out := make(map[string]int, len(counts))
		for kind, n := range counts {
			out[string(kind)] = n
		}
		return writeJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	if len(kinds) == 0 {
		fmt.Fprintln(w, "Store is empty")
		return nil
	}
	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{kind.Label(), strconv.Itoa(counts[kind])})
	}
	fmt.Fprintln(w, renderTable(w, []string{"Kind", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	return nil
}

func showKind(cmd *cobra.Command, ctx *commandContext, ws *workspace, kind record.Kind) error {
	objs := ws.store.Get(kind)

	if ctx.jsonOutput() {
		type item struct {
			Kind   string `json:"kind"`
			Tag    string `json:"tag,omitempty"`
			ID     string `json:"id"`
			Target string `json:"target,omitempty"`
			Text   string `json:"text"`
		}
		items := make([]item, 0, len(objs))
		for _, obj := range objs {
			it := item{Kind: string(obj.Kind()), ID: obj.ID(), Text: obj.String()}
			it.Tag, _ = ws.engine.TagOf(obj)
			if p, ok := obj.(*record.Placeholder); ok {
				it.Target = string(p.Target)
			}
			items = append(items, it)
		}
		return writeJSON(cmd, items)
	}

	w := cmd.OutOrStdout()
	if len(objs) == 0 {
		fmt.Fprintf(w, "No %s objects\n", kind.Label())
		return nil
	}
	rows := make([][]string, 0, len(objs))
	for _, obj := range objs {
		rows = append(rows, []string{obj.ID(), obj.String()})
	}
	fmt.Fprintln(w, renderTable(w, []string{"ID", kind.Label()}, rows, nil))
	return nil
}

// matchKind maps user input to a stored kind case-insensitively, falling
// back to the input as typed.
func matchKind(input string, known []record.Kind) record.Kind {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, string(record.KindPlaceholder)) || strings.EqualFold(input, "placeholders") {
		return record.KindPlaceholder
	}
	for _, kind := range known {
		if strings.EqualFold(input, string(kind)) || strings.EqualFold(strings.TrimSuffix(input, "s"), string(kind)) {
			return kind
		}
	}
	return record.Kind(input)
}

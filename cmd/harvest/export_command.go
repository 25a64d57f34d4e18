package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"harvest/internal/archive"
	"harvest/internal/codec"
	"harvest/internal/config"
	"harvest/internal/store"
)

// exportFormat picks the format from the flag, then the file extension, then
// the configured default.
func exportFormat(flagValue, path string, cfg *config.Config) (codec.Format, error) {
	if strings.TrimSpace(flagValue) != "" {
		return codec.ParseFormat(flagValue)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" || ext == ".yaml" || ext == ".yml" {
		return codec.DetectFormat(path), nil
	}
	return codec.ParseFormat(cfg.Export.Format)
}

// exportPath resolves relative paths against paths.export_dir when set.
func exportPath(path string, cfg *config.Config) string {
	if path == "-" || filepath.IsAbs(path) || cfg.Paths.ExportDir == "" {
		return path
	}
	if strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	return filepath.Join(cfg.Paths.ExportDir, path)
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var snapshotFlag string

	cmd := &cobra.Command{
		Use:   "export <path|->",
		Short: "Write the store as a shared-reference document",
		Long: "Serialize the store in graph mode: objects referenced from several places are\n" +
			"written once. Bare file names land in paths.export_dir; '-' writes to stdout.",
		Args: argsBetween(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := ctx.openWorkspace(cmd, false)
			if err != nil {
				return err
			}
			defer ws.Close()

			if snapshotFlag != "" {
				entry, err := ws.archive.Get(cmd.Context(), snapshotFlag)
				if err != nil {
					return err
				}
				format, err := codec.ParseFormat(entry.Format)
				if err != nil {
					return err
				}
				if _, err := ws.store.Import(ws.engine, entry.Payload, format, store.ImportReplace); err != nil {
					return err
				}
			}

			target := exportPath(args[0], ws.cfg)
			format, err := exportFormat(formatFlag, target, ws.cfg)
			if err != nil {
				return err
			}
			data, err := ws.store.Export(ws.engine, format, ws.cfg.Export.Indent)
			if err != nil {
				return err
			}

			if target == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				if err == nil && format == codec.FormatJSON {
					_, err = io.WriteString(cmd.OutOrStdout(), "\n")
				}
				return err
			}
			if err := archive.WriteFile(cmd.Context(), target, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d object(s) to %s (%s)\n", ws.store.Len(), target, format)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format: json or yaml")
	cmd.Flags().StringVar(&snapshotFlag, "snapshot", "", "Export an archived snapshot instead of the latest")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var merge bool
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "import <path|->",
		Short: "Load an exported document into the store",
		Long: "Replace the store with an exported document, or merge it into the current\n" +
			"contents with --merge. Existing records win over imported duplicates.",
		Args: argsBetween(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := exportPath(args[0], cfg)
			format, err := exportFormat(formatFlag, source, cfg)
			if err != nil {
				return err
			}

			var data []byte
			if source == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = archive.ReadFile(cmd.Context(), source)
			}
			if err != nil {
				return err
			}

			ws, err := ctx.openWorkspace(cmd, true)
			if err != nil {
				return err
			}
			defer ws.Close()

			mode := store.ImportReplace
			if merge {
				mode = store.ImportMerge
			}
			snap, err := ws.store.Import(ws.engine, data, format, mode)
			if err != nil {
				return err
			}
			entry, err := ws.save(cmd.Context(), fmt.Sprintf("import %s (%s)", filepath.Base(source), mode))
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"imported": snap.Len(),
					"mode":     mode.String(),
					"total":    ws.store.Len(),
					"snapshot": entry.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d object(s) (%s); store now holds %d\n", snap.Len(), mode, ws.store.Len())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&merge, "merge", "m", false, "Merge into the current store instead of replacing it")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Input format: json or yaml")
	return cmd
}

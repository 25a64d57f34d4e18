package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"harvest/internal/archive"
	"harvest/internal/codec"
	"harvest/internal/config"
	"harvest/internal/gradebook"
	"harvest/internal/logging"
	"harvest/internal/record"
	"harvest/internal/registry"
	"harvest/internal/session"
	"harvest/internal/store"
)

// workspace is the state one command operates on: the archive, the store
// rebuilt from its latest snapshot, and the wired registry and engine.
type workspace struct {
	cfg      *config.Config
	logger   *slog.Logger
	archive  *archive.Archive
	engine   *codec.Engine
	registry *registry.Registry
	store    *store.Store
	baseID   string
	release  func()
}

// openWorkspace loads the latest snapshot. Mutating commands also take the
// archive lock so concurrent invocations cannot interleave load and save.
func (c *commandContext) openWorkspace(cmd *cobra.Command, mutate bool) (*workspace, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	arch, err := archive.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	ws := &workspace{
		cfg:     cfg,
		logger:  logger,
		archive: arch,
		store:   store.New(logger),
	}
	if mutate {
		release, err := arch.Lock(ctx)
		if err != nil {
			_ = arch.Close()
			return nil, err
		}
		ws.release = release
	}

	ws.engine = codec.NewEngine()
	ws.registry = registry.New(logger)
	if err := store.RegisterCodecs(ws.engine); err != nil {
		ws.Close()
		return nil, err
	}
	if err := gradebook.Register(ws.registry, ws.engine); err != nil {
		ws.Close()
		return nil, err
	}
	ws.registry.Seal()

	if err := ws.load(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

func (w *workspace) load(ctx context.Context) error {
	entry, ok, err := w.archive.Latest(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	format, err := codec.ParseFormat(entry.Format)
	if err != nil {
		return err
	}
	if _, err := w.store.Import(w.engine, entry.Payload, format, store.ImportReplace); err != nil {
		return fmt.Errorf("load snapshot %s: %w", entry.ShortID(), err)
	}
	w.baseID = entry.ID
	w.logger.Debug("snapshot loaded", logging.String(logging.FieldSnapshotID, entry.ID))
	return nil
}

func (w *workspace) client() (*session.Client, error) {
	return session.NewFromConfig(w.cfg, w.registry, w.logger)
}

// save archives the current store contents and prunes old snapshots.
func (w *workspace) save(ctx context.Context, note string) (archive.Entry, error) {
	payload, err := w.store.Export(w.engine, codec.FormatJSON, false)
	if err != nil {
		return archive.Entry{}, err
	}
	counts := w.store.Counts()
	placeholders := counts[record.KindPlaceholder]
	entry, err := w.archive.Save(ctx, payload, string(codec.FormatJSON), archive.Stats{
		Records:      w.store.Len() - placeholders,
		Placeholders: placeholders,
		Note:         note,
	})
	if err != nil {
		return archive.Entry{}, err
	}
	if _, err := w.archive.Prune(ctx, w.cfg.Archive.Keep); err != nil {
		logging.WarnWithContext(w.logger, "snapshot prune failed", "archive_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "older snapshots remain on disk"),
		)
	}
	w.logger.Info("snapshot archived",
		logging.String(logging.FieldSnapshotID, entry.ID),
		logging.Int("records", entry.Records),
		logging.Int("placeholders", entry.Placeholders),
	)
	return entry, nil
}

func (w *workspace) Close() {
	if w.release != nil {
		w.release()
		w.release = nil
	}
	if w.archive != nil {
		_ = w.archive.Close()
	}
}

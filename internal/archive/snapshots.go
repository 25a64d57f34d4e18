package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"harvest/internal/faults"
	"harvest/internal/logging"
)

// ErrNotFound is returned when a snapshot id does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Stats describes the contents of a snapshot for listings.
type Stats struct {
	Records      int
	Placeholders int
	Note         string
}

// Entry is one archived snapshot. Payload is only populated by Get and Latest.
type Entry struct {
	ID           string
	CreatedAt    time.Time
	Format       string
	Records      int
	Placeholders int
	Note         string
	Payload      []byte
}

// ShortID returns the first segment of the uuid for table output.
func (e Entry) ShortID() string {
	if idx := strings.IndexByte(e.ID, '-'); idx > 0 {
		return e.ID[:idx]
	}
	return e.ID
}

const (
	summaryColumns = "id, created_at, format, records, placeholders, note"
	fullColumns    = summaryColumns + ", payload"
)

// Save stores payload as the newest snapshot.
func (a *Archive) Save(ctx context.Context, payload []byte, format string, stats Stats) (Entry, error) {
	if len(payload) == 0 {
		return Entry{}, faults.Wrap(faults.ErrUsage, "archive", "save", "empty payload", nil)
	}
	entry := Entry{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Format:       format,
		Records:      stats.Records,
		Placeholders: stats.Placeholders,
		Note:         strings.TrimSpace(stats.Note),
		Payload:      payload,
	}
	err := retryOnBusy(ctx, func() error {
		_, execErr := a.db.ExecContext(ctx,
			`INSERT INTO snapshots (id, created_at, format, records, placeholders, note, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.CreatedAt.Format(time.RFC3339Nano), entry.Format, entry.Records, entry.Placeholders,
			nullableString(entry.Note), entry.Payload,
		)
		return execErr
	})
	if err != nil {
		return Entry{}, fmt.Errorf("save snapshot: %w", err)
	}
	a.logger.Debug("snapshot saved",
		logging.String(logging.FieldSnapshotID, entry.ID),
		logging.Int("records", entry.Records),
		logging.Int("placeholders", entry.Placeholders),
		logging.Int("bytes", len(payload)),
	)
	return entry, nil
}

// Latest returns the newest snapshot. ok is false when the archive is empty.
func (a *Archive) Latest(ctx context.Context) (Entry, bool, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+fullColumns+` FROM snapshots ORDER BY seq DESC LIMIT 1`)
	entry, err := scanEntry(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	return entry, true, nil
}

// Get returns the snapshot with id. A unique id prefix is accepted.
func (a *Archive) Get(ctx context.Context, id string) (Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Entry{}, faults.Wrap(faults.ErrUsage, "archive", "get", "snapshot id required", nil)
	}
	rows, err := a.db.QueryContext(ctx, `SELECT `+fullColumns+` FROM snapshots WHERE id = ? OR id LIKE ? ORDER BY seq DESC LIMIT 2`, id, id+"%")
	if err != nil {
		return Entry{}, fmt.Errorf("get snapshot: %w", err)
	}
	defer rows.Close()

	var matches []Entry
	for rows.Next() {
		entry, err := scanEntry(rows, true)
		if err != nil {
			return Entry{}, fmt.Errorf("get snapshot: %w", err)
		}
		if entry.ID == id {
			return entry, nil
		}
		matches = append(matches, entry)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, fmt.Errorf("get snapshot: %w", err)
	}
	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, faults.Wrap(faults.ErrUsage, "archive", "get", fmt.Sprintf("snapshot prefix %q is ambiguous", id), nil)
	}
}

// List returns snapshot summaries, newest first, without payloads.
func (a *Archive) List(ctx context.Context) ([]Entry, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT `+summaryColumns+` FROM snapshots ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows, false)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Prune keeps the newest keep snapshots and deletes the rest.
func (a *Archive) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, faults.Wrap(faults.ErrUsage, "archive", "prune", "keep must be at least 1", nil)
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := a.db.ExecContext(ctx,
			`DELETE FROM snapshots WHERE seq NOT IN (SELECT seq FROM snapshots ORDER BY seq DESC LIMIT ?)`, keep)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	if removed > 0 {
		a.logger.Info("snapshots pruned", logging.Int("removed", int(removed)), logging.Int("kept", keep))
	}
	return removed, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }, withPayload bool) (Entry, error) {
	var (
		entry      Entry
		createdRaw string
		note       sql.NullString
	)
	dest := []any{&entry.ID, &createdRaw, &entry.Format, &entry.Records, &entry.Placeholders, &note}
	if withPayload {
		dest = append(dest, &entry.Payload)
	}
	if err := scanner.Scan(dest...); err != nil {
		return Entry{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at %q: %w", createdRaw, err)
	}
	entry.CreatedAt = created
	entry.Note = note.String
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

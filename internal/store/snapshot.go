package store

import (
	"fmt"

	"harvest/internal/codec"
	"harvest/internal/faults"
	"harvest/internal/logging"
	"harvest/internal/record"
)

// SnapshotTag is the codec tag of Snapshot.
const SnapshotTag = "store.Snapshot"

// ImportMode selects how Restore treats the current contents.
type ImportMode int

const (
	// ImportReplace clears the store before loading the snapshot.
	ImportReplace ImportMode = iota
	// ImportMerge adds the snapshot with the usual Add rules.
	ImportMerge
)

func (m ImportMode) String() string {
	if m == ImportMerge {
		return "merge"
	}
	return "replace"
}

// Snapshot is a point-in-time copy of the store contents.
type Snapshot struct {
	Records      []record.Object
	Placeholders []*record.Placeholder
}

func (s *Snapshot) Serialize() (any, error) {
	return map[string]any{
		"records":      s.Records,
		"placeholders": s.Placeholders,
	}, nil
}

func (s *Snapshot) Deserialize(data any) error {
	m, err := codec.Payload(data)
	if err != nil {
		return err
	}
	if s.Records, err = codec.SliceOf[record.Object](m["records"]); err != nil {
		return fmt.Errorf("snapshot records: %w", err)
	}
	if s.Placeholders, err = codec.SliceOf[*record.Placeholder](m["placeholders"]); err != nil {
		return fmt.Errorf("snapshot placeholders: %w", err)
	}
	return nil
}

// Len counts the objects in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Records) + len(s.Placeholders)
}

// RegisterCodecs binds the snapshot and placeholder types to engine.
func RegisterCodecs(engine *codec.Engine) error {
	if err := record.RegisterCodecs(engine); err != nil {
		return err
	}
	return engine.Register(SnapshotTag, &Snapshot{})
}

// Snapshot captures the current contents, records ordered by kind then id.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{Placeholders: s.pendingLocked("")}
	for _, kind := range sortedKinds(s.records) {
		bucket := s.records[kind]
		for _, id := range sortedKeys(bucket) {
			snap.Records = append(snap.Records, bucket[id])
		}
	}
	return snap
}

// Restore loads snap into the store in one batch.
func (s *Store) Restore(snap *Snapshot, mode ImportMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == ImportReplace {
		s.records = make(map[record.Kind]map[string]record.Object)
		s.pending = make(map[record.Kind]map[string]*record.Placeholder)
	}
	if snap == nil {
		return
	}
	for _, obj := range snap.Records {
		s.insertLocked(obj)
	}
	for _, p := range snap.Placeholders {
		s.insertLocked(p)
	}
}

// Export serializes the store in graph mode, so objects shared between
// records are written once.
func (s *Store) Export(engine *codec.Engine, format codec.Format, indent bool) ([]byte, error) {
	tree, err := engine.SerializeGraph(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("export store: %w", err)
	}
	data, err := codec.Marshal(tree, format, indent)
	if err != nil {
		return nil, fmt.Errorf("export store: %w", err)
	}
	return data, nil
}

// Import decodes an export produced by Export and restores it. Flat
// serializations of a Snapshot are accepted too.
func (s *Store) Import(engine *codec.Engine, data []byte, format codec.Format, mode ImportMode) (*Snapshot, error) {
	snap, err := DecodeSnapshot(engine, data, format)
	if err != nil {
		return nil, err
	}
	s.Restore(snap, mode)
	s.logger.Info("store imported",
		logging.String("mode", mode.String()),
		logging.Int("records", len(snap.Records)),
		logging.Int("placeholders", len(snap.Placeholders)),
	)
	return snap, nil
}

// DecodeSnapshot parses an exported document without touching a store.
func DecodeSnapshot(engine *codec.Engine, data []byte, format codec.Format) (*Snapshot, error) {
	tree, err := codec.Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("import store: %w", err)
	}
	value, err := engine.Deserialize(tree)
	if err != nil {
		return nil, fmt.Errorf("import store: %w", err)
	}
	snap, ok := value.(*Snapshot)
	if !ok {
		return nil, faults.Wrap(faults.ErrMissingElement, "store", "import",
			fmt.Sprintf("expected %s document, got %T", SnapshotTag, value), nil)
	}
	return snap, nil
}

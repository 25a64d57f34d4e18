package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"harvest/internal/faults"
	"harvest/internal/logging"
	"harvest/internal/record"
)

// Resolver turns placeholders into objects. session.Client implements it.
type Resolver interface {
	ResolveAll(ctx context.Context, placeholders []*record.Placeholder) (*record.ResultSet, error)
}

// Report summarizes one ResolveOutstanding call.
type Report struct {
	Requested   int
	Resolved    int
	Outstanding int
}

// Store is a concurrency-safe object index.
type Store struct {
	mu      sync.RWMutex
	records map[record.Kind]map[string]record.Object
	pending map[record.Kind]map[string]*record.Placeholder
	logger  *slog.Logger
}

// New returns an empty store.
func New(logger *slog.Logger) *Store {
	return &Store{
		records: make(map[record.Kind]map[string]record.Object),
		pending: make(map[record.Kind]map[string]*record.Placeholder),
		logger:  logging.NewComponentLogger(logger, "store"),
	}
}

// Add inserts objs as one batch.
func (s *Store) Add(objs ...record.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range objs {
		s.insertLocked(obj)
	}
}

// AddResults inserts every object of rs as one batch.
func (s *Store) AddResults(rs *record.ResultSet) {
	if rs == nil {
		return
	}
	s.Add(rs.All()...)
}

func (s *Store) insertLocked(obj record.Object) {
	if record.IsNil(obj) {
		return
	}
	key := record.KeyOf(obj)
	if p, ok := obj.(*record.Placeholder); ok {
		if _, exists := s.records[key.Kind][key.ID]; exists {
			return
		}
		bucket := s.pending[key.Kind]
		if bucket == nil {
			bucket = make(map[string]*record.Placeholder)
			s.pending[key.Kind] = bucket
		}
		if _, exists := bucket[key.ID]; !exists {
			bucket[key.ID] = p
		}
		return
	}

	if bucket := s.pending[key.Kind]; bucket != nil {
		if _, exists := bucket[key.ID]; exists {
			delete(bucket, key.ID)
			if len(bucket) == 0 {
				delete(s.pending, key.Kind)
			}
			s.logger.Debug("placeholder superseded",
				logging.String(logging.FieldKind, string(key.Kind)),
				logging.String(logging.FieldRecordID, key.ID),
			)
		}
	}

	bucket := s.records[key.Kind]
	if bucket == nil {
		bucket = make(map[string]record.Object)
		s.records[key.Kind] = bucket
	}
	if existing, exists := bucket[key.ID]; exists {
		if existing != obj {
			s.logger.Debug("duplicate record ignored",
				logging.String(logging.FieldKind, string(key.Kind)),
				logging.String(logging.FieldRecordID, key.ID),
			)
		}
		return
	}
	bucket[key.ID] = obj
}

// Get returns the objects of kind ordered by identifier. For
// record.KindPlaceholder it returns every outstanding placeholder.
func (s *Store) Get(kind record.Kind) []record.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if kind == record.KindPlaceholder {
		placeholders := s.pendingLocked("")
		out := make([]record.Object, len(placeholders))
		for i, p := range placeholders {
			out[i] = p
		}
		return out
	}
	bucket := s.records[kind]
	out := make([]record.Object, 0, len(bucket))
	for _, id := range sortedKeys(bucket) {
		out = append(out, bucket[id])
	}
	return out
}

// Pending returns outstanding placeholders standing in for kind, or all of
// them when kind is empty.
func (s *Store) Pending(kind record.Kind) []*record.Placeholder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingLocked(kind)
}

func (s *Store) pendingLocked(kind record.Kind) []*record.Placeholder {
	var kinds []record.Kind
	if kind == "" {
		kinds = sortedKinds(s.pending)
	} else {
		kinds = []record.Kind{kind}
	}
	out := []*record.Placeholder{}
	for _, k := range kinds {
		bucket := s.pending[k]
		for _, id := range sortedKeys(bucket) {
			out = append(out, bucket[id])
		}
	}
	return out
}

// Have reports whether a full object (kind, id) is stored. Asking about the
// placeholder pseudo-kind is a usage error.
func (s *Store) Have(kind record.Kind, id string) (bool, error) {
	if kind == record.KindPlaceholder {
		return false, faults.Wrap(faults.ErrUsage, "store", "have",
			"placeholders are not addressable; query the kind they stand in for", nil)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[kind][id]
	return ok, nil
}

// Kinds lists the kinds with at least one stored object.
func (s *Store) Kinds() []record.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKinds(s.records)
}

// Counts returns the number of objects per kind, plus the number of
// outstanding placeholders under record.KindPlaceholder.
func (s *Store) Counts() map[record.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[record.Kind]int, len(s.records)+1)
	for kind, bucket := range s.records {
		if len(bucket) > 0 {
			out[kind] = len(bucket)
		}
	}
	placeholders := 0
	for _, bucket := range s.pending {
		placeholders += len(bucket)
	}
	if placeholders > 0 {
		out[record.KindPlaceholder] = placeholders
	}
	return out
}

// Len counts stored objects and outstanding placeholders.
func (s *Store) Len() int {
	total := 0
	for _, n := range s.Counts() {
		total += n
	}
	return total
}

// ResolveOutstanding hands every outstanding placeholder to resolver and
// absorbs the result. Placeholders the resolver passes back stay outstanding.
func (s *Store) ResolveOutstanding(ctx context.Context, resolver Resolver) (Report, error) {
	if resolver == nil {
		return Report{}, faults.Wrap(faults.ErrUsage, "store", "resolve", "resolver is required", nil)
	}
	placeholders := s.Pending("")
	report := Report{Requested: len(placeholders)}
	if len(placeholders) == 0 {
		return report, nil
	}

	rs, err := resolver.ResolveAll(ctx, placeholders)
	if err != nil {
		return report, fmt.Errorf("resolve outstanding: %w", err)
	}
	s.AddResults(rs)

	s.mu.RLock()
	for _, p := range placeholders {
		if _, ok := s.records[p.Target][p.Ident]; ok {
			report.Resolved++
		}
	}
	s.mu.RUnlock()
	report.Outstanding = report.Requested - report.Resolved
	logging.WithContext(ctx, s.logger).Info("outstanding placeholders resolved",
		logging.Int("requested", report.Requested),
		logging.Int("resolved", report.Resolved),
		logging.Int("outstanding", report.Outstanding),
	)
	return report, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKinds[V any](m map[record.Kind]map[string]V) []record.Kind {
	kinds := make([]record.Kind, 0, len(m))
	for kind, bucket := range m {
		if len(bucket) > 0 {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

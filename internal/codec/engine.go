package codec

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"harvest/internal/faults"
)

const (
	// TypeKey names the tag field of an envelope.
	TypeKey = "type"
	// DataKey names the payload field of an envelope.
	DataKey = "data"
	// RefTag marks a reference token inside a graph container.
	RefTag = "@"
	// GraphTag marks a graph container.
	GraphTag = "/"
	// TimeTag is the tag of the built-in time.Time codec.
	TimeTag = "time.Time"

	escapePrefix = `\`
)

// Serializable is implemented by values that know how to flatten themselves.
//
// Serialize may return nested objects as-is; the engine serializes them in
// turn. Deserialize receives the payload with nested values already rebuilt
// and is always called on a freshly allocated zero value.
type Serializable interface {
	Serialize() (any, error)
	Deserialize(data any) error
}

// Upgradeable is implemented by types whose serialized shape has changed over
// time. Upgrade is called before Deserialize with the keys the current shape
// expects but the payload lacks, and the keys the payload carries that the
// current shape does not know.
type Upgradeable interface {
	Fields() []string
	Upgrade(data map[string]any, missing, unexpected KeySet) (map[string]any, error)
}

// EncodeFunc flattens a value of a registered external type.
type EncodeFunc func(v any) (any, error)

// DecodeFunc rebuilds a value of a registered external type.
type DecodeFunc func(data any) (any, error)

type entry struct {
	tag          string
	typ          reflect.Type
	serializable bool
	encode       EncodeFunc
	decode       DecodeFunc
}

// Engine holds the tag table shared by flat and graph mode.
type Engine struct {
	mu     sync.RWMutex
	byTag  map[string]*entry
	byType map[reflect.Type]*entry
}

// NewEngine returns an engine with the built-in time.Time codec registered.
func NewEngine() *Engine {
	e := &Engine{
		byTag:  make(map[string]*entry),
		byType: make(map[reflect.Type]*entry),
	}
	if err := RegisterFunc(e, TimeTag, encodeTime, decodeTime); err != nil {
		panic(err)
	}
	return e
}

// Register associates tag with the concrete type of sample, which must be a
// pointer so Deserialize can populate a fresh value. Registering the same pair
// twice is a no-op.
func (e *Engine) Register(tag string, sample Serializable) error {
	if sample == nil {
		return faults.Wrap(faults.ErrUsage, "codec", "register", "nil sample", nil)
	}
	typ := reflect.TypeOf(sample)
	if typ.Kind() != reflect.Pointer {
		return faults.Wrap(faults.ErrUsage, "codec", "register",
			fmt.Sprintf("%s must be registered as a pointer type", typ), nil)
	}
	return e.add(&entry{tag: tag, typ: typ, serializable: true})
}

// RegisterCodec associates tag with the concrete type of sample and the given
// encode/decode pair. It is meant for types that cannot implement
// Serializable themselves.
func (e *Engine) RegisterCodec(tag string, sample any, encode EncodeFunc, decode DecodeFunc) error {
	if sample == nil || encode == nil || decode == nil {
		return faults.Wrap(faults.ErrUsage, "codec", "register", "codec requires sample, encoder, and decoder", nil)
	}
	return e.add(&entry{tag: tag, typ: reflect.TypeOf(sample), encode: encode, decode: decode})
}

// RegisterFunc is the typed form of RegisterCodec.
func RegisterFunc[T any](e *Engine, tag string, encode func(T) (any, error), decode func(any) (T, error)) error {
	var zero T
	return e.RegisterCodec(tag, zero,
		func(v any) (any, error) { return encode(v.(T)) },
		func(data any) (any, error) { return decode(data) },
	)
}

// Tags lists the registered tags in sorted order.
func (e *Engine) Tags() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tags := make([]string, 0, len(e.byTag))
	for tag := range e.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// TagOf returns the tag registered for the dynamic type of v.
func (e *Engine) TagOf(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	ent := e.lookupType(reflect.TypeOf(v))
	if ent == nil {
		return "", false
	}
	return ent.tag, true
}

func (e *Engine) add(ent *entry) error {
	tag := strings.TrimSpace(ent.tag)
	switch {
	case tag == "":
		return faults.Wrap(faults.ErrUsage, "codec", "register", "empty tag", nil)
	case tag == RefTag, tag == GraphTag:
		return faults.Wrap(faults.ErrUsage, "codec", "register", fmt.Sprintf("tag %q is reserved", tag), nil)
	}
	ent.tag = tag

	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.byTag[tag]; ok {
		if old.typ == ent.typ {
			return nil
		}
		return faults.Wrap(faults.ErrUsage, "codec", "register",
			fmt.Sprintf("tag %q already bound to %s", tag, old.typ), nil)
	}
	if old, ok := e.byType[ent.typ]; ok {
		return faults.Wrap(faults.ErrUsage, "codec", "register",
			fmt.Sprintf("%s already registered as %q", ent.typ, old.tag), nil)
	}
	e.byTag[tag] = ent
	e.byType[ent.typ] = ent
	return nil
}

func (e *Engine) lookupType(typ reflect.Type) *entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.byType[typ]
}

func (e *Engine) lookupTag(tag string) *entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.byTag[tag]
}

// KeySet is an unordered set of payload keys.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...string) KeySet {
	set := make(KeySet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the members in lexical order.
func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for key := range s {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func schemaDiff(fields []string, payload map[string]any) (missing, unexpected KeySet) {
	expected := NewKeySet(fields...)
	missing = KeySet{}
	unexpected = KeySet{}
	for key := range expected {
		if _, ok := payload[key]; !ok {
			missing[key] = struct{}{}
		}
	}
	for key := range payload {
		if !expected.Has(key) {
			unexpected[key] = struct{}{}
		}
	}
	return missing, unexpected
}

func encodeTime(t time.Time) (any, error) {
	return t.Format(time.RFC3339Nano), nil
}

func decodeTime(data any) (time.Time, error) {
	raw, ok := data.(string)
	if !ok {
		return time.Time{}, faults.Wrap(faults.ErrMissingElement, "codec", "decode time",
			fmt.Sprintf("expected string, got %T", data), nil)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, faults.Wrap(faults.ErrMissingElement, "codec", "decode time", raw, err)
	}
	return t, nil
}

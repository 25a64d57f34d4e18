package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"harvest/internal/faults"
)

// Legacy containers stored slots and root separately.
const (
	legacyObjectsKey   = "objects"
	legacyStructureKey = "structure"
)

var errNotReady = errors.New("referenced slot not rebuilt yet")

// SerializeGraph serializes v while preserving shared references. The result
// is a graph container {"type": "/", "data": [slot..., root]} whose last
// element refers to the root slot (or is the root itself when v is a
// primitive).
func (e *Engine) SerializeGraph(v any) (map[string]any, error) {
	w := &graphWriter{engine: e, seen: make(map[identity]int)}
	root, err := w.visit(v)
	if err != nil {
		return nil, err
	}
	return w.finish(root), nil
}

type graphWriter struct {
	engine *Engine
	slots  []any
	uses   []int
	seen   map[identity]int
	// keep pins every value recorded in seen. Identities are addresses, and
	// a payload freed mid-walk could otherwise hand its address to an
	// unrelated value.
	keep []any
}

func (w *graphWriter) visit(v any) (any, error) {
	if p, ok := w.engine.primitive(v); ok {
		return p, nil
	}
	id, shared := identityOf(v)
	if shared {
		if idx, ok := w.seen[id]; ok {
			w.uses[idx]++
			return refToken(idx), nil
		}
	}

	idx := len(w.slots)
	w.slots = append(w.slots, nil)
	w.uses = append(w.uses, 1)
	if shared {
		w.seen[id] = idx
		w.keep = append(w.keep, v)
	}

	node, err := w.engine.encode(v, w.visit)
	if err != nil {
		return nil, err
	}
	w.slots[idx] = node
	return refToken(idx), nil
}

// finish inlines every slot referenced exactly once (other than the root)
// into its use site and renumbers the surviving slots.
func (w *graphWriter) finish(root any) map[string]any {
	rootIdx, hasRoot := refIndex(root)
	remap := make(map[int]int, len(w.slots))
	for idx, uses := range w.uses {
		if uses > 1 || (hasRoot && idx == rootIdx) {
			remap[idx] = len(remap)
		}
	}

	var expand func(node any) any
	expand = func(node any) any {
		if idx, ok := refIndex(node); ok {
			if next, kept := remap[idx]; kept {
				return refToken(next)
			}
			return expand(w.slots[idx])
		}
		switch t := node.(type) {
		case []any:
			out := make([]any, len(t))
			for i, item := range t {
				out[i] = expand(item)
			}
			return out
		case map[string]any:
			out := make(map[string]any, len(t))
			for key, item := range t {
				out[key] = expand(item)
			}
			return out
		}
		return node
	}

	flat := make([]any, len(remap), len(remap)+1)
	for idx, next := range remap {
		flat[next] = expand(w.slots[idx])
	}
	flat = append(flat, expand(root))
	return envelope(GraphTag, flat)
}

// DeserializeGraph rebuilds the value encoded by SerializeGraph. Shared slots
// come back as the same value at every use site.
func (e *Engine) DeserializeGraph(v any) (any, error) {
	slots, root, err := graphParts(v)
	if err != nil {
		return nil, err
	}
	r := &graphReader{
		engine: e,
		slots:  slots,
		values: make([]any, len(slots)),
		done:   make([]bool, len(slots)),
	}
	if err := r.rebuild(); err != nil {
		return nil, err
	}
	return r.child(root)
}

type graphReader struct {
	engine *Engine
	slots  []any
	values []any
	done   []bool
}

func (r *graphReader) rebuild() error {
	pending := len(r.slots)
	for pending > 0 {
		progress := false
		for idx, node := range r.slots {
			if r.done[idx] {
				continue
			}
			value, err := r.engine.decode(node, r.child)
			if errors.Is(err, errNotReady) {
				continue
			}
			if err != nil {
				return fmt.Errorf("slot %d: %w", idx, err)
			}
			r.values[idx] = value
			r.done[idx] = true
			pending--
			progress = true
		}
		if !progress {
			return r.stuck()
		}
	}
	return nil
}

func (r *graphReader) child(node any) (any, error) {
	if idx, ok := refIndex(node); ok {
		if idx < 0 || idx >= len(r.slots) {
			return nil, faults.Wrap(faults.ErrUsage, "codec", "deserialize graph",
				fmt.Sprintf("reference %d out of range (%d slots)", idx, len(r.slots)), nil)
		}
		if !r.done[idx] {
			return nil, errNotReady
		}
		return r.values[idx], nil
	}
	return r.engine.decode(node, r.child)
}

func (r *graphReader) stuck() error {
	parts := make([]string, 0)
	for idx, node := range r.slots {
		if r.done[idx] {
			continue
		}
		label := "container"
		if m, ok := node.(map[string]any); ok {
			if tag, ok := m[TypeKey].(string); ok {
				label = tag
			}
		}
		parts = append(parts, fmt.Sprintf("%d (%s)", idx, label))
	}
	return faults.Wrap(faults.ErrUnsupportedRecursion, "codec", "deserialize graph",
		"slots reference each other: "+strings.Join(parts, ", "), nil)
}

// graphParts splits a container into its slots and root node, normalizing the
// legacy {"objects": [...], "structure": ...} layout.
func graphParts(v any) ([]any, any, error) {
	m, ok := v.(map[string]any)
	if !ok || m[TypeKey] != GraphTag {
		return nil, nil, faults.Wrap(faults.ErrUsage, "codec", "deserialize graph",
			fmt.Sprintf("expected graph container, got %T", v), nil)
	}
	switch data := m[DataKey].(type) {
	case []any:
		if len(data) == 0 {
			return nil, nil, faults.Wrap(faults.ErrUsage, "codec", "deserialize graph", "empty graph container", nil)
		}
		return data[:len(data)-1], data[len(data)-1], nil
	case map[string]any:
		objects, ok := data[legacyObjectsKey].([]any)
		if !ok {
			return nil, nil, faults.Missing("codec", "legacy graph objects")
		}
		structure, ok := data[legacyStructureKey]
		if !ok {
			return nil, nil, faults.Missing("codec", "legacy graph structure")
		}
		return objects, structure, nil
	default:
		return nil, nil, faults.Wrap(faults.ErrUsage, "codec", "deserialize graph",
			fmt.Sprintf("unexpected graph payload %T", data), nil)
	}
}

func refToken(idx int) map[string]any {
	return map[string]any{TypeKey: RefTag, DataKey: idx}
}

func refIndex(node any) (int, bool) {
	m, ok := node.(map[string]any)
	if !ok || len(m) != 2 || m[TypeKey] != RefTag {
		return 0, false
	}
	return toInt(m[DataKey])
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

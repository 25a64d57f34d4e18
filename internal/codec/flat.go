package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"harvest/internal/faults"
)

// visitFunc serializes or deserializes one child of a container. Flat mode
// recurses directly; graph mode interposes slots and reference tokens.
type visitFunc func(v any) (any, error)

// Serialize flattens v into primitives, []any, map[string]any and envelopes.
// Reference cycles cannot be expressed in flat mode and are rejected with
// faults.ErrUnsupportedRecursion; use SerializeGraph for shared structures.
func (e *Engine) Serialize(v any) (any, error) {
	w := &flatWriter{engine: e, active: make(map[identity]struct{})}
	return w.visit(v)
}

// Deserialize rebuilds a value produced by Serialize. Graph containers are
// detected and handed to DeserializeGraph.
func (e *Engine) Deserialize(v any) (any, error) {
	return e.decode(v, e.Deserialize)
}

type flatWriter struct {
	engine *Engine
	active map[identity]struct{}
}

func (w *flatWriter) visit(v any) (any, error) {
	id, tracked := identityOf(v)
	if tracked {
		if _, busy := w.active[id]; busy {
			return nil, faults.Wrap(faults.ErrUnsupportedRecursion, "codec", "serialize",
				fmt.Sprintf("%T refers back to itself", v), nil)
		}
		w.active[id] = struct{}{}
		defer delete(w.active, id)
	}
	return w.engine.encode(v, w.visit)
}

// primitive reports whether v serializes as itself and returns its canonical
// form. Named scalar types without a registered codec collapse to their base
// kind.
func (e *Engine) primitive(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, true
		}
		return nil, false
	}
	if e.lookupType(rv.Type()) != nil {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return nil, false
}

func (e *Engine) encode(v any, child visitFunc) (any, error) {
	if p, ok := e.primitive(v); ok {
		return p, nil
	}
	rv := reflect.ValueOf(v)
	if ent := e.lookupType(rv.Type()); ent != nil {
		var (
			data any
			err  error
		)
		if ent.serializable {
			data, err = v.(Serializable).Serialize()
		} else {
			data, err = ent.encode(v)
		}
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", ent.tag, err)
		}
		payload, err := e.encodePayload(data, child)
		if err != nil {
			return nil, err
		}
		return envelope(ent.tag, payload), nil
	}
	if _, ok := v.(Serializable); ok {
		return nil, faults.Wrap(faults.ErrNoSerializer, "codec", "serialize",
			fmt.Sprintf("%T is not registered", v), nil)
	}
	if isStructural(rv) {
		return e.encodeStructure(rv, child)
	}
	return nil, faults.Wrap(faults.ErrNoSerializer, "codec", "serialize", fmt.Sprintf("%T", v), nil)
}

// encodePayload serializes the data of an envelope. A structural payload has
// exactly one owner, so its elements are visited but the container itself is
// not handed to child.
func (e *Engine) encodePayload(data any, child visitFunc) (any, error) {
	if p, ok := e.primitive(data); ok {
		return p, nil
	}
	rv := reflect.ValueOf(data)
	if e.lookupType(rv.Type()) == nil && isStructural(rv) {
		return e.encodeStructure(rv, child)
	}
	return child(data)
}

func (e *Engine) encodeStructure(rv reflect.Value, child visitFunc) (any, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			item, err := child(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		out := make(map[string]any, len(keys))
		for _, key := range keys {
			item, err := child(rv.MapIndex(key).Interface())
			if err != nil {
				return nil, err
			}
			out[escapeKey(key.String())] = item
		}
		return out, nil
	}
	return nil, faults.Wrap(faults.ErrNoSerializer, "codec", "serialize", rv.Type().String(), nil)
}

func (e *Engine) decode(v any, child visitFunc) (any, error) {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			decoded, err := child(item)
			if err != nil {
				return nil, err
			}
			out[i] = decoded
		}
		return out, nil
	case map[string]any:
		rawTag, tagged := t[TypeKey]
		if !tagged {
			out := make(map[string]any, len(t))
			for key, item := range t {
				decoded, err := child(item)
				if err != nil {
					return nil, err
				}
				out[unescapeKey(key)] = decoded
			}
			return out, nil
		}
		tag, ok := rawTag.(string)
		if !ok {
			return nil, faults.Wrap(faults.ErrNoDeserializer, "codec", "deserialize",
				fmt.Sprintf("envelope tag has type %T", rawTag), nil)
		}
		switch tag {
		case RefTag:
			return nil, faults.Wrap(faults.ErrUsage, "codec", "deserialize", "reference token outside a graph container", nil)
		case GraphTag:
			return e.DeserializeGraph(t)
		}
		return e.decodeEnvelope(tag, t[DataKey], child)
	default:
		return v, nil
	}
}

func (e *Engine) decodeEnvelope(tag string, raw any, child visitFunc) (any, error) {
	ent := e.lookupTag(tag)
	if ent == nil {
		return nil, faults.Wrap(faults.ErrNoDeserializer, "codec", "deserialize", fmt.Sprintf("unknown tag %q", tag), nil)
	}

	var (
		payload any
		err     error
	)
	if isPlainStructure(raw) {
		payload, err = e.decode(raw, child)
	} else {
		payload, err = child(raw)
	}
	if err != nil {
		return nil, err
	}

	if !ent.serializable {
		value, err := ent.decode(payload)
		if err != nil {
			return nil, fmt.Errorf("deserialize %s: %w", tag, err)
		}
		return value, nil
	}

	obj := reflect.New(ent.typ.Elem()).Interface().(Serializable)
	if up, ok := obj.(Upgradeable); ok {
		if fields, isMap := payload.(map[string]any); isMap {
			missing, unexpected := schemaDiff(up.Fields(), fields)
			payload, err = up.Upgrade(fields, missing, unexpected)
			if err != nil {
				return nil, fmt.Errorf("upgrade %s: %w", tag, err)
			}
		}
	}
	if err := obj.Deserialize(payload); err != nil {
		return nil, fmt.Errorf("deserialize %s: %w", tag, err)
	}
	return obj, nil
}

func envelope(tag string, data any) map[string]any {
	return map[string]any{TypeKey: tag, DataKey: data}
}

func isStructural(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return true
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	}
	return false
}

// isPlainStructure reports whether a serialized node is a container rather
// than an envelope or reference token.
func isPlainStructure(v any) bool {
	switch t := v.(type) {
	case []any:
		return true
	case map[string]any:
		_, tagged := t[TypeKey]
		return !tagged
	}
	return false
}

func escapeKey(key string) string {
	if key == TypeKey || strings.HasPrefix(key, escapePrefix) {
		return escapePrefix + key
	}
	return key
}

func unescapeKey(key string) string {
	return strings.TrimPrefix(key, escapePrefix)
}

// identity distinguishes values that can be shared by reference.
type identity struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

func identityOf(v any) (identity, bool) {
	if v == nil {
		return identity{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()}, true
	}
	return identity{}, false
}

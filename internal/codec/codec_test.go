package codec_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"runtime"
	"testing"
	"time"

	"harvest/internal/codec"
	"harvest/internal/faults"
)

const nodeTag = "test.node"

type node struct {
	Name  string
	Left  *node
	Right *node
	When  time.Time
}

func (n *node) Serialize() (any, error) {
	return map[string]any{
		"name":  n.Name,
		"left":  n.Left,
		"right": n.Right,
		"when":  n.When,
	}, nil
}

func (n *node) Deserialize(data any) error {
	m, err := codec.Payload(data)
	if err != nil {
		return err
	}
	if n.Name, err = codec.Field[string](m, "name"); err != nil {
		return err
	}
	if n.Left, err = codec.Field[*node](m, "left"); err != nil {
		return err
	}
	if n.Right, err = codec.Field[*node](m, "right"); err != nil {
		return err
	}
	n.When, err = codec.Field[time.Time](m, "when")
	return err
}

type versioned struct {
	Name  string
	Score float64

	seenMissing    []string
	seenUnexpected []string
}

var lastUpgrade *versioned

func (v *versioned) Serialize() (any, error) {
	return map[string]any{"name": v.Name, "score": v.Score}, nil
}

func (v *versioned) Deserialize(data any) error {
	m, err := codec.Payload(data)
	if err != nil {
		return err
	}
	if v.Name, err = codec.Field[string](m, "name"); err != nil {
		return err
	}
	v.Score, err = codec.Field[float64](m, "score")
	return err
}

func (v *versioned) Fields() []string { return []string{"name", "score"} }

func (v *versioned) Upgrade(data map[string]any, missing, unexpected codec.KeySet) (map[string]any, error) {
	v.seenMissing = missing.Sorted()
	v.seenUnexpected = unexpected.Sorted()
	lastUpgrade = v
	if missing.Has("score") && unexpected.Has("points") {
		data["score"] = data["points"]
		delete(data, "points")
	}
	return data, nil
}

// tally builds its payload fresh on every call, so nothing but the encoder
// holds the map and list it returns.
type tally struct {
	N  int
	Xs []int
}

func (c *tally) Serialize() (any, error) {
	runtime.GC()
	return map[string]any{"n": c.N, "xs": []any{c.N, c.N}}, nil
}

func (c *tally) Deserialize(data any) error {
	m, err := codec.Payload(data)
	if err != nil {
		return err
	}
	if c.N, err = codec.Field[int](m, "n"); err != nil {
		return err
	}
	c.Xs, err = codec.SliceOf[int](m["xs"])
	return err
}

func newEngine(t *testing.T) *codec.Engine {
	t.Helper()
	engine := codec.NewEngine()
	if err := engine.Register(nodeTag, &node{}); err != nil {
		t.Fatalf("register node: %v", err)
	}
	if err := engine.Register("test.versioned", &versioned{}); err != nil {
		t.Fatalf("register versioned: %v", err)
	}
	if err := engine.Register("test.tally", &tally{}); err != nil {
		t.Fatalf("register tally: %v", err)
	}
	return engine
}

// viaJSON pushes a serialized tree through its textual form.
func viaJSON(t *testing.T, tree any) any {
	t.Helper()
	data, err := codec.Marshal(tree, codec.FormatJSON, false)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := codec.Unmarshal(data, codec.FormatJSON)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestFlatRoundTripEscapesReservedKeys(t *testing.T) {
	engine := newEngine(t)
	input := map[string]any{
		"type":   "not an envelope",
		`\odd`:   true,
		"nested": []any{"a", 2, map[string]any{"type": 3}},
	}

	out, err := engine.Serialize(input)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	m := out.(map[string]any)
	if _, ok := m["type"]; ok {
		t.Fatalf("reserved key leaked into output: %#v", m)
	}
	if m[`\type`] != "not an envelope" || m[`\\odd`] != true {
		t.Fatalf("keys not escaped: %#v", m)
	}

	back, err := engine.Deserialize(out)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(back, input) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", back, input)
	}
}

func TestFlatRoundTripObject(t *testing.T) {
	engine := newEngine(t)
	when := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	root := &node{Name: "root", Left: &node{Name: "leaf", When: when}, When: when}

	out, err := engine.Serialize(root)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	env := out.(map[string]any)
	if env[codec.TypeKey] != nodeTag {
		t.Fatalf("unexpected envelope tag: %#v", env)
	}

	back, err := engine.Deserialize(viaJSON(t, out))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	got := back.(*node)
	if got.Name != "root" || got.Left == nil || got.Left.Name != "leaf" || got.Right != nil {
		t.Fatalf("unexpected node: %#v", got)
	}
	if !got.When.Equal(when) || !got.Left.When.Equal(when) {
		t.Fatalf("timestamps not restored: %v %v", got.When, got.Left.When)
	}
}

func TestSerializeWithoutCodecFails(t *testing.T) {
	engine := newEngine(t)
	type unknown struct{ A int }

	if _, err := engine.Serialize(unknown{A: 1}); !errors.Is(err, faults.ErrNoSerializer) {
		t.Fatalf("expected ErrNoSerializer, got %v", err)
	}
	if _, err := engine.Serialize([]any{&versionedUnregistered{}}); !errors.Is(err, faults.ErrNoSerializer) {
		t.Fatalf("expected ErrNoSerializer for unregistered serializable, got %v", err)
	}
	envelope := map[string]any{"type": "missing.tag", "data": 1}
	if _, err := engine.Deserialize(envelope); !errors.Is(err, faults.ErrNoDeserializer) {
		t.Fatalf("expected ErrNoDeserializer, got %v", err)
	}
}

type versionedUnregistered struct{ versioned }

func TestTagsAndTagOf(t *testing.T) {
	engine := newEngine(t)

	tags := engine.Tags()
	want := []string{nodeTag, "test.tally", "test.versioned", codec.TimeTag}
	for _, tag := range want {
		found := false
		for _, got := range tags {
			if got == tag {
				found = true
			}
		}
		if !found {
			t.Fatalf("Tags() = %v, missing %s", tags, tag)
		}
	}
	for i := 1; i < len(tags); i++ {
		if tags[i-1] > tags[i] {
			t.Fatalf("Tags() not sorted: %v", tags)
		}
	}

	if tag, ok := engine.TagOf(&node{}); !ok || tag != nodeTag {
		t.Fatalf("TagOf(node) = %q, %v", tag, ok)
	}
	if tag, ok := engine.TagOf(time.Now()); !ok || tag != codec.TimeTag {
		t.Fatalf("TagOf(time) = %q, %v", tag, ok)
	}
	if _, ok := engine.TagOf(struct{}{}); ok {
		t.Fatal("expected no tag for an unregistered type")
	}
	if _, ok := engine.TagOf(nil); ok {
		t.Fatal("expected no tag for nil")
	}
}

func TestRegisterRejectsConflicts(t *testing.T) {
	engine := newEngine(t)
	if err := engine.Register(nodeTag, &node{}); err != nil {
		t.Fatalf("idempotent re-registration failed: %v", err)
	}
	if err := engine.Register(nodeTag, &versioned{}); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected tag conflict, got %v", err)
	}
	if err := engine.Register("other.node", &node{}); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected type conflict, got %v", err)
	}
	if err := engine.Register(codec.RefTag, &versionedUnregistered{}); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected reserved tag rejection, got %v", err)
	}
}

func TestGraphDeduplicatesSharedObjects(t *testing.T) {
	engine := newEngine(t)
	shared := &node{Name: "shared"}
	root := &node{Name: "root", Left: shared, Right: shared}

	container, err := engine.SerializeGraph(root)
	if err != nil {
		t.Fatalf("SerializeGraph: %v", err)
	}
	flat := container[codec.DataKey].([]any)
	if len(flat) != 3 {
		t.Fatalf("expected root slot, shared slot, and root reference; got %d entries: %#v", len(flat), flat)
	}
	sharedSlots := 0
	for _, slot := range flat[:len(flat)-1] {
		data := slot.(map[string]any)[codec.DataKey].(map[string]any)
		if data["name"] == "shared" {
			sharedSlots++
		}
	}
	if sharedSlots != 1 {
		t.Fatalf("expected exactly one slot for the shared node, got %d", sharedSlots)
	}

	back, err := engine.Deserialize(viaJSON(t, container))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	got := back.(*node)
	if got.Left == nil || got.Left != got.Right {
		t.Fatalf("shared node was duplicated: left=%p right=%p", got.Left, got.Right)
	}
	if got.Left.Name != "shared" {
		t.Fatalf("unexpected shared node: %#v", got.Left)
	}
}

func TestGraphInlinesSingleUseObjects(t *testing.T) {
	engine := newEngine(t)
	root := &node{Name: "root", Left: &node{Name: "only"}}

	container, err := engine.SerializeGraph(root)
	if err != nil {
		t.Fatalf("SerializeGraph: %v", err)
	}
	flat := container[codec.DataKey].([]any)
	if len(flat) != 2 {
		t.Fatalf("expected single root slot plus reference, got %#v", flat)
	}
	data := flat[0].(map[string]any)[codec.DataKey].(map[string]any)
	left, ok := data["left"].(map[string]any)
	if !ok || left[codec.TypeKey] != nodeTag {
		t.Fatalf("expected inlined node envelope, got %#v", data["left"])
	}
	last := flat[1].(map[string]any)
	if last[codec.TypeKey] != codec.RefTag || last[codec.DataKey] != 0 {
		t.Fatalf("expected root reference to slot 0, got %#v", last)
	}
}

func TestGraphPrimitiveRoot(t *testing.T) {
	engine := newEngine(t)
	container, err := engine.SerializeGraph("plain")
	if err != nil {
		t.Fatalf("SerializeGraph: %v", err)
	}
	back, err := engine.DeserializeGraph(container)
	if err != nil {
		t.Fatalf("DeserializeGraph: %v", err)
	}
	if back != "plain" {
		t.Fatalf("unexpected root: %#v", back)
	}
}

func TestGraphSharedListsStayShared(t *testing.T) {
	engine := newEngine(t)
	shared := map[string]any{"k": 1}
	root := []any{shared, shared}

	container, err := engine.SerializeGraph(root)
	if err != nil {
		t.Fatalf("SerializeGraph: %v", err)
	}
	back, err := engine.DeserializeGraph(viaJSON(t, container))
	if err != nil {
		t.Fatalf("DeserializeGraph: %v", err)
	}
	items := back.([]any)
	first := items[0].(map[string]any)
	second := items[1].(map[string]any)
	first["marker"] = true
	if second["marker"] != true {
		t.Fatal("expected both list entries to be the same map")
	}
}

func TestGraphFreshPayloadsAreNotAliased(t *testing.T) {
	engine := newEngine(t)
	root := make([]any, 200)
	for i := range root {
		root[i] = &tally{N: i}
	}

	container, err := engine.SerializeGraph(root)
	if err != nil {
		t.Fatalf("SerializeGraph: %v", err)
	}
	back, err := engine.DeserializeGraph(viaJSON(t, container))
	if err != nil {
		t.Fatalf("DeserializeGraph: %v", err)
	}
	items := back.([]any)
	if len(items) != len(root) {
		t.Fatalf("expected %d items, got %d", len(root), len(items))
	}
	for i, item := range items {
		got := item.(*tally)
		if got.N != i || !reflect.DeepEqual(got.Xs, []int{i, i}) {
			t.Fatalf("item %d decoded as n=%d xs=%v", i, got.N, got.Xs)
		}
	}
	if slots := container[codec.DataKey].([]any); len(slots) != 2 {
		t.Fatalf("expected only the root list slot and its reference, got %d entries", len(slots))
	}
}

func TestGraphCycleIsUnsupported(t *testing.T) {
	engine := newEngine(t)
	a := &node{Name: "a"}
	b := &node{Name: "b", Left: a}
	a.Left = b

	if _, err := engine.Serialize(a); !errors.Is(err, faults.ErrUnsupportedRecursion) {
		t.Fatalf("flat mode should reject cycles, got %v", err)
	}

	container, err := engine.SerializeGraph(a)
	if err != nil {
		t.Fatalf("SerializeGraph: %v", err)
	}
	_, err = engine.DeserializeGraph(viaJSON(t, container))
	if !errors.Is(err, faults.ErrUnsupportedRecursion) {
		t.Fatalf("expected ErrUnsupportedRecursion, got %v", err)
	}
}

func TestGraphResolvesForwardReferences(t *testing.T) {
	engine := newEngine(t)
	container := map[string]any{
		"type": "/",
		"data": []any{
			map[string]any{"type": nodeTag, "data": map[string]any{
				"name": "root", "left": map[string]any{"type": "@", "data": 1},
				"right": map[string]any{"type": "@", "data": 1}, "when": nil,
			}},
			map[string]any{"type": nodeTag, "data": map[string]any{
				"name": "later", "left": nil, "right": nil, "when": nil,
			}},
			map[string]any{"type": "@", "data": 0},
		},
	}
	back, err := engine.Deserialize(container)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	got := back.(*node)
	if got.Left == nil || got.Left != got.Right || got.Left.Name != "later" {
		t.Fatalf("forward reference not resolved: %#v", got)
	}
}

func TestGraphLegacyLayout(t *testing.T) {
	engine := newEngine(t)
	container := map[string]any{
		"type": "/",
		"data": map[string]any{
			"objects": []any{
				map[string]any{"type": nodeTag, "data": map[string]any{
					"name": "legacy", "left": nil, "right": nil, "when": nil,
				}},
			},
			"structure": []any{
				map[string]any{"type": "@", "data": json.Number("0")},
				map[string]any{"type": "@", "data": json.Number("0")},
			},
		},
	}
	back, err := engine.DeserializeGraph(container)
	if err != nil {
		t.Fatalf("DeserializeGraph: %v", err)
	}
	items := back.([]any)
	if len(items) != 2 || items[0] != items[1] {
		t.Fatalf("legacy references not shared: %#v", items)
	}
	if items[0].(*node).Name != "legacy" {
		t.Fatalf("unexpected legacy node: %#v", items[0])
	}
}

func TestGraphRejectsBadReference(t *testing.T) {
	engine := newEngine(t)
	container := map[string]any{
		"type": "/",
		"data": []any{map[string]any{"type": "@", "data": 4}},
	}
	if _, err := engine.DeserializeGraph(container); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := engine.Deserialize(map[string]any{"type": "@", "data": 0}); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected usage error for stray reference, got %v", err)
	}
}

func TestUpgradeReceivesSchemaDiff(t *testing.T) {
	engine := newEngine(t)
	old := map[string]any{
		"type": "test.versioned",
		"data": map[string]any{"name": "quiz", "points": json.Number("9.5")},
	}

	back, err := engine.Deserialize(old)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	got := back.(*versioned)
	if got.Score != 9.5 {
		t.Fatalf("upgrade did not map points to score: %#v", got)
	}
	if lastUpgrade != got {
		t.Fatal("upgrade hook was not called on the constructed value")
	}
	if !reflect.DeepEqual(got.seenMissing, []string{"score"}) {
		t.Fatalf("unexpected missing keys: %v", got.seenMissing)
	}
	if !reflect.DeepEqual(got.seenUnexpected, []string{"points"}) {
		t.Fatalf("unexpected extra keys: %v", got.seenUnexpected)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	engine := newEngine(t)
	shared := &node{Name: "shared", When: time.Date(2023, 9, 4, 0, 0, 0, 0, time.UTC)}
	root := []any{shared, &node{Name: "other", Left: shared}}

	container, err := engine.SerializeGraph(root)
	if err != nil {
		t.Fatalf("SerializeGraph: %v", err)
	}
	text, err := codec.Marshal(container, codec.FormatYAML, true)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	tree, err := codec.Unmarshal(text, codec.FormatYAML)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	back, err := engine.Deserialize(tree)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	items := back.([]any)
	if items[0] != items[1].(*node).Left {
		t.Fatal("shared node not preserved through yaml")
	}
	if !items[0].(*node).When.Equal(shared.When) {
		t.Fatalf("timestamp mismatch: %v", items[0].(*node).When)
	}
}

func TestFieldConversions(t *testing.T) {
	payload := map[string]any{
		"n":     json.Number("42"),
		"f":     7,
		"s":     "x",
		"null":  nil,
		"items": []any{json.Number("1"), 2, 3.0},
	}
	if n, err := codec.Field[int](payload, "n"); err != nil || n != 42 {
		t.Fatalf("int field: %v %v", n, err)
	}
	if f, err := codec.Field[float64](payload, "f"); err != nil || f != 7 {
		t.Fatalf("float field: %v %v", f, err)
	}
	if s, err := codec.Field[string](payload, "null"); err != nil || s != "" {
		t.Fatalf("null field: %q %v", s, err)
	}
	if _, err := codec.Field[string](payload, "absent"); !errors.Is(err, faults.ErrMissingElement) {
		t.Fatalf("expected missing element, got %v", err)
	}
	if _, err := codec.Field[int](payload, "s"); !errors.Is(err, faults.ErrMissingElement) {
		t.Fatalf("expected conversion failure, got %v", err)
	}
	if s, err := codec.OptionalField[string](payload, "absent"); err != nil || s != "" {
		t.Fatalf("optional field: %q %v", s, err)
	}
	items, err := codec.SliceOf[int](payload["items"])
	if err != nil || !reflect.DeepEqual(items, []int{1, 2, 3}) {
		t.Fatalf("slice: %v %v", items, err)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]codec.Format{"": codec.FormatJSON, "JSON": codec.FormatJSON, "yml": codec.FormatYAML, "yaml": codec.FormatYAML}
	for input, want := range cases {
		got, err := codec.ParseFormat(input)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := codec.ParseFormat("xml"); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if codec.DetectFormat("/tmp/out.YAML") != codec.FormatYAML || codec.DetectFormat("x.json") != codec.FormatJSON {
		t.Fatal("unexpected format detection")
	}
}

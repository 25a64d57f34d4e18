package testsupport

import (
	"testing"

	"harvest/internal/codec"
	"harvest/internal/gradebook"
	"harvest/internal/registry"
	"harvest/internal/store"
)

// NewEngine returns a codec engine with the store and gradebook types bound.
func NewEngine(t testing.TB) *codec.Engine {
	t.Helper()

	engine := codec.NewEngine()
	if err := store.RegisterCodecs(engine); err != nil {
		t.Fatalf("store.RegisterCodecs: %v", err)
	}
	if err := gradebook.RegisterCodecs(engine); err != nil {
		t.Fatalf("gradebook.RegisterCodecs: %v", err)
	}
	return engine
}

// NewRegistry returns a sealed registry with the gradebook adapter wired in,
// along with the engine it registered codecs into.
func NewRegistry(t testing.TB) (*registry.Registry, *codec.Engine) {
	t.Helper()

	engine := NewEngine(t)
	reg := registry.New(nil)
	if err := gradebook.Register(reg, engine); err != nil {
		t.Fatalf("gradebook.Register: %v", err)
	}
	reg.Seal()
	return reg, engine
}

package record

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"harvest/internal/codec"
)

// Kind tags a variant of domain object.
type Kind string

// KindPlaceholder is the pseudo-kind under which unresolved references are
// grouped.
const KindPlaceholder Kind = "Placeholder"

// PlaceholderTag is the codec tag of Placeholder.
const PlaceholderTag = "record.Placeholder"

// Label renders the kind for humans, e.g. "meeting_note" becomes "Meeting Note".
func (k Kind) Label() string {
	words := strings.FieldsFunc(string(k), func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// Identifiable is implemented by every domain object. ID must be stable for
// the lifetime of the object and unique within its kind.
type Identifiable interface {
	Kind() Kind
	ID() string
}

// Object is a domain object: identifiable, printable, and serializable.
type Object interface {
	Identifiable
	fmt.Stringer
	codec.Serializable
}

// Key addresses an object inside the store.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Kind, k.ID)
}

// IsNil reports whether obj is nil or an interface wrapping a nil pointer,
// such as a resolver returning (*Grade)(nil).
func IsNil(obj Object) bool {
	if obj == nil {
		return true
	}
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// KeyOf returns the store key of obj. Placeholders are keyed by the kind they
// stand in for.
func KeyOf(obj Object) Key {
	if p, ok := obj.(*Placeholder); ok {
		return Key{Kind: p.Target, ID: p.Ident}
	}
	return Key{Kind: obj.Kind(), ID: obj.ID()}
}

// Placeholder is a reference to an object that has not been fetched yet.
type Placeholder struct {
	Target Kind
	Ident  string
}

// NewPlaceholder builds a placeholder for the object (target, id).
func NewPlaceholder(target Kind, id string) *Placeholder {
	return &Placeholder{Target: target, Ident: id}
}

func (p *Placeholder) Kind() Kind { return KindPlaceholder }

func (p *Placeholder) ID() string { return p.Ident }

// TargetKind is the kind of the object this placeholder stands in for.
func (p *Placeholder) TargetKind() Kind { return p.Target }

func (p *Placeholder) String() string {
	return fmt.Sprintf("<unresolved %s %s>", p.Target, p.Ident)
}

func (p *Placeholder) Serialize() (any, error) {
	return map[string]any{"target": string(p.Target), "id": p.Ident}, nil
}

func (p *Placeholder) Deserialize(data any) error {
	m, err := codec.Payload(data)
	if err != nil {
		return err
	}
	target, err := codec.Field[string](m, "target")
	if err != nil {
		return err
	}
	id, err := codec.Field[string](m, "id")
	if err != nil {
		return err
	}
	p.Target = Kind(target)
	p.Ident = id
	return nil
}

// RegisterCodecs binds the record package types to engine.
func RegisterCodecs(engine *codec.Engine) error {
	return engine.Register(PlaceholderTag, &Placeholder{})
}

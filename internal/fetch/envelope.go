package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvest/internal/faults"
)

// Shape classifies the runtime shape of a payload.
type Shape string

const (
	ShapeHTML Shape = "html"
	ShapeJSON Shape = "json"
)

// Envelope pairs one fetched payload with its resource tag and shape.
// The zero value is not usable; construct envelopes with NewEnvelope.
type Envelope struct {
	resource string
	shape    Shape
	payload  any
}

// NewEnvelope wraps payload for resource, deriving the shape from the payload
// itself. HTML text is parsed into a goquery document and JSON text is decoded
// with json.Number preserved.
func NewEnvelope(resource string, payload any) (Envelope, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return Envelope{}, faults.Wrap(faults.ErrUsage, "fetch", "envelope", "empty resource tag", nil)
	}
	shape, normalized, err := detect(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope %s: %w", resource, err)
	}
	return Envelope{resource: resource, shape: shape, payload: normalized}, nil
}

// Resource is the logical resource the payload was fetched for.
func (e Envelope) Resource() string { return e.resource }

// Shape is the payload shape derived at construction.
func (e Envelope) Shape() Shape { return e.shape }

// Payload returns the normalized payload: *goquery.Selection for HTML, the
// decoded value for JSON.
func (e Envelope) Payload() any { return e.payload }

// HTML returns the payload as a selection rooted at the document.
func (e Envelope) HTML() (*goquery.Selection, error) {
	sel, ok := e.payload.(*goquery.Selection)
	if !ok || e.shape != ShapeHTML {
		return nil, faults.Wrap(faults.ErrMissingElement, "fetch", e.resource,
			fmt.Sprintf("expected html payload, got %s", e.shape), nil)
	}
	return sel, nil
}

// JSON returns the decoded JSON payload.
func (e Envelope) JSON() (any, error) {
	if e.shape != ShapeJSON {
		return nil, faults.Wrap(faults.ErrMissingElement, "fetch", e.resource,
			fmt.Sprintf("expected json payload, got %s", e.shape), nil)
	}
	return e.payload, nil
}

// JSONObject returns the payload as a JSON object.
func (e Envelope) JSONObject() (map[string]any, error) {
	value, err := e.JSON()
	if err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, faults.Missing("fetch", e.resource+" json object")
	}
	return obj, nil
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s (%s)", e.resource, e.shape)
}

func detect(payload any) (Shape, any, error) {
	switch p := payload.(type) {
	case *goquery.Document:
		if p == nil {
			break
		}
		return ShapeHTML, p.Selection, nil
	case *goquery.Selection:
		if p == nil {
			break
		}
		return ShapeHTML, p, nil
	case map[string]any, []any:
		return ShapeJSON, p, nil
	case json.RawMessage:
		return detectText([]byte(p))
	case []byte:
		return detectText(p)
	case string:
		return detectText([]byte(p))
	}
	return "", nil, faults.Wrap(faults.ErrMissingElement, "fetch", "detect shape", fmt.Sprintf("unsupported payload %T", payload), nil)
}

func detectText(raw []byte) (Shape, any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil, faults.Wrap(faults.ErrMissingElement, "fetch", "detect shape", "empty payload", nil)
	}
	switch trimmed[0] {
	case '<':
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
		if err != nil {
			return "", nil, faults.Wrap(faults.ErrMissingElement, "fetch", "parse html", "", err)
		}
		return ShapeHTML, doc.Selection, nil
	case '{', '[':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var value any
		if err := dec.Decode(&value); err != nil {
			return "", nil, faults.Wrap(faults.ErrMissingElement, "fetch", "parse json", "", err)
		}
		return ShapeJSON, value, nil
	}
	return "", nil, faults.Wrap(faults.ErrMissingElement, "fetch", "detect shape", "payload is neither html nor json", nil)
}

package fetch_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"harvest/internal/faults"
	"harvest/internal/fetch"
)

func TestNewEnvelopeDetectsShape(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    fetch.Shape
	}{
		{"html string", "  <table><tr><td>A</td></tr></table>", fetch.ShapeHTML},
		{"html bytes", []byte("<div>x</div>"), fetch.ShapeHTML},
		{"json object text", `{"id": 1}`, fetch.ShapeJSON},
		{"json array text", []byte(`[1, 2]`), fetch.ShapeJSON},
		{"raw message", json.RawMessage(`{"a":true}`), fetch.ShapeJSON},
		{"decoded map", map[string]any{"a": 1}, fetch.ShapeJSON},
		{"decoded list", []any{1}, fetch.ShapeJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := fetch.NewEnvelope("grades", tc.payload)
			if err != nil {
				t.Fatalf("NewEnvelope: %v", err)
			}
			if env.Shape() != tc.want {
				t.Fatalf("shape = %s, want %s", env.Shape(), tc.want)
			}
			if env.Resource() != "grades" {
				t.Fatalf("unexpected resource %q", env.Resource())
			}
		})
	}
}

func TestNewEnvelopeRejectsUnknownPayloads(t *testing.T) {
	for _, payload := range []any{"plain text", "", 42, nil} {
		if _, err := fetch.NewEnvelope("grades", payload); !errors.Is(err, faults.ErrMissingElement) {
			t.Fatalf("payload %#v: expected shape error, got %v", payload, err)
		}
	}
	if _, err := fetch.NewEnvelope(" ", "{}"); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected usage error for empty resource, got %v", err)
	}
}

func TestEnvelopeAccessors(t *testing.T) {
	env, err := fetch.NewEnvelope("grades", `<ul><li class="g">A</li><li class="g">B</li></ul>`)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	sel, err := env.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if n := sel.Find("li.g").Length(); n != 2 {
		t.Fatalf("expected 2 list items, got %d", n)
	}
	if _, err := env.JSON(); !errors.Is(err, faults.ErrMissingElement) {
		t.Fatalf("expected shape mismatch error, got %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p>hi</p>"))
	if err != nil {
		t.Fatalf("goquery: %v", err)
	}
	env, err = fetch.NewEnvelope("page", doc)
	if err != nil || env.Shape() != fetch.ShapeHTML {
		t.Fatalf("document payload: %v %v", env.Shape(), err)
	}

	env, err = fetch.NewEnvelope("meeting", `{"id": "m1", "count": 3}`)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	obj, err := env.JSONObject()
	if err != nil {
		t.Fatalf("JSONObject: %v", err)
	}
	if obj["count"] != json.Number("3") {
		t.Fatalf("expected json.Number, got %#v", obj["count"])
	}
	if _, err := env.HTML(); !errors.Is(err, faults.ErrMissingElement) {
		t.Fatalf("expected shape mismatch error, got %v", err)
	}
}

func TestResourceOf(t *testing.T) {
	cases := map[string]string{
		"grades":       "grades",
		"meeting/m1":   "meeting",
		"/meeting/m1/": "meeting",
		" course/c/1 ": "course",
	}
	for target, want := range cases {
		if got := fetch.ResourceOf(target); got != want {
			t.Fatalf("ResourceOf(%q) = %q, want %q", target, got, want)
		}
	}
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "harvest-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/meeting/m1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"m1"}`))
		case "/meeting/gone":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	f, err := fetch.NewHTTPFetcher(server.URL+"/", time.Second, fetch.WithUserAgent("harvest-test"))
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	ctx := context.Background()

	env, err := f.Fetch(ctx, "meeting/m1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if env.Resource() != "meeting" || env.Shape() != fetch.ShapeJSON {
		t.Fatalf("unexpected envelope %s", env)
	}
	if _, err := f.Fetch(ctx, "meeting/gone"); !errors.Is(err, faults.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if _, err := f.Fetch(ctx, "broken"); !errors.Is(err, faults.ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestHTTPFetcherRejectsOversizedBody(t *testing.T) {
	rows := strings.Repeat(`<tr data-id="g"><td class="score">1</td></tr>`, 64)
	page := "<table id=\"grades\"><tbody>" + rows + "</tbody></table>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	limited, err := fetch.NewHTTPFetcher(server.URL, time.Second, fetch.WithMaxBodyBytes(int64(len(page)-1)))
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	if _, err := limited.Fetch(ctx, "grades"); !errors.Is(err, faults.ErrConnectivity) {
		t.Fatalf("expected connectivity error for truncated body, got %v", err)
	}

	exact, err := fetch.NewHTTPFetcher(server.URL, time.Second, fetch.WithMaxBodyBytes(int64(len(page))))
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	env, err := exact.Fetch(ctx, "grades")
	if err != nil {
		t.Fatalf("Fetch at the limit: %v", err)
	}
	doc, err := env.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if n := doc.Find("tr[data-id]").Length(); n != 64 {
		t.Fatalf("expected 64 rows, got %d", n)
	}
}

func TestNewHTTPFetcherRequiresBaseURL(t *testing.T) {
	if _, err := fetch.NewHTTPFetcher(" ", 0); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDirFetcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "meeting"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meeting", "m1.json"), []byte(`{"id":"m1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "grades.html"), []byte(`<table></table>`), 0o644); err != nil {
		t.Fatal(err)
	}

	f := fetch.DirFetcher{Dir: dir}
	ctx := context.Background()

	env, err := f.Fetch(ctx, "meeting/m1")
	if err != nil || env.Shape() != fetch.ShapeJSON || env.Resource() != "meeting" {
		t.Fatalf("meeting fixture: %v %v", env, err)
	}
	env, err = f.Fetch(ctx, "grades")
	if err != nil || env.Shape() != fetch.ShapeHTML {
		t.Fatalf("grades fixture: %v %v", env, err)
	}
	if _, err := f.Fetch(ctx, "meeting/none"); !errors.Is(err, faults.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if _, err := f.Fetch(ctx, "../etc/passwd"); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

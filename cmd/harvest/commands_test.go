package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"harvest/internal/faults"
	"harvest/internal/record"
	"harvest/internal/testsupport"
)

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
}

func TestIngestThenShowCounts(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "ingest", "grades"}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var summary ingestSummary
	decodeJSON(t, out, &summary)
	if summary.Parsed != 7 || summary.Placeholders != 2 || summary.Snapshot == "" {
		t.Fatalf("unexpected ingest summary: %+v", summary)
	}

	out, _, err = runCLI(t, []string{"--json", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var counts map[string]int
	decodeJSON(t, out, &counts)
	want := map[string]int{"Course": 2, "Grade": 3, "Placeholder": 2}
	for kind, n := range want {
		if counts[kind] != n {
			t.Fatalf("expected %d %s, got %v", n, kind, counts)
		}
	}

	out, _, err = runCLI(t, []string{"show", "grades"}, env.configPath)
	if err != nil {
		t.Fatalf("show grades: %v", err)
	}
	requireContains(t, out, "g1")
	requireContains(t, out, "Midterm")
}

func TestShowListsTags(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "show", "--tags"}, env.configPath)
	if err != nil {
		t.Fatalf("show --tags: %v", err)
	}
	var tags []string
	decodeJSON(t, out, &tags)
	want := map[string]bool{"gradebook.Grade": false, "record.Placeholder": false, "store.Snapshot": false}
	for _, tag := range tags {
		if _, ok := want[tag]; ok {
			want[tag] = true
		}
	}
	for tag, found := range want {
		if !found {
			t.Fatalf("expected tag %s in %v", tag, tags)
		}
	}

	if _, _, err := runCLI(t, []string{"ingest", "grades"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out, _, err = runCLI(t, []string{"--json", "show", "grade"}, env.configPath)
	if err != nil {
		t.Fatalf("show grade: %v", err)
	}
	var items []map[string]any
	decodeJSON(t, out, &items)
	if len(items) != 3 || items[0]["tag"] != "gradebook.Grade" {
		t.Fatalf("expected tagged grade items, got %v", items)
	}
}

func TestIngestIsIdempotentAcrossRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	for i := 0; i < 2; i++ {
		if _, _, err := runCLI(t, []string{"ingest", "grades"}, env.configPath); err != nil {
			t.Fatalf("ingest run %d: %v", i, err)
		}
	}
	out, _, err := runCLI(t, []string{"--json", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var counts map[string]int
	decodeJSON(t, out, &counts)
	if counts["Grade"] != 3 || counts["Placeholder"] != 2 {
		t.Fatalf("expected stable counts after re-ingest, got %v", counts)
	}
}

func TestResolveFillsPlaceholdersAndSkipsFailures(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"ingest", "grades"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out, _, err := runCLI(t, []string{"--json", "resolve"}, env.configPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var report map[string]any
	decodeJSON(t, out, &report)
	if report["requested"] != float64(2) || report["resolved"] != float64(1) || report["outstanding"] != float64(1) {
		t.Fatalf("unexpected resolve report: %v", report)
	}

	out, _, err = runCLI(t, []string{"show", "meeting"}, env.configPath)
	if err != nil {
		t.Fatalf("show meeting: %v", err)
	}
	requireContains(t, out, "m7")
	requireContains(t, out, "Parent conference")

	out, _, err = runCLI(t, []string{"resolve"}, env.configPath)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	requireContains(t, out, "Resolved 0 of 1")
}

func TestStrictResolveReportsUpstreamFailure(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStrictResolve())

	if _, _, err := runCLI(t, []string{"ingest", "grades"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	_, _, err := runCLI(t, []string{"resolve"}, env.configPath)
	if !errors.Is(err, faults.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
	if code := faults.ExitCode(err); code != faults.ExitUpstream {
		t.Fatalf("expected exit code %d, got %d", faults.ExitUpstream, code)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"ingest", "--resolve", "grades"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	target := filepath.Join(t.TempDir(), "store.yaml")
	out, _, err := runCLI(t, []string{"export", target}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "(yaml)")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected export at %s: %v", target, err)
	}

	other := setupCLITestEnv(t)
	out, _, err = runCLI(t, []string{"import", target}, other.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "(replace)")

	out, _, err = runCLI(t, []string{"--json", "show"}, other.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var counts map[string]int
	decodeJSON(t, out, &counts)
	if counts["Grade"] != 3 || counts["Meeting"] != 1 || counts["Placeholder"] != 1 {
		t.Fatalf("unexpected counts after import: %v", counts)
	}
}

func TestExportToStdout(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"ingest", "grades"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out, _, err := runCLI(t, []string{"export", "-", "--format", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var doc map[string]any
	decodeJSON(t, out, &doc)
	if doc["type"] != "/" {
		t.Fatalf("expected container document, got type %v", doc["type"])
	}
	requireContains(t, out, "gradebook.Grade")
}

func TestSnapshotsListAndPrune(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, args := range [][]string{{"ingest", "grades"}, {"ingest", "meetings"}, {"resolve"}} {
		if _, _, err := runCLI(t, args, env.configPath); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	out, _, err := runCLI(t, []string{"--json", "snapshots"}, env.configPath)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	var entries []map[string]any
	decodeJSON(t, out, &entries)
	if len(entries) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(entries))
	}
	if entries[0]["note"] != "resolve" {
		t.Fatalf("expected newest snapshot first, got %v", entries[0])
	}

	out, _, err = runCLI(t, []string{"snapshots", "--prune", "--keep", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	requireContains(t, out, "Pruned 2 snapshot(s)")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); !errors.Is(err, faults.ErrUsage) {
		t.Fatalf("expected init to refuse overwriting an existing file, got %v", err)
	}
}

func TestUsageErrorsMapToExitCode(t *testing.T) {
	env := setupCLITestEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"ingest without target", []string{"ingest"}},
		{"resolve with extra args", []string{"resolve", "now"}},
		{"bad export format", []string{"export", "-", "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args, env.configPath)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := faults.ExitCode(err); code != faults.ExitUsage {
				t.Fatalf("expected exit code %d, got %d (%v)", faults.ExitUsage, code, err)
			}
		})
	}
}

func TestMatchKind(t *testing.T) {
	tests := map[string]string{
		"grade":        "Grade",
		"Grades":       "Grade",
		"MEETING":      "Meeting",
		"placeholders": "Placeholder",
		"Unknown":      "Unknown",
	}
	for input, want := range tests {
		if got := matchKind(input, []record.Kind{"Course", "Grade", "Meeting"}); string(got) != want {
			t.Errorf("matchKind(%q) = %q, want %q", input, got, want)
		}
	}
}

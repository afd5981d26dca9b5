package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLintAcceptsTaggedQueries(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "q.go", "package q\n\nconst QOne = `--sql 2a35990b-8ef0-4068-aefa-aa39dad70bba\nselect 1;\n`\n\nconst Label = \"not sql\"\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
}

func TestLintReportsMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "q.go", "package q\n\nconst QBare = `select id from users;`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 || violations[0].name != "QBare" {
		t.Fatalf("violations = %v", violations)
	}
}

func TestLintReportsDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	marker := "--sql 9c48c80c-ccf7-4272-a45b-5b7a07172160"
	writeSource(t, dir, "a.go", "package q\n\nconst QA = `"+marker+"\nselect 1;\n`\n")
	writeSource(t, dir, "b.go", "package q\n\nconst QB = `"+marker+"\nupdate users set credits = 0;\n`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v", violations)
	}
	if !strings.Contains(violations[0].message, "already used by QA") {
		t.Fatalf("message = %q", violations[0].message)
	}
}

func TestSqlinlinePackageIsClean(t *testing.T) {
	violations, err := lint([]string{filepath.Join("..", "..", "sqlinline")})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("sqlinline violations: %v", violations)
	}
}

package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "uploads/a.png", want: "uploads/a.png"},
		{in: "/uploads/a.png", want: "uploads/a.png"},
		{in: "./results//b.png", want: "results/b.png"},
		{in: `uploads\c.png`, want: "uploads/c.png"},
		{in: "uploads/../../etc/passwd", wantErr: true},
		{in: "..", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := sanitizeKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "results/r.png", []byte("png"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !store.Exists(key) {
		t.Fatalf("Exists(%q) = false after write", key)
	}
	data, err := store.Read(ctx, key)
	if err != nil || string(data) != "png" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	rc, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	streamed, _ := io.ReadAll(rc)
	rc.Close()
	if string(streamed) != "png" {
		t.Fatalf("Open content = %q", streamed)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, ResultsPrefix))
	if len(entries) != 1 {
		t.Fatalf("expected only the final file in results, got %d entries", len(entries))
	}

	if err := store.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if store.Exists(key) {
		t.Fatalf("Exists after Remove")
	}
	if err := store.Remove(key); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := store.Read(ctx, key); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Read missing error = %v, want ErrNotExist", err)
	}
}

func TestArtifactKeys(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	upload := UploadKey("u1", "JPG", at)
	if !regexp.MustCompile(`^uploads/20240309_140507_u1_[0-9a-f]{8}\.jpg$`).MatchString(upload) {
		t.Fatalf("UploadKey = %q", upload)
	}
	if upload == UploadKey("u1", "JPG", at) {
		t.Fatalf("UploadKey should differ between calls")
	}
	if got := ResultKey("j1", at); got != "results/result_j1_20240309140507.png" {
		t.Fatalf("ResultKey = %q", got)
	}
}

package zip

import (
	stdzip "archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	var buf bytes.Buffer
	err := ArchiveAssets(&buf, []Asset{
		{Filename: "uploads/face.png", Data: []byte("source")},
		{Filename: "results/face.png", Data: []byte("result")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}
	zr, err := stdzip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	want := map[string]string{"face.png": "source", "1-face.png": "result"}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if want[f.Name] != string(data) {
			t.Fatalf("entry %s = %q", f.Name, data)
		}
	}
}

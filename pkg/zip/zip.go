// Package zip bundles job artifacts into a single download.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"time"
)

type Asset struct {
	Filename string
	Data     []byte
	Modified time.Time
}

// ArchiveAssets writes assets as a zip archive to w. Duplicate names get a
// numeric prefix so no entry is shadowed.
func ArchiveAssets(w io.Writer, assets []Asset) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := path.Base(asset.Filename)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d-%s", n, name)
		}
		seen[path.Base(asset.Filename)]++
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: asset.Modified}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := fw.Write(asset.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	return zw.Close()
}

// Package storage persists uploaded sources and produced results on the
// local filesystem under a single root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key prefixes for the two artifact families.
const (
	UploadsPrefix = "uploads"
	ResultsPrefix = "results"
)

// ErrNotExist is returned when a key has no backing file.
var ErrNotExist = errors.New("storage: artifact does not exist")

// FileStore persists artifacts onto the local filesystem. Keys are relative,
// slash separated and never escape the root.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	for _, dir := range []string{basePath, filepath.Join(basePath, UploadsPrefix), filepath.Join(basePath, ResultsPrefix)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure base path: %w", err)
		}
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// UploadKey names a source upload:
// uploads/<YYYYMMDD_HHMMSS>_<userID>_<8 hex><ext>. The random suffix keeps
// two uploads by one user within the same second apart.
func UploadKey(userID, ext string, at time.Time) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%s_%s_%s%s", UploadsPrefix, at.Format("20060102_150405"), userID, suffix, ext)
}

// ResultKey names a job result: results/result_<jobID>_<YYYYMMDDHHMMSS>.png.
func ResultKey(jobID string, at time.Time) string {
	return fmt.Sprintf("%s/result_%s_%s.png", ResultsPrefix, jobID, at.Format("20060102150405"))
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. The file appears atomically.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: chmod file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: rename file: %w", err)
	}
	return cleanKey, nil
}

// Read loads the bytes stored at key.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

// Open returns a reader for key; the caller closes it.
func (s *FileStore) Open(key string) (io.ReadCloser, error) {
	_, fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}

// Exists reports whether key is backed by a regular file.
func (s *FileStore) Exists(key string) bool {
	_, fullPath, err := s.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes key. A missing file is not an error.
func (s *FileStore) Remove(key string) error {
	_, fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

func (s *FileStore) resolve(key string) (string, string, error) {
	if s == nil {
		return "", "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	return cleanKey, filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

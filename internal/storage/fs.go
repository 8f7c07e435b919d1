package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/mosaic/internal/checksum"
	"github.com/starford/mosaic/internal/models"
)

// DefaultExtensions are the image formats the library accepts.
var DefaultExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "webp", "tiff", "tif"}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to library directory
	exts map[string]struct{}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist. With no extensions, DefaultExtensions apply.
func NewFS(root string, extensions ...string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts["."+strings.TrimPrefix(strings.ToLower(e), ".")] = struct{}{}
	}
	return &FS{root: abs, exts: exts}, nil
}

// Root returns the absolute library root.
func (f *FS) Root() string {
	return f.root
}

// IsImage reports whether the extension of path is accepted, ignoring case.
func (f *FS) IsImage(path string) bool {
	_, ok := f.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// safePath resolves a relative path against the library root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes library root: %s", rel)
	}
	return abs, nil
}

func (f *FS) entry(abs string, info fs.FileInfo) models.ImageFile {
	rel, _ := filepath.Rel(f.root, abs)
	return models.ImageFile{
		Path:        filepath.ToSlash(rel),
		Size:        info.Size(),
		Fingerprint: checksum.Stat(info.Size(), info.ModTime()),
		ModTime:     info.ModTime(),
	}
}

// List walks dir (relative to root) and returns every image file. Hidden
// files and directories are skipped.
func (f *FS) List(dir string) ([]models.ImageFile, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.ImageFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != base && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !f.IsImage(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, f.entry(p, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Stat returns the listing entry for one image.
func (f *FS) Stat(path string) (models.ImageFile, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.ImageFile{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.ImageFile{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.ImageFile{}, fmt.Errorf("storage: %s is a directory", path)
	}
	return f.entry(abs, info), nil
}

// Open opens an image for reading.
func (f *FS) Open(path string) (io.ReadSeekCloser, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return file, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mosaic-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes an image from the library.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Package packager builds HTML5 app archives. Archives are byte-for-byte
// reproducible: entries are sorted, timestamps fixed and the file is named
// after its own digest, so an unchanged page never produces a new upload.
package packager

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
)

// fixedModTime is stamped on every entry.
var fixedModTime = time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC)

// Zip writes archives into an output directory.
type Zip struct {
	outDir string
	hasher *sha256.Hasher
}

// New creates the output directory if needed.
func New(outDir string) (*Zip, error) {
	if strings.TrimSpace(outDir) == "" {
		return nil, fmt.Errorf("packager output directory is required")
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create packager output directory: %w", err)
	}
	return &Zip{outDir: outDir, hasher: sha256.New()}, nil
}

// Package archives every regular file below dir and returns the archive
// path. index.html must exist at the top level.
func (z *Zip) Package(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		return "", fmt.Errorf("html5 app %s has no index.html: %w", dir, err)
	}
	names, err := listFiles(dir)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		if err := addFile(zw, dir, name); err != nil {
			_ = zw.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	digest, err := z.hasher.Hash(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("hash archive: %w", err)
	}
	path := filepath.Join(z.outDir, digest+".zip")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return path, nil
}

func listFiles(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(names)
	return names, nil
}

func addFile(zw *zip.Writer, dir, name string) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: fixedModTime,
	}
	hdr.SetMode(0o644)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	// #nosec G304 -- name was produced by walking dir.
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

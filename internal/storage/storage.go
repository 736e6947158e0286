// Package storage manages the on-disk areas for uploaded inputs and run
// output artifacts.
//
// Layout under the base directory:
//
//	uploads/<run-id>/<name>   input bytes exactly as received
//	outputs/<run-id>/<name>   produced CSV artifacts
//
// Locators returned by the Save methods are slash-separated paths relative
// to the base directory; they are what gets persisted on run records.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	uploadsDir = "uploads"
	outputsDir = "outputs"
)

// Files stores and retrieves artifacts under a single base directory.
type Files struct {
	baseDir string
}

// New creates the uploads/ and outputs/ areas under baseDir.
func New(baseDir string) (*Files, error) {
	for _, dir := range []string{uploadsDir, outputsDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return &Files{baseDir: baseDir}, nil
}

// SaveUpload stores an input file in a run-scoped directory and returns
// its locator.
func (f *Files) SaveUpload(runID uuid.UUID, name string, data []byte) (string, error) {
	return f.save(uploadsDir, runID, name, data)
}

// SaveOutput stores a produced artifact in a run-scoped directory and
// returns its locator.
func (f *Files) SaveOutput(runID uuid.UUID, name string, data []byte) (string, error) {
	return f.save(outputsDir, runID, name, data)
}

func (f *Files) save(area string, runID uuid.UUID, name string, data []byte) (string, error) {
	clean := SanitizeFileName(name)

	dir := filepath.Join(f.baseDir, area, runID.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, clean), data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", clean, err)
	}

	return area + "/" + runID.String() + "/" + clean, nil
}

// Open opens a stored artifact for reading. The caller must close it.
func (f *Files) Open(locator string) (*os.File, error) {
	path, err := f.resolve(locator)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return file, nil
}

// Size returns the size of a stored artifact in bytes.
func (f *Files) Size(locator string) (int64, error) {
	path, err := f.resolve(locator)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// resolve maps a locator to an absolute path, rejecting anything that
// would escape the base directory.
func (f *Files) resolve(locator string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(locator))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid locator: %q", locator)
	}
	return filepath.Join(f.baseDir, clean), nil
}

// asciiFold strips accents: decompose, remove nonspacing marks, recompose.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFileName reduces a client-supplied file name to a safe form:
// the base name lower-cased, accents folded to ASCII, and anything outside
// [a-z0-9] collapsed to single underscores. The extension is kept.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	folded, _, _ := transform.String(asciiFold, strings.ToLower(stem))

	var b strings.Builder
	prevUnderscore := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		default:
			// drop anything else
		}
	}

	stem = strings.Trim(b.String(), "_")
	if stem == "" {
		stem = "file"
	}

	var eb strings.Builder
	for _, r := range strings.ToLower(ext) {
		if r == '.' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			eb.WriteRune(r)
		}
	}

	return stem + eb.String()
}

// Checksum returns the xxh3 hash of data as a fixed-width hex string.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

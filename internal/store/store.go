// Package store persists generated PDFs and uploaded cover images on the
// local filesystem. The generated filename returned to the client is the
// only handle; there is no separate catalog.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// allowedCoverExtensions is the upload allow-list.
var allowedCoverExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// ErrDisallowedFileType indicates an upload with an extension outside the
// allow-list. Client error, never retried.
type ErrDisallowedFileType struct {
	Filename string
}

func (e *ErrDisallowedFileType) Error() string {
	return fmt.Sprintf("file type not allowed: %s", e.Filename)
}

// Store manages the ebook and cover directories.
type Store struct {
	EbookDir string
	CoverDir string
}

// New creates the storage directories if needed.
func New(ebookDir, coverDir string) (*Store, error) {
	for _, dir := range []string{ebookDir, coverDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Store{EbookDir: ebookDir, CoverDir: coverDir}, nil
}

// SavePDF writes rendered PDF bytes under a unique name derived from the
// course title and returns the filename.
func (s *Store) SavePDF(title string, data []byte) (string, error) {
	clean := SanitizeFilename(title)
	if clean == "" {
		clean = "ebook"
	}
	filename := fmt.Sprintf("%s_%s.pdf", clean, uuid.NewString()[:6])
	if err := os.WriteFile(filepath.Join(s.EbookDir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write PDF: %w", err)
	}
	return filename, nil
}

// SaveCover stores an uploaded cover image under a unique name and returns
// the stored filename. Rejects extensions outside the allow-list.
func (s *Store) SaveCover(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedCoverExtensions[ext] {
		return "", &ErrDisallowedFileType{Filename: originalName}
	}

	base := SanitizeFilename(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = "cover"
	}
	filename := fmt.Sprintf("%s_%s%s", uuid.NewString(), base, ext)

	f, err := os.Create(filepath.Join(s.CoverDir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create cover file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write cover file: %w", err)
	}
	return filename, nil
}

// OpenEbook opens a previously generated PDF by filename.
func (s *Store) OpenEbook(filename string) (*os.File, error) {
	return openIn(s.EbookDir, filename)
}

// OpenCover opens a previously uploaded cover by filename.
func (s *Store) OpenCover(filename string) (*os.File, error) {
	return openIn(s.CoverDir, filename)
}

// openIn refuses any path element beyond a bare filename, so a crafted
// request cannot escape the storage directory.
func openIn(dir, filename string) (*os.File, error) {
	if filename != filepath.Base(filename) || filename == "." || filename == "" {
		return nil, fmt.Errorf("invalid filename: %s", filename)
	}
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	return f, nil
}

// SanitizeFilename reduces a string to filesystem-safe characters:
// alphanumerics, dash and underscore, with whitespace runs collapsed to a
// single underscore.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

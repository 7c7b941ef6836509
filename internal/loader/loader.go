package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-enry/go-enry/v2"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// DefaultMaxFileSize is the largest file read by default.
const DefaultMaxFileSize = 10 << 20

// ErrSkipped marks a file the loader chose not to ingest.
var ErrSkipped = errors.New("skipped")

// Loader converts files into ingest requests.
type Loader struct {
	registry    driven.NormaliserRegistry
	maxFileSize int64
	projectID   string
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxFileSize sets the size limit above which files are skipped.
func WithMaxFileSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxFileSize = n
		}
	}
}

// WithProject links every request to the given project.
func WithProject(projectID string) Option {
	return func(l *Loader) {
		l.projectID = projectID
	}
}

// New creates a loader dispatching to registry.
func New(registry driven.NormaliserRegistry, opts ...Option) *Loader {
	l := &Loader{registry: registry, maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile reads and normalises a single file. Files that are too large,
// binary or of an unsupported type return an error wrapping ErrSkipped.
func (l *Loader) LoadFile(ctx context.Context, path string) (*driving.IngestRequest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	if info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrSkipped, path, l.maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	mime := DetectMIME(path, content)
	if isBinary(mime, content) {
		return nil, fmt.Errorf("%w: %s is binary", ErrSkipped, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	result, err := l.registry.Normalise(ctx, &domain.RawDocument{
		URI:      abs,
		MIMEType: mime,
		Content:  content,
	})
	if errors.Is(err, domain.ErrUnsupportedType) {
		return nil, fmt.Errorf("%w: %s: %w", ErrSkipped, path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to normalise %s: %w", path, err)
	}

	doc := result.Document
	return &driving.IngestRequest{
		Title:      doc.Title,
		Content:    doc.Content,
		SourceType: doc.SourceType,
		URI:        doc.URI,
		Source:     doc.Source,
		ProjectID:  l.projectID,
	}, nil
}

// WalkFunc receives each loaded file. err is non-nil when the file could
// not be loaded; returning a non-nil error stops the walk.
type WalkFunc func(path string, req *driving.IngestRequest, err error) error

// Walk loads path, or every eligible file beneath it when it is a
// directory. Ignored paths, dotfiles and vendored files are not reported.
func (l *Loader) Walk(ctx context.Context, path string, fn WalkFunc) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		req, err := l.LoadFile(ctx, path)
		return fn(path, req, err)
	}

	filter, err := NewIgnoreFilter(path)
	if err != nil {
		return err
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return fn(p, nil, walkErr)
		}

		rel, err := filepath.Rel(path, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		dirPath := rel
		if d.IsDir() {
			dirPath += "/"
		}
		if filter.ShouldIgnore(rel) || filter.ShouldIgnore(dirPath) ||
			enry.IsVendor(dirPath) || enry.IsDotFile(dirPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		req, err := l.LoadFile(ctx, p)
		return fn(p, req, err)
	})
}

// Package loader reads source files into split document chunks.
//
// A fixed extension registry maps file types to langchaingo document
// loaders. Content is split with a recursive character splitter so chunk
// boundaries prefer paragraph and sentence breaks.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the split size in characters.
	DefaultChunkSize = 512

	// DefaultChunkOverlap is the overlap between adjacent chunks.
	DefaultChunkOverlap = 50
)

var (
	// ErrUnsupportedFileType indicates no loader is registered for the
	// file's extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrLoaderFailure indicates the file could not be read or parsed.
	ErrLoaderFailure = errors.New("loader failure")
)

// newLoaderFunc builds a document loader over an open file. PDF needs
// random access and the file size, the rest stream.
type newLoaderFunc func(f *os.File, size int64) documentloaders.Loader

var loadersByExt = map[string]newLoaderFunc{
	".txt":  textLoader,
	".md":   textLoader,
	".csv":  func(f *os.File, _ int64) documentloaders.Loader { return documentloaders.NewCSV(f) },
	".html": htmlLoader,
	".htm":  htmlLoader,
	".pdf":  func(f *os.File, size int64) documentloaders.Loader { return documentloaders.NewPDF(f, size) },
}

func textLoader(f *os.File, _ int64) documentloaders.Loader {
	return documentloaders.NewText(f)
}

func htmlLoader(f *os.File, _ int64) documentloaders.Loader {
	return documentloaders.NewHTML(f)
}

// Registry loads and splits files by extension.
type Registry struct {
	splitter textsplitter.RecursiveCharacter
}

// New creates a registry with the given chunk size and overlap.
// Non-positive values fall back to the defaults.
func New(chunkSize, chunkOverlap int) *Registry {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = DefaultChunkOverlap
	}

	return &Registry{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Supported reports whether a loader is registered for the path's
// extension. The check is case-insensitive.
func (r *Registry) Supported(path string) bool {
	_, ok := loadersByExt[normalizeExt(path)]
	return ok
}

// Extensions returns the supported extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(loadersByExt))
	for ext := range loadersByExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadAndSplit reads the file at path and returns its split chunks.
// An empty file yields an empty slice and no error.
func (r *Registry) LoadAndSplit(ctx context.Context, path string) ([]schema.Document, error) {
	newLoader, ok := loadersByExt[normalizeExt(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrLoaderFailure, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrLoaderFailure, path, err)
	}

	docs, err := newLoader(f, info.Size()).LoadAndSplit(ctx, r.splitter)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoaderFailure, path, err)
	}

	return docs, nil
}

func normalizeExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

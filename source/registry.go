package source

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/docrag/core"
)

// Metadata keys set by the built-in loaders.
const (
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaRow        = "row"
	MetaSheet      = "sheet"
)

// Loader turns one file into source documents.
type Loader interface {
	Load(ctx context.Context, path string) ([]core.SourceDocument, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string) ([]core.SourceDocument, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path string) ([]core.SourceDocument, error) {
	return f(ctx, path)
}

type registration struct {
	loader     Loader
	signatures []string
}

// Registry maps file extensions to loaders. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]registration)}
}

// DefaultRegistry returns a registry with loaders for .txt, .pdf, .csv,
// .xlsx, .docx and .json files.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".txt", LoaderFunc(LoadText))
	r.Register(".csv", LoaderFunc(LoadCSV))
	r.Register(".json", LoaderFunc(LoadJSON))
	r.Register(".pdf", LoaderFunc(LoadPDF), "pdf")
	r.Register(".xlsx", LoaderFunc(LoadXLSX), "xlsx", "zip")
	r.Register(".docx", LoaderFunc(LoadDOCX), "docx", "zip")
	return r
}

// Register associates ext with loader, replacing any previous loader.
// signatures lists the detected file types the content may have; with no
// signatures the format is treated as text and any recognised binary
// signature is rejected.
func (r *Registry) Register(ext string, loader Loader, signatures ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[normalizeExt(ext)] = registration{loader: loader, signatures: signatures}
}

// Lookup returns the loader registered for ext.
func (r *Registry) Lookup(ext string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.loaders[normalizeExt(ext)]
	return reg.loader, ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.Lookup(filepath.Ext(path))
	return ok
}

// LoadFile checks the content signature of path, runs the registered loader
// and tags every document with its source and format. All failures wrap
// core.ErrSourceLoad.
func (r *Registry) LoadFile(ctx context.Context, path string) ([]core.SourceDocument, error) {
	ext := normalizeExt(filepath.Ext(path))

	r.mu.RLock()
	reg, ok := r.loaders[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w %q", core.ErrSourceLoad, path, core.ErrUnsupportedFormat, ext)
	}

	if err := checkSignature(path, reg.signatures); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrSourceLoad, path, err)
	}

	docs, err := reg.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrSourceLoad, path, err)
	}

	format := strings.TrimPrefix(ext, ".")
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = core.Metadata{}
		}
		docs[i].Metadata[core.MetaSource] = path
		docs[i].Metadata[core.MetaFormat] = format
	}
	return docs, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/core"
)

// Directory loads every supported file under a root directory.
type Directory struct {
	root     string
	registry *Registry
	workers  int
	logger   *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory) error

// WithRegistry sets the loader registry. Defaults to DefaultRegistry().
func WithRegistry(registry *Registry) Option {
	return func(d *Directory) error {
		if registry == nil {
			return fmt.Errorf("%w: nil registry", core.ErrInvalidConfig)
		}
		d.registry = registry
		return nil
	}
}

// WithWorkers sets how many files are loaded concurrently.
func WithWorkers(n int) Option {
	return func(d *Directory) error {
		if n < 1 {
			n = 1
		}
		d.workers = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDirectory creates a loader for the tree rooted at root.
func NewDirectory(root string, opts ...Option) (*Directory, error) {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}

	d := &Directory{
		root:     root,
		registry: DefaultRegistry(),
		workers:  workers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "source", "root", root)
	return d, nil
}

// Root returns the root directory.
func (d *Directory) Root() string {
	return d.root
}

// Skipped is a file that failed to load.
type Skipped struct {
	Path string
	Err  error
}

// Report summarises a directory load.
type Report struct {
	// Files is the number of supported files found.
	Files int
	// Documents is the number of documents produced.
	Documents int
	// Skipped lists the files that failed to load, in path order.
	Skipped []Skipped
}

// Files returns the paths of all files under the root with a registered
// extension, in lexical order.
func (d *Directory) Files() ([]string, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceLoad, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", core.ErrSourceLoad, d.root)
	}

	var files []string
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() && d.registry.Supports(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", core.ErrSourceLoad, d.root, err)
	}
	return files, nil
}

// Load loads all supported files. Files are read concurrently but the
// returned documents are in path order. A file that fails to load is logged
// and recorded in the report; only a failure to list the root or a
// cancelled context fails the whole load.
func (d *Directory) Load(ctx context.Context) ([]core.SourceDocument, *Report, error) {
	files, err := d.Files()
	if err != nil {
		return nil, nil, err
	}
	d.logger.Info("loading documents", "files", len(files), "workers", d.workers)

	pool, err := ants.NewPool(d.workers)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Release()

	results := make([][]core.SourceDocument, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = nil
					errs[i] = fmt.Errorf("%w: %s: panic: %v", core.ErrSourceLoad, path, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = d.registry.LoadFile(ctx, path)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	report := &Report{Files: len(files)}
	var docs []core.SourceDocument
	for i, path := range files {
		if errs[i] != nil {
			d.logger.Warn("skipping file", "path", path, "err", errs[i])
			report.Skipped = append(report.Skipped, Skipped{Path: path, Err: errs[i]})
			continue
		}
		d.logger.Debug("loaded file", "path", path, "documents", len(results[i]))
		docs = append(docs, results[i]...)
	}
	report.Documents = len(docs)

	d.logger.Info("loaded documents", "documents", report.Documents, "skipped", len(report.Skipped))
	return docs, report, nil
}

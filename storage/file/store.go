// Package file implements storage.Store as two files in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// Artifact file names.
const (
	IndexFile    = "index.mus"
	MetadataFile = "metadata.gob"
)

// Store keeps the index and metadata artifacts in a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore returns a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) storage.Store {
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "file-store", "dir", dir),
	}
}

func (s *Store) indexPath() string    { return filepath.Join(s.dir, IndexFile) }
func (s *Store) metadataPath() string { return filepath.Join(s.dir, MetadataFile) }

// Save writes both artifacts to temporary files, syncs them, then renames
// the metadata artifact into place before the index artifact. A crash
// between the two renames leaves a new metadata file next to the old index,
// which Load reports as inconsistent.
func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) error {
	artifacts, err := storage.Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	metaTmp, err := writeTemp(s.dir, MetadataFile, artifacts.Metadata)
	if err != nil {
		return err
	}
	indexTmp, err := writeTemp(s.dir, IndexFile, artifacts.Index)
	if err != nil {
		os.Remove(metaTmp)
		return err
	}

	if err := ctx.Err(); err != nil {
		os.Remove(metaTmp)
		os.Remove(indexTmp)
		return err
	}

	if err := os.Rename(metaTmp, s.metadataPath()); err != nil {
		os.Remove(metaTmp)
		os.Remove(indexTmp)
		return fmt.Errorf("install metadata artifact: %w", err)
	}
	if err := os.Rename(indexTmp, s.indexPath()); err != nil {
		os.Remove(indexTmp)
		return fmt.Errorf("install index artifact: %w", err)
	}
	syncDir(s.dir)

	s.logger.Debug("saved store",
		"build_id", snap.Manifest.BuildID,
		"count", snap.Manifest.Count,
		"index_bytes", len(artifacts.Index),
		"metadata_bytes", len(artifacts.Metadata))
	return nil
}

// Load reads and verifies both artifacts.
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, error) {
	index, err := readArtifact(s.indexPath())
	if err != nil {
		return nil, err
	}
	metadata, err := readArtifact(s.metadataPath())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return storage.Decode(&storage.Artifacts{Index: index, Metadata: metadata})
}

// Exists reports whether both artifact files are present.
func (s *Store) Exists() (bool, error) {
	for _, path := range []string{s.indexPath(), s.metadataPath()} {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// Location returns the store directory.
func (s *Store) Location() string {
	return s.dir
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", core.ErrMissingStore, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", name, err)
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return path, nil
}

// syncDir flushes directory entries after the renames. Not every platform
// supports syncing a directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// chunkSize bounds the size of a single stored value.
const chunkSize = 512 << 10

// Store implements storage.Store on BadgerDB.
//
// Save writes both artifacts under a fresh generation with a write batch,
// then switches the current key to the new generation in one transaction
// and drops the previous generation. Readers see either the old pair or
// the new pair.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore opens a BadgerDB-backed store at path.
func NewStore(path string, inMemory bool) (storage.Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return newStore(backend), nil
}

// NewMemoryStore creates an in-memory store for testing.
func NewMemoryStore() (storage.Store, error) {
	return NewStore("", true)
}

func newStore(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  backend.logger.With("component", "badger-store"),
	}
}

// Save replaces the persisted snapshot.
func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) error {
	artifacts, err := storage.Encode(snap)
	if err != nil {
		return err
	}

	next := pointer{Generation: uuid.NewString()}
	wb := s.backend.NewWriteBatch()
	next.IndexChunks, err = writeChunks(wb, next.Generation, indexKind, artifacts.Index)
	if err == nil {
		next.MetadataChunks, err = writeChunks(wb, next.Generation, metadataKind, artifacts.Metadata)
	}
	if err != nil {
		wb.Cancel()
		return fmt.Errorf("write artifacts: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush artifacts: %w", err)
	}

	if err := ctx.Err(); err != nil {
		s.dropGeneration(next.Generation)
		return err
	}

	var previous string
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		prev, err := readPointer(tx)
		switch {
		case err == nil:
			previous = prev.Generation
		case !errors.Is(err, core.ErrMissingStore):
			return err
		}
		if err := tx.Set([]byte(currentKey), marshalPointer(next)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		s.dropGeneration(next.Generation)
		return fmt.Errorf("commit generation: %w", err)
	}

	if previous != "" {
		s.dropGeneration(previous)
	}

	s.logger.Debug("saved store",
		"generation", next.Generation,
		"build_id", snap.Manifest.BuildID,
		"count", snap.Manifest.Count,
		"index_chunks", next.IndexChunks,
		"metadata_chunks", next.MetadataChunks)
	return nil
}

// Load reads the current generation and verifies it.
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, error) {
	var artifacts storage.Artifacts
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		current, err := readPointer(tx)
		if err != nil {
			return err
		}
		if artifacts.Index, err = readChunks(tx, current.Generation, indexKind, current.IndexChunks); err != nil {
			return err
		}
		artifacts.Metadata, err = readChunks(tx, current.Generation, metadataKind, current.MetadataChunks)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return storage.Decode(&artifacts)
}

// Exists reports whether a generation has been committed.
func (s *Store) Exists() (bool, error) {
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get([]byte(currentKey))
		return err
	}, false)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Location returns the database path.
func (s *Store) Location() string {
	if s.backend.inMemory {
		return "badger:memory"
	}
	return "badger:" + s.backend.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) dropGeneration(gen string) {
	if err := s.backend.DropPrefix(makeGenerationPrefix(gen)); err != nil {
		s.logger.Warn("failed to drop generation", "generation", gen, "err", err)
	}
}

func writeChunks(wb *badger.WriteBatch, gen string, kind byte, data []byte) (int, error) {
	count := 0
	for start := 0; start < len(data); start += chunkSize {
		end := min(start+chunkSize, len(data))
		if err := wb.Set(makeChunkKey(gen, kind, count), data[start:end]); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

func readChunks(tx *badger.Txn, gen string, kind byte, count int) ([]byte, error) {
	var data []byte
	for seq := range count {
		item, err := tx.Get(makeChunkKey(gen, kind, seq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: generation %s is missing chunk %c%d", core.ErrInconsistentStore, gen, kind, seq)
		}
		if err != nil {
			return nil, err
		}
		chunk, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}
	return data, nil
}

func readPointer(tx *badger.Txn) (pointer, error) {
	item, err := tx.Get([]byte(currentKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return pointer{}, core.ErrMissingStore
	}
	if err != nil {
		return pointer{}, err
	}

	var p pointer
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		p, unmarshalErr = unmarshalPointer(val)
		return unmarshalErr
	})
	if err != nil {
		return pointer{}, fmt.Errorf("%w: current generation: %w", core.ErrInconsistentStore, err)
	}
	return p, nil
}

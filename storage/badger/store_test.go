package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshot(t *testing.T, n, dim int) *storage.Snapshot {
	t.Helper()
	vectors := make([][]float32, n)
	records := make([]core.Metadata, n)
	for i := range n {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(i*dim + j)
		}
		vectors[i] = v
		records[i] = core.Metadata{core.MetaText: "passage", "row": i}
	}
	snap, err := storage.NewSnapshot("mock:bag-of-words", dim, vectors, records)
	require.NoError(t, err)
	return snap
}

func memoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.(*Store)
}

func TestStore_Missing(t *testing.T) {
	store := memoryStore(t)

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrMissingStore)
	assert.Equal(t, "badger:memory", store.Location())
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)

	snap := newSnapshot(t, 3, 4)
	require.NoError(t, store.Save(ctx, snap))

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Manifest, loaded.Manifest)
	assert.Equal(t, snap.Vectors, loaded.Vectors)
	assert.Equal(t, snap.Records, loaded.Records)
}

func TestStore_MultiChunkArtifact(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)

	// 700 vectors of 384 float32 values span several chunks.
	snap := newSnapshot(t, 700, 384)
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Vectors, loaded.Vectors)

	err = store.backend.WithTx(func(tx *badger.Txn) error {
		p, err := readPointer(tx)
		require.NoError(t, err)
		assert.Equal(t, 3, p.IndexChunks)
		assert.Equal(t, 1, p.MetadataChunks)
		return nil
	}, false)
	require.NoError(t, err)
}

func TestStore_SaveDropsPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)

	require.NoError(t, store.Save(ctx, newSnapshot(t, 2, 2)))
	var first pointer
	require.NoError(t, store.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		first, err = readPointer(tx)
		return err
	}, false))

	second := newSnapshot(t, 5, 2)
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Manifest.BuildID, loaded.Manifest.BuildID)
	assert.Equal(t, 5, loaded.Manifest.Count)

	err = store.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeChunkKey(first.Generation, indexKind, 0))
		return err
	}, false)
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestStore_MissingChunkIsInconsistent(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	require.NoError(t, store.Save(ctx, newSnapshot(t, 2, 2)))

	err := store.backend.WithTx(func(tx *badger.Txn) error {
		p, err := readPointer(tx)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeChunkKey(p.Generation, metadataKind, 0)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, core.ErrInconsistentStore)
}

func TestStore_CorruptChunkIsInconsistent(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	require.NoError(t, store.Save(ctx, newSnapshot(t, 2, 2)))

	err := store.backend.WithTx(func(tx *badger.Txn) error {
		p, err := readPointer(tx)
		if err != nil {
			return err
		}
		if err := tx.Set(makeChunkKey(p.Generation, metadataKind, 0), []byte("junk")); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, core.ErrInconsistentStore)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")

	store, err := NewStore(dir, false)
	require.NoError(t, err)
	snap := newSnapshot(t, 4, 3)
	require.NoError(t, store.Save(ctx, snap))
	require.NoError(t, store.Close())

	store, err = NewStore(dir, false)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Records, loaded.Records)
	assert.Equal(t, "badger:"+dir, store.Location())
}

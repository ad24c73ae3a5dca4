package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := OpenBackend(path, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestBackend_DropPrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	wb := backend.NewWriteBatch()
	require.NoError(t, wb.Set(makeChunkKey("a", indexKind, 0), []byte("1")))
	require.NoError(t, wb.Set(makeChunkKey("b", indexKind, 0), []byte("2")))
	require.NoError(t, wb.Flush())

	require.NoError(t, backend.DropPrefix(makeGenerationPrefix("a")))

	err = backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeChunkKey("a", indexKind, 0))
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		_, err = tx.Get(makeChunkKey("b", indexKind, 0))
		return err
	}, false)
	assert.NoError(t, err)
}

func TestPointerSerialization(t *testing.T) {
	p := pointer{Generation: "7f1c", IndexChunks: 3, MetadataChunks: 1}
	got, err := unmarshalPointer(marshalPointer(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = unmarshalPointer(nil)
	assert.Error(t, err)
}

func TestMakeChunkKey_Ordering(t *testing.T) {
	k1 := makeChunkKey("g", metadataKind, 1)
	k2 := makeChunkKey("g", metadataKind, 256)
	assert.Less(t, string(k1), string(k2))
	assert.True(t, len(k1) > len(makeGenerationPrefix("g")))
	assert.Equal(t, string(makeGenerationPrefix("g")), string(k1[:len(makeGenerationPrefix("g"))]))
}

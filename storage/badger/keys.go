package badger

import (
	"encoding/binary"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Key layout. Artifacts are split into chunks stored under a generation
// prefix; the current key names the live generation.
//
//	current                     -> pointer
//	gen:<generation>:i:<seq>    -> index artifact chunk
//	gen:<generation>:m:<seq>    -> metadata artifact chunk
const (
	currentKey       = "current"
	generationPrefix = "gen:"
	indexKind        = 'i'
	metadataKind     = 'm'
)

// makeGenerationPrefix returns the prefix shared by every chunk of a generation.
func makeGenerationPrefix(gen string) []byte {
	return []byte(generationPrefix + gen + ":")
}

// makeChunkKey generates the key of chunk seq of an artifact.
// Format: gen:<generation>:<kind>:<seq>
func makeChunkKey(gen string, kind byte, seq int) []byte {
	prefix := makeGenerationPrefix(gen)
	buf := make([]byte, len(prefix)+2+4)
	offset := copy(buf, prefix)
	buf[offset] = kind
	buf[offset+1] = ':'
	offset += 2
	// BigEndian keeps chunks in order under iteration
	binary.BigEndian.PutUint32(buf[offset:], uint32(seq))
	return buf
}

// pointer is the value of the current key.
type pointer struct {
	Generation     string
	IndexChunks    int
	MetadataChunks int
}

func marshalPointer(p pointer) []byte {
	size := ord.String.Size(p.Generation) +
		varint.Int.Size(p.IndexChunks) +
		varint.Int.Size(p.MetadataChunks)
	buf := make([]byte, size)
	n := ord.String.Marshal(p.Generation, buf)
	n += varint.Int.Marshal(p.IndexChunks, buf[n:])
	varint.Int.Marshal(p.MetadataChunks, buf[n:])
	return buf
}

func unmarshalPointer(data []byte) (p pointer, err error) {
	var n, read int
	if p.Generation, read, err = ord.String.Unmarshal(data); err != nil {
		return
	}
	n += read
	if p.IndexChunks, read, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read
	p.MetadataChunks, _, err = varint.Int.Unmarshal(data[n:])
	return
}

package core

import (
	"encoding/binary"
	"encoding/hex"
	"maps"

	"github.com/go-crypt/x/blake2b"
)

// Well-known metadata keys.
const (
	// MetaText holds the passage text inside a metadata record.
	MetaText = "text"
	// MetaID holds the content ID of a passage.
	MetaID = "id"
	// MetaSource is the path of the file a document was loaded from.
	MetaSource = "source"
	// MetaFormat is the file-type tag of the loader that produced a document.
	MetaFormat = "format"
)

// ID is a content-derived identifier for passages.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Checksum returns the hex encoded BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Metadata is a mapping of provenance fields. Values are opaque to the core
// and are restricted to basic types (strings, numbers, booleans).
type Metadata map[string]any

// Clone returns a shallow copy of m. A nil map clones to an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	maps.Copy(out, m)
	return out
}

// Text returns the passage text stored in the record, or "" if absent.
func (m Metadata) Text() string {
	if m == nil {
		return ""
	}
	s, _ := m[MetaText].(string)
	return s
}

// Source returns the source path stored in the record, or "" if absent.
func (m Metadata) Source() string {
	if m == nil {
		return ""
	}
	s, _ := m[MetaSource].(string)
	return s
}

// SourceDocument is one logical unit (file, page, row, sheet) yielded by a
// document source.
type SourceDocument struct {
	Text     string
	Metadata Metadata
}

// Passage is a chunk of source text plus the provenance of the document it
// was cut from. Passages are not modified after the chunker creates them.
type Passage struct {
	Text     string
	Metadata Metadata
}

// Record returns the metadata record stored in the index for this passage:
// the source metadata plus the passage text and content ID.
func (p Passage) Record() Metadata {
	rec := p.Metadata.Clone()
	rec[MetaText] = p.Text
	rec[MetaID] = uint64(IDFromContent(p.Text))
	return rec
}

// SearchHit is one nearest-neighbor result. Index is the insertion position
// of the vector, Distance the squared Euclidean distance to the query.
type SearchHit struct {
	Index    int
	Distance float32
	Metadata Metadata
}

// Text returns the passage text of the hit.
func (h SearchHit) Text() string {
	return h.Metadata.Text()
}

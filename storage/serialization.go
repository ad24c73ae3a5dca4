package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docrag/core"
)

// indexMagic prefixes every index artifact.
var indexMagic = []byte("DRIX")

func init() {
	// Nested metadata values travel inside interface fields.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Artifacts is the encoded form of a snapshot.
type Artifacts struct {
	Index    []byte
	Metadata []byte
}

// Encode serializes a snapshot into its two artifacts and records the
// artifact checksums in snap.Manifest.
func Encode(snap *Snapshot) (*Artifacts, error) {
	if len(snap.Vectors) != len(snap.Records) || snap.Manifest.Count != len(snap.Records) {
		return nil, fmt.Errorf("%w: manifest count %d, %d vectors, %d records",
			core.ErrPairingMismatch, snap.Manifest.Count, len(snap.Vectors), len(snap.Records))
	}

	metadata, err := MarshalRecords(snap.Records)
	if err != nil {
		return nil, err
	}
	vectors := MarshalVectors(snap.Vectors)

	snap.Manifest.MetadataChecksum = core.Checksum(metadata)
	snap.Manifest.VectorChecksum = core.Checksum(vectors)

	header := MarshalManifest(snap.Manifest)
	index := make([]byte, 0, len(indexMagic)+len(header)+len(vectors))
	index = append(index, indexMagic...)
	index = append(index, header...)
	index = append(index, vectors...)

	return &Artifacts{Index: index, Metadata: metadata}, nil
}

// Decode parses and cross-checks a pair of artifacts. Any disagreement
// between them is reported as core.ErrInconsistentStore.
func Decode(a *Artifacts) (*Snapshot, error) {
	manifest, vectors, err := DecodeIndex(a.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: index: %w", core.ErrInconsistentStore, err)
	}

	if sum := core.Checksum(a.Metadata); sum != manifest.MetadataChecksum {
		return nil, fmt.Errorf("%w: metadata: %w", core.ErrInconsistentStore, ErrChecksumMismatch)
	}

	records, err := UnmarshalRecords(a.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", core.ErrInconsistentStore, err)
	}
	if len(records) != manifest.Count {
		return nil, fmt.Errorf("%w: %d vectors, %d metadata records", core.ErrInconsistentStore, manifest.Count, len(records))
	}

	return &Snapshot{Manifest: manifest, Vectors: vectors, Records: records}, nil
}

// DecodeIndex parses an index artifact and verifies its vector checksum.
func DecodeIndex(data []byte) (Manifest, [][]float32, error) {
	manifest, n, err := ReadManifest(data)
	if err != nil {
		return Manifest{}, nil, err
	}

	body := data[n:]
	if sum := core.Checksum(body); sum != manifest.VectorChecksum {
		return Manifest{}, nil, ErrChecksumMismatch
	}

	vectors, err := UnmarshalVectors(body, manifest.Count, manifest.Dimension)
	if err != nil {
		return Manifest{}, nil, err
	}
	return manifest, vectors, nil
}

// ReadManifest parses the magic and manifest header of an index artifact.
// Returns the number of bytes consumed.
func ReadManifest(data []byte) (Manifest, int, error) {
	if !bytes.HasPrefix(data, indexMagic) {
		return Manifest{}, 0, ErrBadMagic
	}

	manifest, n, err := UnmarshalManifest(data[len(indexMagic):])
	if err != nil {
		return Manifest{}, 0, err
	}
	if manifest.Version != FormatVersion {
		return Manifest{}, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, manifest.Version)
	}
	return manifest, len(indexMagic) + n, nil
}

// MarshalManifest serializes a manifest.
func MarshalManifest(m Manifest) []byte {
	created := m.CreatedAt.UnixNano()
	size := varint.Int.Size(m.Version) +
		ord.String.Size(m.ModelID) +
		varint.Int.Size(m.Dimension) +
		varint.Int.Size(m.Count) +
		ord.String.Size(m.VectorChecksum) +
		ord.String.Size(m.MetadataChecksum) +
		ord.String.Size(m.BuildID) +
		varint.Int64.Size(created)

	buf := make([]byte, size)
	n := varint.Int.Marshal(m.Version, buf)
	n += ord.String.Marshal(m.ModelID, buf[n:])
	n += varint.Int.Marshal(m.Dimension, buf[n:])
	n += varint.Int.Marshal(m.Count, buf[n:])
	n += ord.String.Marshal(m.VectorChecksum, buf[n:])
	n += ord.String.Marshal(m.MetadataChecksum, buf[n:])
	n += ord.String.Marshal(m.BuildID, buf[n:])
	varint.Int64.Marshal(created, buf[n:])
	return buf
}

// UnmarshalManifest deserializes a manifest. Returns the number of bytes read.
func UnmarshalManifest(data []byte) (m Manifest, n int, err error) {
	var (
		read    int
		created int64
	)
	defer func() {
		if err != nil {
			err = fmt.Errorf("%w: manifest: %w", ErrSerializationFailed, err)
		}
	}()

	if m.Version, read, err = varint.Int.Unmarshal(data); err != nil {
		return
	}
	n += read
	if m.ModelID, read, err = ord.String.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read
	if m.Dimension, read, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read
	if m.Count, read, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read
	if m.VectorChecksum, read, err = ord.String.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read
	if m.MetadataChecksum, read, err = ord.String.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read
	if m.BuildID, read, err = ord.String.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read
	if created, read, err = varint.Int64.Unmarshal(data[n:]); err != nil {
		return
	}
	n += read

	if m.Dimension < 0 || m.Count < 0 {
		err = errors.New("negative dimension or count")
		return
	}
	m.CreatedAt = time.Unix(0, created).UTC()
	return m, n, nil
}

// MarshalVectors serializes vectors as consecutive fixed-width float32 values.
func MarshalVectors(vectors [][]float32) []byte {
	width := raw.Float32.Size(0)
	total := 0
	for _, v := range vectors {
		total += len(v)
	}

	buf := make([]byte, total*width)
	n := 0
	for _, v := range vectors {
		for _, x := range v {
			n += raw.Float32.Marshal(x, buf[n:])
		}
	}
	return buf
}

// UnmarshalVectors deserializes count vectors of dimension dim.
// The data must contain exactly count*dim values.
func UnmarshalVectors(data []byte, count, dim int) ([][]float32, error) {
	width := raw.Float32.Size(0)
	truncated := func() error {
		return fmt.Errorf("%w: %d bytes for %d vectors of dimension %d", ErrTruncatedData, len(data), count, dim)
	}
	// count and dim come from the manifest and are bounded by the body size
	// before they are multiplied or allocated.
	if count < 0 || dim < 0 {
		return nil, truncated()
	}
	if count > 0 {
		if dim == 0 || dim > len(data)/width || count > len(data)/(dim*width) {
			return nil, truncated()
		}
	}
	if len(data) != count*dim*width {
		return nil, truncated()
	}

	vectors := make([][]float32, count)
	n := 0
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			x, read, err := raw.Float32.Unmarshal(data[n:])
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
			}
			v[j] = x
			n += read
		}
		vectors[i] = v
	}
	return vectors, nil
}

// MarshalRecords serializes metadata records with encoding/gob, which keeps
// the concrete types of heterogeneous metadata values.
func MarshalRecords(records []core.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return buf.Bytes(), nil
}

// UnmarshalRecords deserializes metadata records.
func UnmarshalRecords(data []byte) ([]core.Metadata, error) {
	var records []core.Metadata
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return records, nil
}

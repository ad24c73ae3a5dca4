package chunker

import (
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/docrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = `Retrieval augmented generation pairs a search step with a language model.

The search step finds passages that are close to the question in embedding space.
The language model then writes an answer grounded in those passages.

Chunking decides where passages begin and end, which matters for recall.`

func TestNew(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		c, err := New(100, 20)
		require.NoError(t, err)
		assert.Equal(t, 100, c.MaxLength())
		assert.Equal(t, 20, c.Overlap())
	})

	t.Run("overlap equal to max length", func(t *testing.T) {
		c, err := New(100, 100)
		assert.ErrorIs(t, err, core.ErrInvalidChunkConfig)
		assert.Nil(t, c)
	})

	t.Run("overlap larger than max length", func(t *testing.T) {
		_, err := New(50, 80)
		assert.ErrorIs(t, err, core.ErrInvalidChunkConfig)
	})

	t.Run("zero overlap", func(t *testing.T) {
		_, err := New(100, 0)
		assert.ErrorIs(t, err, core.ErrInvalidChunkConfig)
	})

	t.Run("non-positive max length", func(t *testing.T) {
		_, err := New(0, 0)
		assert.ErrorIs(t, err, core.ErrInvalidChunkConfig)
	})
}

func TestChunk_ShortDocumentIsSinglePassage(t *testing.T) {
	c, err := New(DefaultMaxLength, DefaultOverlap)
	require.NoError(t, err)

	docs := []core.SourceDocument{
		{Text: "Paris is the capital of France.", Metadata: core.Metadata{core.MetaSource: "france.txt"}},
	}

	passages, err := c.Chunk(docs)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Paris is the capital of France.", passages[0].Text)
	assert.Equal(t, "france.txt", passages[0].Metadata.Source())
}

func TestChunk_Bound(t *testing.T) {
	c, err := New(60, 15)
	require.NoError(t, err)

	passages, err := c.Chunk([]core.SourceDocument{{Text: sampleText}})
	require.NoError(t, err)
	require.Greater(t, len(passages), 1)

	for _, p := range passages {
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), 60, "passage too long: %q", p.Text)
		assert.NotEmpty(t, strings.TrimSpace(p.Text))
	}
}

func TestChunk_BoundOnRandomText(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 42))
	words := []string{"a", "x", "alpha", "beta", "gamma", "delta", "epsilon", "ünïcode"}
	seps := []string{" ", " ", " ", "\n", "\n\n"}

	for doc := 0; doc < 300; doc++ {
		maxLength := 10 + rng.IntN(60)
		overlap := 1 + rng.IntN(maxLength-1)
		c, err := New(maxLength, overlap)
		require.NoError(t, err)

		var b strings.Builder
		for i := 0; i < 200; i++ {
			if i > 0 {
				b.WriteString(seps[rng.IntN(len(seps))])
			}
			b.WriteString(words[rng.IntN(len(words))])
		}

		passages, err := c.Chunk([]core.SourceDocument{{Text: b.String()}})
		require.NoError(t, err)
		require.NotEmpty(t, passages)
		for _, p := range passages {
			require.LessOrEqual(t, utf8.RuneCountInString(p.Text), maxLength,
				"max=%d overlap=%d passage=%q", maxLength, overlap, p.Text)
		}
	}
}

func TestBound(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"fits", "short", []string{"short"}},
		{"paragraph break first", "abc de\n\nfghij klm", []string{"abc de", "fghij klm"}},
		{"line break before space", "ab\ncd efgh ij", []string{"ab", "cd efgh ij"}},
		{"word break", "abcd efgh ijkl", []string{"abcd efgh", "ijkl"}},
		{"no separator", "abcdefghijklm", []string{"abcdefghij", "klm"}},
		{"multibyte", "ééééééééééé", []string{"éééééééééé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.bound(tt.in))
		})
	}
}

func TestChunk_LongWordFallsBackToCharacters(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	passages, err := c.Chunk([]core.SourceDocument{{Text: strings.Repeat("x", 35)}})
	require.NoError(t, err)
	require.NotEmpty(t, passages)

	for _, p := range passages {
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), 10)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	docs := []core.SourceDocument{
		{Text: sampleText, Metadata: core.Metadata{core.MetaSource: "a.txt"}},
		{Text: "Tokyo is the capital of Japan.", Metadata: core.Metadata{core.MetaSource: "b.txt"}},
	}

	first, err := c.Chunk(docs)
	require.NoError(t, err)
	second, err := c.Chunk(docs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunk_PreservesOrderAndMetadata(t *testing.T) {
	c, err := New(40, 5)
	require.NoError(t, err)

	docs := []core.SourceDocument{
		{Text: "First document about alpha and beta and gamma and delta.", Metadata: core.Metadata{core.MetaSource: "one.txt", "page": 1}},
		{Text: "Second document.", Metadata: core.Metadata{core.MetaSource: "two.txt", "page": 2}},
	}

	passages, err := c.Chunk(docs)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(passages), 3)

	last := passages[len(passages)-1]
	assert.Equal(t, "Second document.", last.Text)
	assert.Equal(t, "two.txt", last.Metadata.Source())
	assert.Equal(t, 2, last.Metadata["page"])

	for _, p := range passages[:len(passages)-1] {
		assert.Equal(t, "one.txt", p.Metadata.Source())
		assert.Equal(t, 1, p.Metadata["page"])
	}
}

func TestChunk_MetadataIsCopied(t *testing.T) {
	c, err := New(20, 1)
	require.NoError(t, err)

	meta := core.Metadata{core.MetaSource: "shared.txt"}
	passages, err := c.Chunk([]core.SourceDocument{{Text: "one two three four five six seven eight nine ten", Metadata: meta}})
	require.NoError(t, err)
	require.Greater(t, len(passages), 1)

	passages[0].Metadata[core.MetaSource] = "changed"
	assert.Equal(t, "shared.txt", meta.Source())
	assert.Equal(t, "shared.txt", passages[1].Metadata.Source())
}

func TestChunk_SkipsEmptyDocuments(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	passages, err := c.Chunk([]core.SourceDocument{
		{Text: ""},
		{Text: "   \n\n  "},
		{Text: "Dogs are mammals."},
	})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Dogs are mammals.", passages[0].Text)
}

func TestChunk_NoDocuments(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	passages, err := c.Chunk(nil)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

// Package chunker splits source documents into overlapping, bounded-length
// passages.
//
// Splitting is recursive: text is first broken at paragraph boundaries, then
// line boundaries, then word boundaries and finally between characters, each
// finer separator only applied to segments still longer than the maximum.
package chunker

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docrag/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultMaxLength is the default maximum passage length in characters.
	DefaultMaxLength = 1000
	// DefaultOverlap is the default number of characters shared by neighbouring passages.
	DefaultOverlap = 200
)

// Separators lists the split points in priority order.
var Separators = []string{"\n\n", "\n", " ", ""}

// Chunker splits documents into passages. It is safe for concurrent use.
type Chunker struct {
	maxLength int
	overlap   int
	splitter  textsplitter.RecursiveCharacter
	logger    *slog.Logger
}

// New creates a chunker. Returns core.ErrInvalidChunkConfig unless
// 0 < overlap < maxLength.
func New(maxLength, overlap int) (*Chunker, error) {
	if err := core.ValidateChunkParams(maxLength, overlap); err != nil {
		return nil, err
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxLength),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(Separators),
	)

	return &Chunker{
		maxLength: maxLength,
		overlap:   overlap,
		splitter:  splitter,
		logger:    slog.Default().With("component", "chunker"),
	}, nil
}

// MaxLength returns the configured maximum passage length.
func (c *Chunker) MaxLength() int {
	return c.maxLength
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits every document into passages. Output order follows input
// order, and each passage carries a copy of its document's metadata.
// Documents with no non-whitespace text produce no passages.
func (c *Chunker) Chunk(docs []core.SourceDocument) ([]core.Passage, error) {
	passages := make([]core.Passage, 0, len(docs))

	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			c.logger.Debug("skipping empty document", "index", i, "source", doc.Metadata.Source())
			continue
		}

		parts, err := c.splitter.SplitText(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting document %d (%s): %w", i, doc.Metadata.Source(), err)
		}

		for _, part := range parts {
			for _, piece := range c.bound(part) {
				if strings.TrimSpace(piece) == "" {
					continue
				}
				passages = append(passages, core.Passage{
					Text:     piece,
					Metadata: doc.Metadata.Clone(),
				})
			}
		}
	}

	c.logger.Debug("chunked documents", "documents", len(docs), "passages", len(passages))
	return passages, nil
}

// bound cuts part into pieces of at most maxLength runes. The splitter can
// overshoot by one separator when it merges pieces; such parts are broken
// at the coarsest separator inside the limit, or between runes if there is
// none.
func (c *Chunker) bound(part string) []string {
	if utf8.RuneCountInString(part) <= c.maxLength {
		return []string{part}
	}

	var pieces []string
	for utf8.RuneCountInString(part) > c.maxLength {
		limit := runeOffset(part, c.maxLength)
		cut, skip := limit, 0
		for _, sep := range Separators {
			if sep == "" {
				break
			}
			if i := strings.LastIndex(part[:limit], sep); i > 0 {
				cut, skip = i, len(sep)
				break
			}
		}
		pieces = append(pieces, part[:cut])
		part = part[cut+skip:]
	}
	return append(pieces, part)
}

// runeOffset returns the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/poiesic/docrag/core"
)

// sniffLen is enough for the detector to look inside the first entries of
// an Office Open XML archive.
const sniffLen = 8192

// checkSignature reads the head of path and matches it against accepted.
func checkSignature(path string, accepted []string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	return matchSignature(detect(head[:n]), accepted)
}

// detect returns the file type of head, or types.Unknown.
func detect(head []byte) types.Type {
	kind, err := filetype.Match(head)
	if err != nil {
		return filetype.Unknown
	}
	return kind
}

// matchSignature accepts kind if it is one of accepted. Text formats accept
// only content with no recognisable binary signature.
func matchSignature(kind types.Type, accepted []string) error {
	if len(accepted) == 0 {
		if kind == filetype.Unknown {
			return nil
		}
		return fmt.Errorf("%w: text file has %s content", core.ErrSourceFormatMismatch, kind.Extension)
	}
	if slices.Contains(accepted, kind.Extension) {
		return nil
	}
	return fmt.Errorf("%w: detected %s content, expected one of %v", core.ErrSourceFormatMismatch, kind.Extension, accepted)
}

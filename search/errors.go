package search

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexRequired is returned when an index is not provided.
	ErrIndexRequired = errors.New("index required")

	// ErrSynthesizerRequired is returned by Answer when the engine has no synthesizer.
	ErrSynthesizerRequired = errors.New("synthesizer required")
)

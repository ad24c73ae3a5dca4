package fastembed

import "errors"

var (
	// ErrUnsupportedModel is returned for models the local backend cannot load.
	ErrUnsupportedModel = errors.New("fastembed: unsupported model")

	// ErrNotAvailable is returned when the binary was built without cgo.
	ErrNotAvailable = errors.New("fastembed: not available (binary built without cgo, use the openai backend)")

	// ErrClosed is returned when the embedder is used after Close.
	ErrClosed = errors.New("fastembed: embedder is closed")
)

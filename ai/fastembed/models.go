package fastembed

import "strings"

// modelDimensions lists the models the local backend can load and the
// dimension of the vectors they produce.
var modelDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
}

// CanonicalModelName maps short model names ("all-MiniLM-L6-v2",
// "bge-small-en-v1.5") to their full hub names. Unknown names are returned
// unchanged.
func CanonicalModelName(name string) string {
	name = strings.TrimSpace(name)
	if _, ok := modelDimensions[name]; ok {
		return name
	}
	for full := range modelDimensions {
		if strings.EqualFold(full[strings.IndexByte(full, '/')+1:], name) {
			return full
		}
	}
	return name
}

// ModelDimension returns the vector dimension of a supported model.
func ModelDimension(name string) (int, bool) {
	dim, ok := modelDimensions[CanonicalModelName(name)]
	return dim, ok
}

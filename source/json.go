package source

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/docrag/core"
	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid JSON")

// LoadJSON loads a JSON file as a single document with one "path: value"
// line per leaf value, in document order.
func LoadJSON(ctx context.Context, path string) ([]core.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, errInvalidJSON
	}

	var lines []string
	flattenJSON(gjson.ParseBytes(data), "", &lines)
	return []core.SourceDocument{{
		Text:     strings.Join(lines, "\n"),
		Metadata: core.Metadata{},
	}}, nil
}

func flattenJSON(value gjson.Result, path string, lines *[]string) {
	switch {
	case value.IsObject():
		value.ForEach(func(key, child gjson.Result) bool {
			flattenJSON(child, joinPath(path, key.String()), lines)
			return true
		})
	case value.IsArray():
		i := 0
		value.ForEach(func(_, child gjson.Result) bool {
			flattenJSON(child, path+"["+strconv.Itoa(i)+"]", lines)
			i++
			return true
		})
	default:
		text := value.String()
		if value.Type == gjson.Null {
			text = "null"
		}
		if path == "" {
			*lines = append(*lines, text)
			return
		}
		*lines = append(*lines, path+": "+text)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

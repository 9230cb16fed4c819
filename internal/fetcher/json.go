package fetcher

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject decodes a single JSON document from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// ReadJSONFile decodes the JSON document stored at path.
func ReadJSONFile[T any](path string) (*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "json: open file")
	}
	defer f.Close() //nolint:errcheck
	return DecodeJSONObject[T](f)
}

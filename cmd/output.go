package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// writeOutput prints v in the selected --format.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	}
}

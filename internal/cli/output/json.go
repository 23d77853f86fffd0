package output

import (
	"encoding/json"
	"io"
)

// PrintJSON writes data as two-space-indented JSON, the rendering
// behind --output json.
func PrintJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// PrintJSONCompact writes data as a single JSON line for piping into
// other tools.
func PrintJSONCompact(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	return encoder.Encode(data)
}

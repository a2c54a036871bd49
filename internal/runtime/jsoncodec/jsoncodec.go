// Package jsoncodec is the single JSON entry point for the bridge: lookup
// payloads are decoded and /status documents encoded through it.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// api matches encoding/json semantics except that map keys are sorted and
// HTML is not escaped, which keeps /status output stable and readable.
var api = sonic.Config{
	SortMapKeys:      true,
	ValidateString:   true,
	CompactMarshaler: true,
	CopyString:       true,
}.Froze()

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Decode reads a single JSON document from r.
func Decode(r io.Reader, v any) error {
	return api.NewDecoder(r).Decode(v)
}

// FirstString returns the first of paths (gjson syntax) that holds a string
// in data. Malformed documents yield "".
func FirstString(data []byte, paths ...string) string {
	if !gjson.ValidBytes(data) {
		return ""
	}
	for _, r := range gjson.GetManyBytes(data, paths...) {
		if r.Type == gjson.String {
			return r.String()
		}
	}
	return ""
}

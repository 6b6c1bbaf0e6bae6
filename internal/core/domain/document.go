package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConfigDocument is the scoreboard's full configuration as a single JSON
// document. The canonical representation is the raw bytes: two documents are
// the same configuration if and only if their bytes are equal, which is what
// the rollback guarantee is stated in terms of.
type ConfigDocument struct {
	raw []byte
}

// ParseDocument builds a ConfigDocument from raw JSON bytes.
func ParseDocument(data []byte) (ConfigDocument, error) {
	if !json.Valid(data) {
		return ConfigDocument{}, fmt.Errorf("config document is not valid JSON")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return ConfigDocument{}, fmt.Errorf("config document must be a JSON object")
	}
	return ConfigDocument{raw: append([]byte(nil), data...)}, nil
}

// NewDocument builds a ConfigDocument from a nested map, normalizing it to
// indented JSON. Used when seeding defaults on first run.
func NewDocument(values map[string]any) (ConfigDocument, error) {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return ConfigDocument{}, fmt.Errorf("failed to encode config document: %w", err)
	}
	return ConfigDocument{raw: data}, nil
}

// Bytes returns a copy of the document's raw JSON.
func (d ConfigDocument) Bytes() []byte {
	return append([]byte(nil), d.raw...)
}

// IsZero reports whether the document has no content at all (as opposed to an
// empty object, which is a valid document).
func (d ConfigDocument) IsZero() bool {
	return d.raw == nil
}

// Clone returns an independent copy of the document.
func (d ConfigDocument) Clone() ConfigDocument {
	return ConfigDocument{raw: d.Bytes()}
}

// Equal reports whether two documents are byte-identical.
func (d ConfigDocument) Equal(other ConfigDocument) bool {
	return bytes.Equal(d.raw, other.raw)
}

// Has reports whether a dotted-path key exists in the document.
func (d ConfigDocument) Has(path string) bool {
	return gjson.GetBytes(d.raw, path).Exists()
}

// Get returns the value at a dotted-path key. The second return is false when
// the key is absent.
func (d ConfigDocument) Get(path string) (any, bool) {
	res := gjson.GetBytes(d.raw, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// GetString returns the string value at path, or "" when absent or not a
// string.
func (d ConfigDocument) GetString(path string) string {
	res := gjson.GetBytes(d.raw, path)
	if res.Type != gjson.String {
		return ""
	}
	return res.String()
}

// Set returns a new document with the value at the dotted-path key replaced
// (or inserted, creating intermediate objects as needed). The receiver is not
// modified.
func (d ConfigDocument) Set(path string, value any) (ConfigDocument, error) {
	out, err := sjson.SetBytesOptions(d.raw, path, value, &sjson.Options{Optimistic: true})
	if err != nil {
		return ConfigDocument{}, fmt.Errorf("failed to set %q: %w", path, err)
	}
	return ConfigDocument{raw: out}, nil
}

// SetAll applies a batch of dotted-path assignments, returning the resulting
// document. Assignments are applied in key-sorted order so the result is
// deterministic for a given input map.
func (d ConfigDocument) SetAll(values map[string]any) (ConfigDocument, error) {
	doc := d
	for _, path := range sortedKeys(values) {
		var err error
		doc, err = doc.Set(path, values[path])
		if err != nil {
			return ConfigDocument{}, err
		}
	}
	return doc, nil
}

// Map decodes the document into a nested map. The result is a copy; mutating
// it does not affect the document.
func (d ConfigDocument) Map() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(d.raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode config document: %w", err)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

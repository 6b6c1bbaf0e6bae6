// Package schema models the scoreboard configuration schema: the base keys
// the display process always understands plus the keys contributed by enabled
// plugins. Validation is pure; nothing in this package touches disk.
package schema

import (
	"sort"

	"scorehub.io/cli/internal/core/domain"
)

// Property types understood by the validator.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Property describes one dotted-path configuration key.
type Property struct {
	Type        string
	Required    bool
	Default     any
	Enum        []string
	Minimum     *float64
	Maximum     *float64
	Description string
}

// Schema is a set of dotted-path keys with their constraints.
type Schema struct {
	props map[string]Property
}

// New builds a schema from a property map.
func New(props map[string]Property) *Schema {
	copied := make(map[string]Property, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return &Schema{props: copied}
}

// Property returns the constraint for a key, if declared.
func (s *Schema) Property(key string) (Property, bool) {
	p, ok := s.props[key]
	return p, ok
}

// Keys returns all declared keys in sorted order.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.props))
	for k := range s.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new schema containing the receiver's keys plus the
// other schema's keys. On collision the other schema wins; plugin
// contributions refine base keys, never the reverse.
func (s *Schema) Merge(other *Schema) *Schema {
	merged := make(map[string]Property, len(s.props)+len(other.props))
	for k, v := range s.props {
		merged[k] = v
	}
	for k, v := range other.props {
		merged[k] = v
	}
	return &Schema{props: merged}
}

// FromContributions builds a schema out of the config keys a plugin manifest
// declares.
func FromContributions(contribs []domain.SchemaContribution) *Schema {
	props := make(map[string]Property, len(contribs))
	for _, c := range contribs {
		props[c.Key] = Property{
			Type:        c.Type,
			Required:    c.Required,
			Default:     c.Default,
			Enum:        c.Enum,
			Minimum:     c.Minimum,
			Maximum:     c.Maximum,
			Description: c.Description,
		}
	}
	return &Schema{props: props}
}

// Effective computes the schema in force for a given set of plugin records:
// the base schema plus the contributions of every enabled plugin. Disabled
// plugins contribute nothing; their config values may linger in the document
// but are not enforced.
func Effective(base *Schema, records []domain.PluginRecord) *Schema {
	out := base
	for _, rec := range records {
		if rec.State != domain.StateEnabled {
			continue
		}
		out = out.Merge(FromContributions(rec.Manifest.ConfigKeys))
	}
	return out
}

// Defaults returns a nested map of every declared default value, used to seed
// the canonical document on first run.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any)
	for key, prop := range s.props {
		if prop.Default != nil {
			out[key] = prop.Default
		}
	}
	return out
}

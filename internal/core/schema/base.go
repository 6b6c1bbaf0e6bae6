package schema

import "scorehub.io/cli/internal/core/domain"

func floatPtr(v float64) *float64 { return &v }

// Base returns the schema of the scoreboard's built-in configuration keys.
// Plugin contributions are layered on top of this through Effective.
func Base() *Schema {
	return New(map[string]Property{
		"debug": {
			Type:        TypeBoolean,
			Default:     false,
			Description: "Verbose logging in the display process",
		},
		"live_mode": {
			Type:        TypeBoolean,
			Default:     true,
			Description: "Switch to live game rendering when a game is on",
		},
		"display.brightness": {
			Type:     TypeInteger,
			Required: true,
			Default:  float64(40),
			Minimum:  floatPtr(1),
			Maximum:  floatPtr(100),
		},
		"display.rotation_rate": {
			Type:    TypeNumber,
			Default: float64(15),
			Minimum: floatPtr(1),
			Maximum: floatPtr(300),
		},
		"preferences.teams": {
			Type:     TypeArray,
			Required: true,
			Default:  []any{},
		},
		"preferences.time_format": {
			Type:    TypeString,
			Default: "12h",
			Enum:    []string{"12h", "24h"},
		},
		"boards.off_day": {
			Type:    TypeArray,
			Default: []any{"clock", "weather"},
		},
		"boards.scheduled": {
			Type:    TypeArray,
			Default: []any{"scoreticker", "standings"},
		},
		"boards.intermission": {
			Type:    TypeArray,
			Default: []any{"team_summary"},
		},
		"boards.post_game": {
			Type:    TypeArray,
			Default: []any{"standings"},
		},
		"mqtt.enabled": {
			Type:    TypeBoolean,
			Default: false,
		},
		"mqtt.broker": {
			Type:    TypeString,
			Default: "",
		},
		"mqtt.port": {
			Type:    TypeInteger,
			Default: float64(1883),
			Minimum: floatPtr(1),
			Maximum: floatPtr(65535),
		},
	})
}

// SeedDocument builds the default canonical document from the base schema.
func SeedDocument() (domain.ConfigDocument, error) {
	doc, err := domain.NewDocument(map[string]any{})
	if err != nil {
		return domain.ConfigDocument{}, err
	}
	return doc.SetAll(Base().Defaults())
}

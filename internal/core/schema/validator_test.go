package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorehub.io/cli/internal/core/domain"
)

func mustDoc(t *testing.T, raw string) domain.ConfigDocument {
	t.Helper()
	doc, err := domain.ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestValidate_BaseSchema(t *testing.T) {
	tests := []struct {
		name       string
		document   string
		wantFields []string
	}{
		{
			name:     "seed document is valid",
			document: "",
		},
		{
			name:       "missing required keys",
			document:   `{"debug": false}`,
			wantFields: []string{"display.brightness", "preferences.teams"},
		},
		{
			name:       "brightness above maximum",
			document:   `{"display": {"brightness": 150}, "preferences": {"teams": []}}`,
			wantFields: []string{"display.brightness"},
		},
		{
			name:       "brightness below minimum",
			document:   `{"display": {"brightness": 0}, "preferences": {"teams": []}}`,
			wantFields: []string{"display.brightness"},
		},
		{
			name:       "brightness not an integer",
			document:   `{"display": {"brightness": 40.5}, "preferences": {"teams": []}}`,
			wantFields: []string{"display.brightness"},
		},
		{
			name:       "wrong type for boolean",
			document:   `{"debug": "yes", "display": {"brightness": 40}, "preferences": {"teams": []}}`,
			wantFields: []string{"debug"},
		},
		{
			name:       "enum violation",
			document:   `{"display": {"brightness": 40}, "preferences": {"teams": [], "time_format": "25h"}}`,
			wantFields: []string{"preferences.time_format"},
		},
		{
			name:     "unknown keys are permitted",
			document: `{"display": {"brightness": 40}, "preferences": {"teams": []}, "weather": {"api_key": "abc"}}`,
		},
		{
			name:       "multiple violations all reported",
			document:   `{"debug": 1, "display": {"brightness": 0}, "preferences": {"teams": "AVS"}}`,
			wantFields: []string{"debug", "display.brightness", "preferences.teams"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc domain.ConfigDocument
			if tt.document == "" {
				var err error
				doc, err = SeedDocument()
				require.NoError(t, err)
			} else {
				doc = mustDoc(t, tt.document)
			}

			err := Validate(doc, Base())
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verrs *domain.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs.Errors, len(tt.wantFields))
			for i, field := range tt.wantFields {
				assert.Equal(t, field, verrs.Errors[i].Field)
			}
		})
	}
}

func TestEffective_PluginContributions(t *testing.T) {
	records := []domain.PluginRecord{
		{
			Manifest: domain.PluginManifest{
				ID: "weather-radar",
				ConfigKeys: []domain.SchemaContribution{
					{Key: "weather.api_key", Type: TypeString, Required: true},
					{Key: "weather.refresh_minutes", Type: TypeInteger, Default: float64(10), Minimum: floatPtr(1)},
				},
			},
			State: domain.StateEnabled,
		},
		{
			Manifest: domain.PluginManifest{
				ID: "disabled-one",
				ConfigKeys: []domain.SchemaContribution{
					{Key: "other.key", Type: TypeString, Required: true},
				},
			},
			State: domain.StateDisabled,
		},
	}

	effective := Effective(Base(), records)

	_, hasContributed := effective.Property("weather.api_key")
	assert.True(t, hasContributed, "enabled plugin keys join the schema")
	_, hasDisabled := effective.Property("other.key")
	assert.False(t, hasDisabled, "disabled plugin keys do not")
	_, hasBase := effective.Property("display.brightness")
	assert.True(t, hasBase, "base keys survive the merge")

	// A document valid against the base alone now fails: the contributed
	// required key is missing.
	doc, err := SeedDocument()
	require.NoError(t, err)
	err = Validate(doc, effective)
	var verrs *domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs.Errors, 1)
	assert.Equal(t, "weather.api_key", verrs.Errors[0].Field)
}

func TestSchema_MergeCollisionOtherWins(t *testing.T) {
	base := New(map[string]Property{"k": {Type: TypeString}})
	override := New(map[string]Property{"k": {Type: TypeInteger}})

	merged := base.Merge(override)
	prop, ok := merged.Property("k")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, prop.Type)
}

func TestSeedDocument_DefaultsApplied(t *testing.T) {
	doc, err := SeedDocument()
	require.NoError(t, err)

	v, ok := doc.Get("display.brightness")
	require.True(t, ok)
	assert.Equal(t, float64(40), v)
	assert.Equal(t, "12h", doc.GetString("preferences.time_format"))
	assert.True(t, doc.Has("boards.off_day"))

	// Seeding twice yields the same bytes; defaults are written in sorted
	// key order.
	again, err := SeedDocument()
	require.NoError(t, err)
	assert.True(t, doc.Equal(again))
}

package hover

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Fact{Key: "namespace", Value: "logistics"})
	require.NoError(t, err)
	assert.Equal(t, `["namespace","logistics"]`, string(data))

	var f Fact
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, Fact{Key: "namespace", Value: "logistics"}, f)

	assert.Error(t, json.Unmarshal([]byte(`{"namespace":"logistics"}`), &f))
}

func TestParseDetailLevel(t *testing.T) {
	tests := []struct {
		input string
		want  DetailLevel
	}{
		{"core", DetailCore},
		{"standard", DetailStandard},
		{"deep", DetailDeep},
		{"", DetailStandard},
		{"everything", DetailStandard},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseDetailLevel(tt.input)
			assert.Equal(t, tt.want, got)
			if tt.input == "core" || tt.input == "standard" || tt.input == "deep" {
				assert.Equal(t, tt.input, got.String())
			}
		})
	}
}

func TestModelFieldNamesAreStable(t *testing.T) {
	data, err := json.Marshal(&Model{SchemaVersion: SchemaVersion})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"schema_version", "id", "symbol", "context", "primary", "related", "limits"} {
		assert.Contains(t, decoded, key)
	}
	symbol := decoded["symbol"].(map[string]interface{})
	assert.Contains(t, symbol, "resolution_confidence")
	assert.Contains(t, symbol, "resolve_id")
}

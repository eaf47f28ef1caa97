package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlog/record"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry(record.NewMemStore())

	all := registry.GetTools()
	require.Len(t, all, 2)
	assert.Equal(t, "logIngredients", all[0].Name())
	assert.Equal(t, "setAnalysisConfidence", all[1].Name())

	tool, err := registry.GetTool("setAnalysisConfidence")
	require.NoError(t, err)
	assert.Equal(t, "setAnalysisConfidence", tool.Name())

	_, err = registry.GetTool("deleteEverything")
	assert.Error(t, err)
}

func TestNumberCoercion(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{name: "float64", in: 42.0, want: 42},
		{name: "int", in: 42, want: 42},
		{name: "int64", in: int64(42), want: 42},
		{name: "json number", in: json.Number("42"), want: 42},
		{name: "numeric string", in: " 42 ", want: 42},
		{name: "fraction", in: 42.5, wantErr: true},
		{name: "largest exact id", in: float64(1 << 53), want: 1 << 53},
		{name: "beyond int64", in: 1e20, wantErr: true},
		{name: "beyond int64 string", in: "-1e19", wantErr: true},
		{name: "word", in: "forty-two", wantErr: true},
		{name: "bool", in: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := intArg(map[string]any{"v": tt.in}, "v")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

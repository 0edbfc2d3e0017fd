package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/pipeline"
)

func TestDecodeRegions_RoundTripsTypedSlice(t *testing.T) {
	raw := []any{
		map[string]any{"region": "FL", "question": "population of Florida"},
		map[string]any{"region": "TX", "question": "population of Texas"},
	}

	regions, err := decodeRegions(raw)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, pipeline.ComparisonRegion{Region: "FL", Question: "population of Florida"}, regions[0])
}

func TestDecodeRegions_RejectsEmptyList(t *testing.T) {
	_, err := decodeRegions([]any{})
	require.Error(t, err)
}

func TestDecodeRegions_RejectsMalformedShape(t *testing.T) {
	_, err := decodeRegions("not a list")
	require.Error(t, err)
}

package translator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/errkind"
	"github.com/censusql/gateway/internal/schema"
)

type stubClient struct {
	response string
	err      error
}

func (s *stubClient) complete(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func TestTranslate_ParsesValidResponse(t *testing.T) {
	stub := &stubClient{response: `{
		"intent": "general_demographic",
		"geography": [{"level": "state", "name": "California"}],
		"measures": ["population"],
		"filters": [],
		"limit": 10,
		"sql": "SELECT population FROM state_data WHERE state_name = 'California'"
	}`}

	tr := newWithClient(stub, schema.Default(), Config{})

	analysis, err := tr.Translate(context.Background(), "What is California's population?", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentGeneralDemographic, analysis.Intent)
	assert.Equal(t, "06", analysis.Geography[0].Code)
	assert.Equal(t, 10, analysis.Limit)
}

func TestTranslate_UnknownIntentIsLowConfidence(t *testing.T) {
	stub := &stubClient{response: `{"intent": "not_a_real_intent", "sql": "SELECT 1"}`}

	tr := newWithClient(stub, schema.Default(), Config{})

	_, err := tr.Translate(context.Background(), "???", nil)
	require.Error(t, err)

	classified, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.TranslationLowConfidence, classified.Kind)
}

func TestTranslate_MalformedJSONIsLowConfidence(t *testing.T) {
	stub := &stubClient{response: "not json at all"}

	tr := newWithClient(stub, schema.Default(), Config{})

	_, err := tr.Translate(context.Background(), "garbage in", nil)
	require.Error(t, err)

	classified, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.TranslationLowConfidence, classified.Kind)
}

func TestTranslate_ClientErrorIsUnavailable(t *testing.T) {
	stub := &stubClient{err: assertError{"connection refused"}}

	tr := newWithClient(stub, schema.Default(), Config{})

	_, err := tr.Translate(context.Background(), "anything", nil)
	require.Error(t, err)

	classified, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.TranslationUnavailable, classified.Kind)
}

func TestTranslate_UsesSessionContextWhenReferential(t *testing.T) {
	stub := &stubClient{response: `{
		"intent": "general_demographic",
		"geography": [],
		"measures": ["population"],
		"filters": [],
		"limit": 5,
		"sql": "SELECT population FROM state_data"
	}`}

	tr := newWithClient(stub, schema.Default(), Config{
		IsReferential: func(string) bool { return true },
	})

	session := &SessionContext{
		PreviousQuestion: "What is the population of California?",
		PreviousAnalysis: &Analysis{Intent: IntentGeneralDemographic, SQL: "SELECT population FROM state_data WHERE state_name = 'California'"},
	}

	analysis, err := tr.Translate(context.Background(), "now filter to those over 100000", session)
	require.NoError(t, err)
	assert.Equal(t, 5, analysis.Limit)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

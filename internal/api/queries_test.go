package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/translator"
)

func doQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	return rec
}

func TestHandleQueries_SuccessfulTranslation_Returns200(t *testing.T) {
	s := newTestServer(t, &stubTranslator{analysis: &translator.Analysis{
		Intent: translator.IntentGeneralDemographic,
		SQL:    "SELECT state_name, population FROM state_data WHERE state_fips = '12'",
		Limit:  1000,
	}}, nil)

	rec := doQuery(t, s, `{"question":"what is the population of Florida?"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
}

func TestHandleQueries_EmptyQuestion_Returns400(t *testing.T) {
	s := newTestServer(t, &stubTranslator{}, nil)

	rec := doQuery(t, s, `{"question":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueries_MalformedBody_Returns400(t *testing.T) {
	s := newTestServer(t, &stubTranslator{}, nil)

	rec := doQuery(t, s, `not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueries_TranslationFailure_Returns422(t *testing.T) {
	s := newTestServer(t, &stubTranslator{err: assert.AnError}, nil)

	rec := doQuery(t, s, `{"question":"what is the population of Florida?"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleQueries_SessionContextIsAccepted(t *testing.T) {
	s := newTestServer(t, &stubTranslator{analysis: &translator.Analysis{
		Intent: translator.IntentGeneralDemographic,
		SQL:    "SELECT state_name, population FROM state_data WHERE state_fips = '12'",
		Limit:  1000,
	}}, nil)

	rec := doQuery(t, s, `{
		"question": "and Texas?",
		"session": {"PreviousQuestion": "population of Florida", "PreviousAnalysis": null}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
}

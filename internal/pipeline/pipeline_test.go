package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/dbpool"
	"github.com/censusql/gateway/internal/errkind"
	"github.com/censusql/gateway/internal/observability"
	"github.com/censusql/gateway/internal/pipeline"
	"github.com/censusql/gateway/internal/schema"
	"github.com/censusql/gateway/internal/sqlguard"
	"github.com/censusql/gateway/internal/translator"
)

type stubTranslator struct {
	analysis *translator.Analysis
	err      error
}

func (s *stubTranslator) Translate(context.Context, string, *translator.SessionContext) (*translator.Analysis, error) {
	return s.analysis, s.err
}

func testCatalog() *schema.Catalog {
	return schema.New([]schema.Table{
		{
			Name:           "state_data",
			GeographyLevel: "state",
			PrimaryKey:     "state_fips",
			Columns: []schema.Column{
				{Name: "state_fips", Kind: schema.KindString},
				{Name: "state_name", Kind: schema.KindString},
				{Name: "population", Kind: schema.KindInteger},
			},
		},
	})
}

func newTestPool(t *testing.T) *dbpool.Pool {
	t.Helper()

	ctx := context.Background()

	pool, err := dbpool.Open(ctx, dbpool.Config{Path: ":memory:", HealthCheckInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	_, err = pool.DB().ExecContext(ctx, `CREATE TABLE state_data (
		state_fips VARCHAR, state_name VARCHAR, population BIGINT
	)`)
	require.NoError(t, err)

	_, err = pool.DB().ExecContext(ctx, `INSERT INTO state_data VALUES
		('12', 'Florida', 21634529), ('48', 'Texas', 30000000)`)
	require.NoError(t, err)

	return pool
}

func newTestPipeline(t *testing.T, tr translator.Translator) *pipeline.Pipeline {
	t.Helper()

	catalog := testCatalog()
	pool := newTestPool(t)
	validator := sqlguard.New(catalog, sqlguard.Config{})
	tracker := observability.New(nil)

	return pipeline.New(tr, validator, pool, nil, nil, tracker, pipeline.Config{})
}

func TestPipeline_RunSQL_Success(t *testing.T) {
	p := newTestPipeline(t, &stubTranslator{})

	result := p.RunSQL(context.Background(), "SELECT state_name, population FROM state_data WHERE state_fips = '12'", nil)

	require.True(t, result.Success)
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)
	require.NotNil(t, result.Query)
	assert.Equal(t, 1, result.Query.RowCount)
	assert.Equal(t, "Florida", result.Query.Rows[0]["state_name"])
}

func TestPipeline_RunSQL_RejectsWriteStatement(t *testing.T) {
	p := newTestPipeline(t, &stubTranslator{})

	result := p.RunSQL(context.Background(), "DROP TABLE state_data", nil)

	assert.False(t, result.Success)
	assert.Equal(t, pipeline.OutcomeSQLRejected, result.Outcome)
	assert.Nil(t, result.Query)
	assert.NotEmpty(t, result.Suggestions)
}

func TestPipeline_RunSQL_RejectsCommentInjection(t *testing.T) {
	p := newTestPipeline(t, &stubTranslator{})

	result := p.RunSQL(context.Background(), "SELECT state_name FROM state_data -- DROP TABLE state_data", nil)

	assert.False(t, result.Success)
	assert.Equal(t, pipeline.OutcomeSQLRejected, result.Outcome)
}

func TestPipeline_Run_TranslationLowConfidence(t *testing.T) {
	lowConfErr := errkind.Wrap(errkind.TranslationLowConfidence, "could not understand the question", errors.New("bad json"))
	p := newTestPipeline(t, &stubTranslator{err: lowConfErr})

	result := p.Run(context.Background(), "asdf jkl", nil)

	assert.False(t, result.Success)
	assert.Equal(t, pipeline.OutcomeLowConfidence, result.Outcome)
	assert.NotEmpty(t, result.Suggestions)
}

func TestPipeline_Run_TranslatesAndExecutes(t *testing.T) {
	p := newTestPipeline(t, &stubTranslator{analysis: &translator.Analysis{
		Intent: translator.IntentGeneralDemographic,
		SQL:    "SELECT state_name, population FROM state_data WHERE state_fips = '48'",
		Limit:  1000,
	}})

	result := p.Run(context.Background(), "How many people live in Texas?", nil)

	require.True(t, result.Success)
	require.NotNil(t, result.Query)
	assert.Equal(t, "Texas", result.Query.Rows[0]["state_name"])
}

func TestPipeline_RunComparison_PartialSuccessAllowed(t *testing.T) {
	calls := 0
	p := newTestPipeline(t, translatorFunc(func(_ context.Context, question string, _ *translator.SessionContext) (*translator.Analysis, error) {
		calls++
		if question == "fails" {
			return nil, errkind.Wrap(errkind.TranslationLowConfidence, "nope", errors.New("bad"))
		}

		return &translator.Analysis{SQL: "SELECT state_name FROM state_data WHERE state_fips = '12'", Limit: 1000}, nil
	}))

	results := p.RunComparison(context.Background(), []pipeline.ComparisonRegion{
		{Region: "Florida", Question: "ok"},
		{Region: "Nowhere", Question: "fails"},
	}, nil)

	require.Len(t, results, 2)

	successCount := 0

	for _, r := range results {
		if r.Success {
			successCount++
		}
	}

	assert.Equal(t, 1, successCount)
	assert.Equal(t, 2, calls)
}

type translatorFunc func(ctx context.Context, question string, session *translator.SessionContext) (*translator.Analysis, error)

func (f translatorFunc) Translate(ctx context.Context, question string, session *translator.SessionContext) (*translator.Analysis, error) {
	return f(ctx, question, session)
}

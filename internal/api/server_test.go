package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/breaker"
	"github.com/censusql/gateway/internal/dbpool"
	"github.com/censusql/gateway/internal/observability"
	"github.com/censusql/gateway/internal/pipeline"
	"github.com/censusql/gateway/internal/schema"
	"github.com/censusql/gateway/internal/session"
	"github.com/censusql/gateway/internal/sqlguard"
	"github.com/censusql/gateway/internal/translator"
)

type stubTranslator struct {
	analysis *translator.Analysis
	err      error
}

func (s *stubTranslator) Translate(
	context.Context,
	string,
	*translator.SessionContext,
) (*translator.Analysis, error) {
	return s.analysis, s.err
}

// stubBreaker is a fake BreakerController for exercising the admin
// force_open/force_close routes without a real dbpool.Pool.
type stubBreaker struct {
	forcedOpen bool
}

func (b *stubBreaker) State() breaker.State {
	if b.forcedOpen {
		return breaker.Open
	}

	return breaker.Closed
}

func (b *stubBreaker) ForceOpen()  { b.forcedOpen = true }
func (b *stubBreaker) ForceClear() { b.forcedOpen = false }

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

func newTestServer(t *testing.T, tr translator.Translator, breakers map[string]BreakerController) *Server {
	t.Helper()

	ctx := context.Background()
	catalog := testCatalog()

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

	validator := sqlguard.New(catalog, sqlguard.Config{})
	tracker := observability.New(nil)
	pipe := pipeline.New(tr, validator, pool, nil, nil, tracker, pipeline.Config{})

	sessions := session.NewManager(session.Config{CleanupInterval: time.Hour, IdleTimeout: time.Hour})
	t.Cleanup(sessions.Close)

	cfg := LoadServerConfig()
	cfg.Port = 0

	return NewServer(cfg, pipe, catalog, sessions, tracker, breakers, nil, nil, pool)
}

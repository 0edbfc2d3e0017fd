// Package main runs the CensusQL gateway: a natural-language-to-SQL
// analytics service over U.S. Census demographics, exposed to
// MCP-compatible clients over JSON-RPC-over-HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/censusql/gateway/internal/api"
	"github.com/censusql/gateway/internal/audit"
	"github.com/censusql/gateway/internal/breaker"
	"github.com/censusql/gateway/internal/dbpool"
	"github.com/censusql/gateway/internal/errkind"
	"github.com/censusql/gateway/internal/freshness"
	"github.com/censusql/gateway/internal/mcpserver"
	"github.com/censusql/gateway/internal/observability"
	"github.com/censusql/gateway/internal/pipeline"
	"github.com/censusql/gateway/internal/ratelimit"
	"github.com/censusql/gateway/internal/schema"
	"github.com/censusql/gateway/internal/session"
	"github.com/censusql/gateway/internal/sqlguard"
	"github.com/censusql/gateway/internal/storage"
	"github.com/censusql/gateway/internal/translator"
)

const (
	version = "1.0.0-dev"
	name    = "censusql"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	logger.Info("starting censusql gateway",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("db_path", cfg.dbPath),
		slog.Int("mcp_port", cfg.mcpPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("censusql gateway failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("censusql gateway stopped")
}

func run(ctx context.Context, cfg appConfig, logger *slog.Logger) error {
	catalog := schema.Default()

	pool, err := dbpool.Open(ctx, dbpool.Config{
		Path:                cfg.dbPath,
		MaxConns:            cfg.dbMaxConns,
		HealthCheckInterval: 30 * time.Second,
		BreakerConfig:       breaker.Config{Name: "dbpool"},
	})
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	validator := sqlguard.New(catalog, sqlguard.Config{})

	var auditLog *audit.Log
	if cfg.auditLogPath != "" {
		sink, err := audit.OpenFileSink(cfg.auditLogPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()

		auditLog = audit.New(sink, func(sinkName string, err error) {
			logger.Warn("audit secondary sink failed", slog.String("sink", sinkName), slog.String("error", err.Error()))
		})
	}

	tracker := observability.New(func() []observability.DependencyStatus {
		return []observability.DependencyStatus{
			{Name: "dbpool", State: pool.BreakerState().String()},
		}
	})

	var llmTranslator translator.Translator
	if cfg.anthropicAPIKey != "" {
		llmTranslator = translator.New(cfg.anthropicAPIKey, cfg.anthropicModel, catalog, translator.Config{
			Timeout: 30 * time.Second,
			Breaker: breaker.Config{Name: "translator"},
		})
	} else {
		logger.Warn("CENSUSQL_ANTHROPIC_API_KEY not set, execute_natural_language will fail translation")
		llmTranslator = noTranslator{}
	}

	freshnessTracker := freshness.New(nil)

	pipe := pipeline.New(llmTranslator, validator, pool, auditLog, freshnessTracker, tracker, pipeline.Config{
		QueryTimeout: cfg.queryTimeout,
	})

	sessions := session.NewManager(session.Config{
		IdleTimeout: 30 * time.Minute,
		Capacity:    cfg.sessionCapacity,
	})
	defer sessions.Close()

	var limiter ratelimit.Limiter
	if cfg.rateLimitEnabled {
		rl := ratelimit.NewInMemoryLimiter(ratelimit.Config{
			GlobalRPS:   cfg.globalRPS,
			IdentityRPS: cfg.identityRPS,
			UnauthRPS:   cfg.unauthRPS,
		})
		defer rl.Close()

		limiter = rl
	}

	mcpSrv := mcpserver.New(catalog, validator, pipe)

	mcpHTTPSrv := mcpserver.NewHTTPServer(mcpserver.Config{
		Host:        cfg.mcpHost,
		Port:        cfg.mcpPort,
		ResourceDir: cfg.resourceDir,
	}, mcpSrv, sessions, limiter, logger)

	apiKeyStore := openAPIKeyStore(logger)
	if closer, ok := apiKeyStore.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	restSrv := api.NewServer(api.LoadServerConfig(), pipe, catalog, sessions, tracker,
		map[string]api.BreakerController{"dbpool": poolBreakerAdapter{pool}},
		apiKeyStore, limiter, pool)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return mcpHTTPSrv.ListenAndServe(groupCtx) })
	group.Go(func() error { return restSrv.ListenAndServe(groupCtx) })

	return group.Wait()
}

// openAPIKeyStore prefers a Postgres-backed store when DATABASE_URL is
// configured, the same production-vs-fallback split dbpool's own
// CENSUSQL_DB_PATH handling makes, and otherwise falls back to an
// in-memory store so the REST facade still starts in local/dev setups.
func openAPIKeyStore(logger *slog.Logger) storage.APIKeyStore {
	storageCfg := storage.LoadConfig()
	if err := storageCfg.Validate(); err != nil {
		logger.Warn("DATABASE_URL not configured, using in-memory API key store")

		return storage.NewInMemoryKeyStore()
	}

	conn, err := storage.NewConnection(storageCfg)
	if err != nil {
		logger.Error("failed to connect to API key store database, falling back to in-memory",
			slog.String("error", err.Error()))

		return storage.NewInMemoryKeyStore()
	}

	store, err := storage.NewPersistentKeyStore(conn)
	if err != nil {
		logger.Error("failed to initialize persistent API key store, falling back to in-memory",
			slog.String("error", err.Error()))
		_ = conn.Close()

		return storage.NewInMemoryKeyStore()
	}

	return store
}

// poolBreakerAdapter satisfies api.BreakerController from dbpool.Pool's
// differently-named breaker accessors.
type poolBreakerAdapter struct {
	pool *dbpool.Pool
}

func (a poolBreakerAdapter) State() breaker.State { return a.pool.BreakerState() }
func (a poolBreakerAdapter) ForceOpen()           { a.pool.ForceOpenBreaker() }
func (a poolBreakerAdapter) ForceClear()          { a.pool.ForceClearBreaker() }

// noTranslator rejects every question with a classified translation
// failure; used when no LLM credential is configured so the rest of the
// gateway (get_schema, validate_sql, execute_query, execute_drill_down,
// execute_comparison) still starts and serves.
type noTranslator struct{}

func (noTranslator) Translate(
	context.Context,
	string,
	*translator.SessionContext,
) (*translator.Analysis, error) {
	return nil, errkind.New(errkind.TranslationUnavailable, "no LLM credential configured")
}

package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/censusql/gateway/internal/config"
)

// appConfig is the gateway's pure configuration, loaded from environment
// variables with sensible defaults — the same split the teacher's
// api.LoadServerConfig makes between configuration (what) and injected
// dependencies (how).
type appConfig struct {
	dbPath     string
	dbMaxConns int

	mcpHost     string
	mcpPort     int
	resourceDir string

	auditLogPath string

	anthropicAPIKey string
	anthropicModel  string

	queryTimeout time.Duration

	sessionCapacity int

	rateLimitEnabled bool
	globalRPS        int
	identityRPS      int
	unauthRPS        int

	logLevel slog.Level
}

func loadConfig() appConfig {
	return appConfig{
		dbPath:           config.GetEnvStr("CENSUSQL_DB_PATH", "census.duckdb"),
		dbMaxConns:       config.GetEnvInt("CENSUSQL_DB_MAX_CONNS", 8),
		mcpHost:          config.GetEnvStr("CENSUSQL_MCP_HOST", "0.0.0.0"),
		mcpPort:          config.GetEnvInt("CENSUSQL_MCP_PORT", 8081),
		resourceDir:      os.Getenv("CENSUSQL_RESOURCE_DIR"),
		auditLogPath:     config.GetEnvStr("CENSUSQL_AUDIT_LOG_PATH", "censusql-audit.log"),
		anthropicAPIKey:  os.Getenv("CENSUSQL_ANTHROPIC_API_KEY"),
		anthropicModel:   config.GetEnvStr("CENSUSQL_ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		queryTimeout:     config.GetEnvDuration("CENSUSQL_QUERY_TIMEOUT", 30*time.Second),
		sessionCapacity:  config.GetEnvInt("CENSUSQL_SESSION_CAPACITY", 1000),
		rateLimitEnabled: config.GetEnvBool("CENSUSQL_RATE_LIMIT_ENABLED", true),
		globalRPS:        config.GetEnvInt("CENSUSQL_GLOBAL_RPS", 100),
		identityRPS:      config.GetEnvInt("CENSUSQL_IDENTITY_RPS", 20),
		unauthRPS:        config.GetEnvInt("CENSUSQL_UNAUTH_RPS", 5),
		logLevel:         config.GetEnvLogLevel("CENSUSQL_LOG_LEVEL", slog.LevelInfo),
	}
}

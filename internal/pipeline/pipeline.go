package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/censusql/gateway/internal/api/middleware"
	"github.com/censusql/gateway/internal/audit"
	"github.com/censusql/gateway/internal/dbpool"
	"github.com/censusql/gateway/internal/errkind"
	"github.com/censusql/gateway/internal/freshness"
	"github.com/censusql/gateway/internal/observability"
	"github.com/censusql/gateway/internal/sqlguard"
	"github.com/censusql/gateway/internal/translator"
)

// Config bounds the pipeline's per-stage behavior.
type Config struct {
	// QueryTimeout bounds stage C, the database execution. Default 30s.
	QueryTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}

	return c
}

// Pipeline wires the translator, validator, connection pool, audit log,
// freshness tracker, and observability tracker into the three-stage
// execution path spec.md §4.5 describes.
type Pipeline struct {
	translator translator.Translator
	validator  *sqlguard.Validator
	pool       *dbpool.Pool
	auditLog   *audit.Log
	freshness  *freshness.Tracker
	tracker    *observability.Tracker
	cfg        Config
}

// New constructs a Pipeline from its already-built dependencies.
func New(
	t translator.Translator,
	v *sqlguard.Validator,
	pool *dbpool.Pool,
	auditLog *audit.Log,
	fresh *freshness.Tracker,
	tracker *observability.Tracker,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		translator: t,
		validator:  v,
		pool:       pool,
		auditLog:   auditLog,
		freshness:  fresh,
		tracker:    tracker,
		cfg:        cfg.withDefaults(),
	}
}

// Run executes the full three-stage pipeline starting at translation, for
// execute_natural_language.
func (p *Pipeline) Run(ctx context.Context, question string, sessCtx *SessionContext) Result {
	correlationID := middleware.GetCorrelationID(ctx)
	start := time.Now()

	ctx, end := p.tracker.Begin(ctx, "pipeline.translate")
	analysis, err := p.translator.Translate(ctx, question, sessCtx)
	end(err)

	if err != nil {
		return p.failTranslation(ctx, correlationID, question, err, start)
	}

	result := p.runValidatedAnalysis(ctx, correlationID, question, analysis, start)
	result.Analysis = analysis

	return result
}

// RunSQL executes the pipeline starting at validation, for execute_query,
// where the caller already supplies candidate SQL.
func (p *Pipeline) RunSQL(ctx context.Context, sqlText string, _ *SessionContext) Result {
	correlationID := middleware.GetCorrelationID(ctx)
	start := time.Now()

	return p.runValidateAndExecute(ctx, correlationID, "", sqlText, nil, start)
}

func (p *Pipeline) runValidatedAnalysis(
	ctx context.Context, correlationID, question string, analysis *translator.Analysis, start time.Time,
) Result {
	return p.runValidateAndExecute(ctx, correlationID, question, analysis.SQL, analysis, start)
}

func (p *Pipeline) runValidateAndExecute(
	ctx context.Context, correlationID, question, sqlText string, analysis *translator.Analysis, start time.Time,
) Result {
	_, end := p.tracker.Begin(ctx, "pipeline.validate")
	validated := p.validator.Validate(sqlText)
	end(nil)

	if !validated.Accepted() {
		return p.failValidation(ctx, correlationID, question, validated, analysis, start)
	}

	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	defer cancel()

	queryResult, err := p.execute(queryCtx, validated)

	outcome := OutcomeSuccess
	errKind := ""
	errMsg := ""

	if err != nil {
		outcome, errKind, errMsg = classifyExecutionError(queryCtx, err)
	}

	p.recordAudit(ctx, audit.Record{
		CorrelationID:     correlationID,
		Timestamp:         time.Now(),
		CallerIdentity:    callerIdentity(ctx),
		OriginalQuestion:  question,
		CandidateSQL:      validated.Sanitized,
		ValidationVerdict: validated.Verdict,
		ExecutionTime:     time.Since(start),
		RowCount:          rowCountOf(queryResult),
		ErrorClass:        errKind,
		Outcome:           string(outcome),
	})

	result := Result{
		CorrelationID: correlationID,
		Outcome:       outcome,
		Success:       err == nil,
		Analysis:      analysis,
		Validated:     &validated,
		Query:         queryResult,
		ErrorKind:     errKind,
		ErrorMessage:  errMsg,
	}

	return result
}

// callerIdentity extracts the authenticated caller's identity for audit
// attribution. Unauthenticated callers (the public demo surface) are
// recorded as "anonymous" rather than leaving the field blank.
func callerIdentity(ctx context.Context) string {
	if pluginCtx, ok := middleware.GetPluginContext(ctx); ok {
		return pluginCtx.PluginID
	}

	return "anonymous"
}

func rowCountOf(q *QueryResult) int {
	if q == nil {
		return 0
	}

	return q.RowCount
}

func (p *Pipeline) failTranslation(ctx context.Context, correlationID, question string, err error, start time.Time) Result {
	kind, msg, suggestions := classifyTranslationError(err)

	outcome := OutcomeError
	if kind == errkind.TranslationLowConfidence {
		outcome = OutcomeLowConfidence
	}

	p.recordAudit(ctx, audit.Record{
		CorrelationID:    correlationID,
		Timestamp:        time.Now(),
		CallerIdentity:   callerIdentity(ctx),
		OriginalQuestion: question,
		ExecutionTime:    time.Since(start),
		ErrorClass:       string(kind),
		Outcome:          string(outcome),
	})

	return Result{
		CorrelationID: correlationID,
		Outcome:       outcome,
		Success:       false,
		ErrorKind:     string(kind),
		ErrorMessage:  msg,
		Suggestions:   suggestions,
	}
}

func (p *Pipeline) failValidation(
	ctx context.Context, correlationID, question string, validated sqlguard.ValidatedSQL,
	analysis *translator.Analysis, start time.Time,
) Result {
	suggestions := make([]string, 0, len(validated.Reasons))
	for _, r := range validated.Reasons {
		suggestions = append(suggestions, r.Phrase)
	}

	p.recordAudit(ctx, audit.Record{
		CorrelationID:     correlationID,
		Timestamp:         time.Now(),
		CallerIdentity:    callerIdentity(ctx),
		OriginalQuestion:  question,
		CandidateSQL:      validated.Original,
		ValidationVerdict: validated.Verdict,
		RejectionReasons:  validated.Reasons,
		ExecutionTime:     time.Since(start),
		ErrorClass:        string(errkind.SQLRejected),
		Outcome:           string(OutcomeSQLRejected),
	})

	return Result{
		CorrelationID: correlationID,
		Outcome:       OutcomeSQLRejected,
		Success:       false,
		Analysis:      analysis,
		Validated:     &validated,
		ErrorKind:     string(errkind.SQLRejected),
		ErrorMessage:  "the candidate statement was rejected by the read-only security policy",
		Suggestions:   suggestions,
	}
}

func (p *Pipeline) recordAudit(ctx context.Context, rec audit.Record) {
	if p.auditLog == nil {
		return
	}

	_ = p.auditLog.Write(ctx, rec)
}

func classifyTranslationError(err error) (errkind.Kind, string, []string) {
	if classified, ok := errkind.As(err); ok {
		switch classified.Kind {
		case errkind.TranslationLowConfidence:
			return classified.Kind, classified.Message, []string{
				"Try rephrasing with a specific geography (state, county, or tract) and measure.",
				"Mention the comparison or filter explicitly, e.g. \"counties in Texas with population over 100000\".",
			}
		case errkind.TranslationUnavailable:
			return classified.Kind, classified.Message, nil
		}
	}

	return errkind.Internal, "translation failed", nil
}

func classifyExecutionError(ctx context.Context, err error) (Outcome, string, string) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return OutcomeCancelled, string(errkind.QueryTimeout), "query cancelled by caller"
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return OutcomeError, string(errkind.QueryTimeout), "query execution exceeded its timeout"
	}

	if classified, ok := errkind.As(err); ok {
		return OutcomeError, string(classified.Kind), classified.Message
	}

	return OutcomeError, string(errkind.ExecutionError), "database rejected the statement at runtime"
}

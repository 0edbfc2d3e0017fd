// Package mcpserver exposes the query execution pipeline and a handful of
// introspection operations to MCP-compatible clients over JSON-RPC-over-HTTP,
// per spec.md §4.6. Tool registration is grounded on
// mark3labs/mcp-go's server.MCPServer/mcp.NewTool pattern (isthmus's
// internal/adapter/mcp); the transport itself is bespoke (see transport.go)
// because the session header contract spec.md specifies does not match
// mcp-go's own StreamableHTTPServer.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/censusql/gateway/internal/pipeline"
	"github.com/censusql/gateway/internal/schema"
	"github.com/censusql/gateway/internal/sqlguard"
)

// Server holds every dependency the six tools need. It is deliberately
// transport-agnostic: tools.go's methods return plain Go values, and both
// register.go (mcp-go tool handlers) and transport.go (bespoke JSON-RPC
// dispatch) marshal those values for their respective callers.
type Server struct {
	catalog   *schema.Catalog
	validator *sqlguard.Validator
	pipeline  *pipeline.Pipeline
}

// New constructs a Server. Every dependency is required; the protocol
// server has no degraded mode.
func New(catalog *schema.Catalog, validator *sqlguard.Validator, pipe *pipeline.Pipeline) *Server {
	return &Server{catalog: catalog, validator: validator, pipeline: pipe}
}

// SchemaResponse is get_schema's result: the full allowlisted catalog.
type SchemaResponse struct {
	Tables []schema.Table `json:"tables"`
}

// handleGetSchema returns the Schema Catalog verbatim.
func (s *Server) handleGetSchema(context.Context) (SchemaResponse, error) {
	return SchemaResponse{Tables: s.catalog.Tables()}, nil
}

// ValidateSQLRequest is validate_sql's input.
type ValidateSQLRequest struct {
	SQL string `json:"sql"`
}

// handleValidateSQL runs the SQL Validator in isolation. It never executes
// the statement, regardless of the verdict.
func (s *Server) handleValidateSQL(_ context.Context, req ValidateSQLRequest) (sqlguard.ValidatedSQL, error) {
	if req.SQL == "" {
		return sqlguard.ValidatedSQL{}, fmt.Errorf("mcpserver: sql is required")
	}

	return s.validator.Validate(req.SQL), nil
}

// ExecuteQueryRequest is execute_query's input: caller-supplied SQL, run
// starting at validation.
type ExecuteQueryRequest struct {
	SQL       string `json:"sql"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleExecuteQuery(ctx context.Context, req ExecuteQueryRequest) (pipeline.Result, error) {
	if req.SQL == "" {
		return pipeline.Result{}, fmt.Errorf("mcpserver: sql is required")
	}

	return s.pipeline.RunSQL(ctx, req.SQL, nil), nil
}

// ExecuteNaturalLanguageRequest is execute_natural_language's input: a
// plain-English question, run starting at translation.
type ExecuteNaturalLanguageRequest struct {
	Question string                   `json:"question"`
	Session  *pipeline.SessionContext `json:"session,omitempty"`
}

func (s *Server) handleExecuteNaturalLanguage(
	ctx context.Context,
	req ExecuteNaturalLanguageRequest,
) (pipeline.Result, error) {
	if req.Question == "" {
		return pipeline.Result{}, fmt.Errorf("mcpserver: question is required")
	}

	return s.pipeline.Run(ctx, req.Question, req.Session), nil
}

// ExecuteDrillDownRequest is execute_drill_down's input: narrows a prior
// result to a child geography level using a primary-key cursor.
type ExecuteDrillDownRequest struct {
	ChildLevel string `json:"child_level"`
	ParentFIPS string `json:"parent_fips"`
	Cursor     string `json:"cursor,omitempty"`
}

func (s *Server) handleExecuteDrillDown(
	ctx context.Context,
	req ExecuteDrillDownRequest,
) (pipeline.DrillDownResult, error) {
	if req.ChildLevel == "" || req.ParentFIPS == "" {
		return pipeline.DrillDownResult{}, fmt.Errorf("mcpserver: child_level and parent_fips are required")
	}

	return s.pipeline.RunDrillDown(ctx, s.catalog, pipeline.DrillDownRequest{
		ChildLevel: req.ChildLevel,
		ParentFIPS: req.ParentFIPS,
		Cursor:     req.Cursor,
	})
}

// ExecuteComparisonRequest is execute_comparison's input: N region/question
// pairs, run in parallel, joined into one envelope with partial success
// allowed.
type ExecuteComparisonRequest struct {
	Regions []pipeline.ComparisonRegion `json:"regions"`
}

// ComparisonResponse wraps execute_comparison's per-region results.
type ComparisonResponse struct {
	Results []pipeline.RegionResult `json:"results"`
}

func (s *Server) handleExecuteComparison(
	ctx context.Context,
	req ExecuteComparisonRequest,
) (ComparisonResponse, error) {
	if len(req.Regions) == 0 {
		return ComparisonResponse{}, fmt.Errorf("mcpserver: at least one region is required")
	}

	return ComparisonResponse{Results: s.pipeline.RunComparison(ctx, req.Regions, nil)}, nil
}

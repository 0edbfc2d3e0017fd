package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/censusql/gateway/internal/pipeline"
)

// Tool descriptions, kept verbose in isthmus's style since the description
// is the only grounding an LLM-driven MCP client has for when to call a
// tool.
const (
	descGetSchema = "Return the allowlisted Census table/column catalog: table names, " +
		"column names and types, geography levels, and any enumerated values. " +
		"Call this first to learn what can be queried before writing SQL or asking a question."

	descValidateSQL = "Check a candidate SELECT statement against the read-only SQL security policy " +
		"without executing it. Returns the sanitized statement, an accept/reject verdict, and " +
		"machine-readable rejection reasons if rejected."

	descValidateSQLParam = "Candidate SQL statement (SELECT only)"

	descExecuteQuery = "Validate and execute a caller-supplied SQL statement against the Census " +
		"database. The statement is validated first; a rejected statement is never executed."

	descExecuteQueryParam = "SQL statement to validate and execute"

	descExecuteNaturalLanguage = "Translate a plain-English question about U.S. Census demographics " +
		"into SQL, validate it, and execute it. Use this instead of execute_query when the caller " +
		"has a question rather than SQL."

	descExecuteNaturalLanguageParam = "Plain-English question about Census demographics"

	descExecuteDrillDown = "Narrow a prior result to a child geography level (e.g. county to " +
		"block groups) using cursor-based pagination. Returns at most 100 rows per call; " +
		"has_more indicates whether to call again with the returned cursor."

	descExecuteDrillDownLevelParam  = "Child geography level, e.g. \"county\", \"tract\", \"block_group\""
	descExecuteDrillDownParentParam = "Parent geography's FIPS code"
	descExecuteDrillDownCursorParam = "Cursor from a prior page's next_cursor, omit for the first page"

	descExecuteComparison = "Run the same kind of question across multiple regions in parallel and " +
		"join the results into one comparison envelope. A region's failure does not fail the " +
		"others — check each result's success flag."

	descExecuteComparisonParam = "List of {region, question} pairs to compare"
)

// RegisterTools registers the six spec.md §4.6 tools on an mcp-go server,
// so this Server can also back an in-process agent loop in addition to the
// bespoke HTTP transport in transport.go.
func RegisterTools(mcpSrv *server.MCPServer, s *Server) {
	mcpSrv.AddTool(
		mcp.NewTool("get_schema", mcp.WithDescription(descGetSchema)),
		getSchemaHandler(s),
	)

	mcpSrv.AddTool(
		mcp.NewTool("validate_sql",
			mcp.WithDescription(descValidateSQL),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descValidateSQLParam)),
		),
		validateSQLHandler(s),
	)

	mcpSrv.AddTool(
		mcp.NewTool("execute_query",
			mcp.WithDescription(descExecuteQuery),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descExecuteQueryParam)),
		),
		executeQueryHandler(s),
	)

	mcpSrv.AddTool(
		mcp.NewTool("execute_natural_language",
			mcp.WithDescription(descExecuteNaturalLanguage),
			mcp.WithString("question", mcp.Required(), mcp.Description(descExecuteNaturalLanguageParam)),
		),
		executeNaturalLanguageHandler(s),
	)

	mcpSrv.AddTool(
		mcp.NewTool("execute_drill_down",
			mcp.WithDescription(descExecuteDrillDown),
			mcp.WithString("child_level", mcp.Required(), mcp.Description(descExecuteDrillDownLevelParam)),
			mcp.WithString("parent_fips", mcp.Required(), mcp.Description(descExecuteDrillDownParentParam)),
			mcp.WithString("cursor", mcp.Description(descExecuteDrillDownCursorParam)),
		),
		executeDrillDownHandler(s),
	)

	mcpSrv.AddTool(
		mcp.NewTool("execute_comparison",
			mcp.WithDescription(descExecuteComparison),
			mcp.WithArray("regions", mcp.Required(), mcp.Description(descExecuteComparisonParam)),
		),
		executeComparisonHandler(s),
	)
}

func getSchemaHandler(s *Server) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := s.handleGetSchema(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return marshalResult(resp)
	}
}

func validateSQLHandler(s *Server) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, ok := request.GetArguments()["sql"].(string)
		if !ok || sqlText == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		resp, err := s.handleValidateSQL(ctx, ValidateSQLRequest{SQL: sqlText})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return marshalResult(resp)
	}
}

func executeQueryHandler(s *Server) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, ok := request.GetArguments()["sql"].(string)
		if !ok || sqlText == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		resp, err := s.handleExecuteQuery(ctx, ExecuteQueryRequest{SQL: sqlText})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return marshalResult(resp)
	}
}

func executeNaturalLanguageHandler(s *Server) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, ok := request.GetArguments()["question"].(string)
		if !ok || question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		resp, err := s.handleExecuteNaturalLanguage(ctx, ExecuteNaturalLanguageRequest{Question: question})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return marshalResult(resp)
	}
}

func executeDrillDownHandler(s *Server) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		childLevel, _ := args["child_level"].(string)
		parentFIPS, _ := args["parent_fips"].(string)
		cursor, _ := args["cursor"].(string)

		if childLevel == "" || parentFIPS == "" {
			return mcp.NewToolResultError("child_level and parent_fips are required"), nil
		}

		resp, err := s.handleExecuteDrillDown(ctx, ExecuteDrillDownRequest{
			ChildLevel: childLevel,
			ParentFIPS: parentFIPS,
			Cursor:     cursor,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return marshalResult(resp)
	}
}

func executeComparisonHandler(s *Server) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := request.GetArguments()["regions"]
		if !ok {
			return mcp.NewToolResultError("regions is required"), nil
		}

		regions, err := decodeRegions(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		resp, err := s.handleExecuteComparison(ctx, ExecuteComparisonRequest{Regions: regions})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return marshalResult(resp)
	}
}

// decodeRegions converts execute_comparison's raw "regions" argument — a
// []interface{} of map[string]interface{} once mcp-go's JSON decoder has
// run — into typed ComparisonRegion values by round-tripping through
// encoding/json rather than hand-walking the interface{} shape.
func decodeRegions(raw any) ([]pipeline.ComparisonRegion, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: invalid regions argument: %w", err)
	}

	var regions []pipeline.ComparisonRegion
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("mcpserver: invalid regions argument: %w", err)
	}

	if len(regions) == 0 {
		return nil, fmt.Errorf("mcpserver: regions must be a non-empty list")
	}

	return regions, nil
}

// marshalResult serializes a tool's response payload into the text content
// block mcp-go's CallToolResult expects, following isthmus's
// marshal-then-NewToolResultText convention.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/censusql/gateway/internal/schema"
)

// drillDownFetchLimit is one more than the page size so a 101st row's
// presence tells the caller has_more without a separate count query.
const (
	drillDownPageSize   = 100
	drillDownFetchLimit = drillDownPageSize + 1
)

// DrillDownRequest narrows a prior result to a child geography level.
type DrillDownRequest struct {
	// ChildLevel is the geography level to drill into, e.g. "block_group".
	ChildLevel string
	// ParentFIPS is the parent geography's FIPS code; child rows are those
	// whose primary key starts with it (child FIPS codes are always
	// prefixed by their containing geography's code, per the Schema
	// Catalog's column descriptions).
	ParentFIPS string
	// Cursor is the last primary key seen on the previous page, empty for
	// the first page.
	Cursor string
}

// DrillDownResult is a single page of child-geography rows.
type DrillDownResult struct {
	Result
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// RunDrillDown executes execute_drill_down: it builds a cursor-paginated
// SELECT over the child table and delegates to the normal validate+execute
// path, then trims the fetched page back down to the page size.
func (p *Pipeline) RunDrillDown(ctx context.Context, catalog *schema.Catalog, req DrillDownRequest) (DrillDownResult, error) {
	table, ok := findTableByLevel(catalog, req.ChildLevel)
	if !ok {
		return DrillDownResult{}, fmt.Errorf("pipeline: no table at geography level %q", req.ChildLevel)
	}

	sqlText := buildDrillDownSQL(table, req)

	result := p.RunSQL(ctx, sqlText, nil)

	drill := DrillDownResult{Result: result}

	if result.Query == nil {
		return drill, nil
	}

	if len(result.Query.Rows) > drillDownPageSize {
		drill.HasMore = true
		result.Query.Rows = result.Query.Rows[:drillDownPageSize]
		result.Query.RowCount = drillDownPageSize
	}

	if len(result.Query.Rows) > 0 {
		if pk, ok := result.Query.Rows[len(result.Query.Rows)-1][table.PrimaryKey]; ok {
			drill.NextCursor = fmt.Sprintf("%v", pk)
		}
	}

	return drill, nil
}

func findTableByLevel(catalog *schema.Catalog, level string) (schema.Table, bool) {
	for _, t := range catalog.Tables() {
		if t.GeographyLevel == level {
			return t, true
		}
	}

	return schema.Table{}, false
}

func buildDrillDownSQL(table schema.Table, req DrillDownRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "SELECT * FROM %s WHERE %s LIKE '%s%%'",
		table.Name, table.PrimaryKey, escapeSQLLiteral(req.ParentFIPS))

	if req.Cursor != "" {
		fmt.Fprintf(&b, " AND %s > '%s'", table.PrimaryKey, escapeSQLLiteral(req.Cursor))
	}

	fmt.Fprintf(&b, " ORDER BY %s LIMIT %d", table.PrimaryKey, drillDownFetchLimit)

	return b.String()
}

// escapeSQLLiteral doubles single quotes. The validator re-parses and
// re-deparses this SQL before it ever reaches the database, so this is a
// defense against a malformed literal breaking the statement the
// validator sees, not the security boundary itself.
func escapeSQLLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

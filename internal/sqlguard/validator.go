package sqlguard

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/censusql/gateway/internal/schema"
)

const (
	defaultRowLimit  = 1000
	defaultCostLimit = 50_000_000
)

// forbiddenSchemas are system catalogs no Census query ever needs; any
// reference to one is a strong signal of an attempt to probe the engine
// rather than ask a demographic question.
var forbiddenSchemas = map[string]bool{
	"pg_catalog":         true,
	"information_schema": true,
	"system":             true,
}

// forbiddenFunctions are filesystem- or shell-adjacent built-ins DuckDB
// exposes that have no business in a read-only analytics query.
var forbiddenFunctions = map[string]bool{
	"read_csv":        true,
	"read_csv_auto":   true,
	"read_parquet":    true,
	"read_json":       true,
	"read_json_auto":  true,
	"glob":            true,
	"system":          true,
	"pragma_database": true,
	"sqlite_attach":   true,
	"postgres_attach": true,
}

// Config controls the validator's row-limit and cost-estimation ceilings.
type Config struct {
	// RowLimit is the LIMIT injected when absent, and the ceiling any
	// explicit LIMIT is clamped to.
	RowLimit int64
	// CostCeiling rejects a statement whose coarse cost proxy (base-table
	// scans times the effective top-level LIMIT) exceeds this value.
	CostCeiling int64
}

func (c Config) withDefaults() Config {
	if c.RowLimit <= 0 {
		c.RowLimit = defaultRowLimit
	}
	if c.CostCeiling <= 0 {
		c.CostCeiling = defaultCostLimit
	}

	return c
}

// Validator parses and validates candidate SQL against the Schema Catalog.
// Stateless beyond its configuration and catalog reference; safe to share
// across goroutines.
type Validator struct {
	cfg     Config
	catalog *schema.Catalog
}

// New constructs a Validator bound to catalog.
func New(catalog *schema.Catalog, cfg Config) *Validator {
	return &Validator{cfg: cfg.withDefaults(), catalog: catalog}
}

// Validate runs the full ordered check sequence against sql and returns the
// shaped result. It never panics on malformed input: a parse failure is
// reported as a Reject verdict with TagParseError.
func (v *Validator) Validate(sql string) ValidatedSQL {
	result := ValidatedSQL{Original: sql}

	hasComment, err := containsComment(sql)
	if err != nil {
		return reject(result, Reason{Tag: TagParseError, Phrase: "could not tokenize the SQL statement"})
	}
	if hasComment {
		result.Reasons = append(result.Reasons, Reason{
			Tag:    TagCommentPresent,
			Phrase: "comments are not allowed in executed SQL",
		})
	}

	tree, err := pg_query.Parse(sql)
	if err != nil {
		return reject(result, Reason{Tag: TagParseError, Phrase: fmt.Sprintf("could not parse SQL: %s", err.Error())})
	}

	if len(tree.GetStmts()) != 1 {
		result.Reasons = append(result.Reasons, Reason{
			Tag:    TagMultipleStatements,
			Phrase: "only a single SELECT statement is allowed per request",
		})

		return reject(result, result.Reasons...)
	}

	root := tree.GetStmts()[0].GetStmt()
	selectStmt := root.GetSelectStmt()
	if selectStmt == nil {
		result.Reasons = append(result.Reasons, Reason{
			Tag:    TagNotSelect,
			Phrase: "only SELECT statements may be executed",
		})

		return reject(result, result.Reasons...)
	}

	w := &walker{catalog: v.catalog}
	w.walkSelect(selectStmt)

	result.TouchedTables = w.tables
	result.HasAggregation = w.hasAggregation

	for _, t := range w.unknownTables {
		result.Reasons = append(result.Reasons, Reason{
			Tag:    TagTableNotAllowed,
			Phrase: fmt.Sprintf("table %q is not part of the Census data catalog", t),
		})
	}

	for _, c := range w.unknownColumns {
		result.Reasons = append(result.Reasons, Reason{
			Tag:    TagColumnNotAllowed,
			Phrase: fmt.Sprintf("column %q is not part of the Census data catalog", c),
		})
	}

	for _, p := range w.forbidden {
		result.Reasons = append(result.Reasons, Reason{
			Tag:    TagForbiddenPattern,
			Phrase: fmt.Sprintf("%s is not allowed in executed SQL", p),
		})
	}

	if hasComment || len(w.unknownTables) > 0 || len(w.unknownColumns) > 0 || len(w.forbidden) > 0 {
		return reject(result, result.Reasons...)
	}

	v.rewriteStar(selectStmt, w.tables)

	limit := v.enforceRowLimit(selectStmt)
	result.EstimatedRows = estimateCost(w.baseTableScans, limit)

	if result.EstimatedRows > v.cfg.CostCeiling {
		result.Reasons = append(result.Reasons, Reason{
			Tag:    TagCostExceeded,
			Phrase: "this query would scan too much data; narrow the geography or add a filter",
		})

		return reject(result, result.Reasons...)
	}

	sanitized, err := pg_query.Deparse(tree)
	if err != nil {
		return reject(result, Reason{Tag: TagParseError, Phrase: "could not re-render the sanitized SQL"})
	}

	result.Sanitized = sanitized
	result.Verdict = Accept

	return result
}

func reject(result ValidatedSQL, reasons ...Reason) ValidatedSQL {
	result.Verdict = Reject
	if len(reasons) > 0 {
		result.Reasons = reasons
	}

	return result
}

// enforceRowLimit injects or clamps the statement's top-level LIMIT in
// place and returns the effective value used for cost estimation.
func (v *Validator) enforceRowLimit(stmt *pg_query.SelectStmt) int64 {
	limit := v.cfg.RowLimit

	if stmt.LimitCount == nil {
		stmt.LimitCount = intConstNode(limit)

		return limit
	}

	if ival, ok := intConstValue(stmt.LimitCount); ok {
		if ival > v.cfg.RowLimit {
			stmt.LimitCount = intConstNode(limit)

			return limit
		}

		return ival
	}

	// A non-constant LIMIT expression (parameter, computed value) cannot be
	// safely bounded here; fall back to the configured ceiling.
	stmt.LimitCount = intConstNode(limit)

	return limit
}

func intConstNode(v int64) *pg_query.Node {
	return &pg_query.Node{
		Node: &pg_query.Node_AConst{
			AConst: &pg_query.A_Const{
				Val: &pg_query.A_Const_Ival{
					Ival: &pg_query.Integer{Ival: v},
				},
			},
		},
	}
}

func intConstValue(n *pg_query.Node) (int64, bool) {
	aconst := n.GetAConst()
	if aconst == nil {
		return 0, false
	}

	ival := aconst.GetIval()
	if ival == nil {
		return 0, false
	}

	return int64(ival.GetIval()), true
}

func estimateCost(baseTableScans int, limit int64) int64 {
	if baseTableScans <= 0 {
		baseTableScans = 1
	}
	if limit <= 0 {
		limit = defaultRowLimit
	}

	return int64(baseTableScans) * limit
}

// rewriteStar expands a bare "*" projection into the explicit column list
// of the single touched table, per the column-allowlist check's rewrite
// rule. Queries over more than one table must already project explicit
// columns; a "*" there would be ambiguous and is left for the executor to
// reject.
func (v *Validator) rewriteStar(stmt *pg_query.SelectStmt, tables []string) {
	if len(tables) != 1 {
		return
	}

	cols := v.catalog.ColumnNames(tables[0])
	if len(cols) == 0 {
		return
	}

	expanded := make([]*pg_query.Node, 0, len(stmt.GetTargetList()))
	for _, n := range stmt.GetTargetList() {
		ref := n.GetResTarget().GetVal().GetColumnRef()
		if ref == nil || len(ref.GetFields()) == 0 || ref.GetFields()[len(ref.GetFields())-1].GetAStar() == nil {
			expanded = append(expanded, n)

			continue
		}

		for _, col := range cols {
			expanded = append(expanded, columnRefTarget(col))
		}
	}

	stmt.TargetList = expanded
}

func columnRefTarget(name string) *pg_query.Node {
	return &pg_query.Node{
		Node: &pg_query.Node_ResTarget{
			ResTarget: &pg_query.ResTarget{
				Val: &pg_query.Node{
					Node: &pg_query.Node_ColumnRef{
						ColumnRef: &pg_query.ColumnRef{
							Fields: []*pg_query.Node{
								{
									Node: &pg_query.Node_String_{
										String_: &pg_query.String{Sval: name},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func isSystemIdentifier(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))

	return forbiddenSchemas[name]
}

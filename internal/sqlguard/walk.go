package sqlguard

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/censusql/gateway/internal/schema"
)

// walker accumulates the facts the validator's allowlist and pattern-block
// checks need from a parsed SELECT tree. CTE names are tracked in a local
// scope so they satisfy the table allowlist for the duration of the
// statement without being added to the Schema Catalog itself.
type walker struct {
	catalog *schema.Catalog

	tables         []string
	unknownTables  []string
	unknownColumns []string
	forbidden      []string
	hasAggregation bool
	baseTableScans int

	cteNames map[string]bool
	seen     map[string]bool
}

func (w *walker) isKnownTable(name string) bool {
	if w.cteNames != nil && w.cteNames[strings.ToLower(name)] {
		return true
	}

	return w.catalog.HasTable(name)
}

func (w *walker) addTable(name string) {
	if w.seen == nil {
		w.seen = make(map[string]bool)
	}
	key := strings.ToLower(name)
	if w.seen["table:"+key] {
		return
	}
	w.seen["table:"+key] = true

	if !w.isKnownTable(name) {
		w.unknownTables = append(w.unknownTables, name)

		return
	}

	if !w.cteNames[key] {
		w.baseTableScans++
	}

	w.tables = append(w.tables, name)
}

func (w *walker) addColumnRef(ref *pg_query.ColumnRef) {
	fields := ref.GetFields()
	if len(fields) == 0 {
		return
	}

	last := fields[len(fields)-1]
	if last.GetAStar() != nil {
		return // '*' is expanded by the caller after the table is known.
	}

	name := last.GetString_().GetSval()
	if name == "" {
		return
	}

	// Qualified references (table.column) are checked against that table
	// specifically; unqualified references are accepted if any touched
	// table allowlists the column, matching how the planner itself would
	// resolve ambiguity.
	if len(fields) >= 2 {
		qualifier := fields[len(fields)-2].GetString_().GetSval()
		if qualifier != "" && w.isKnownTable(qualifier) && !w.cteNames[strings.ToLower(qualifier)] {
			if !w.catalog.HasColumn(qualifier, name) {
				w.unknownColumns = append(w.unknownColumns, qualifier+"."+name)
			}

			return
		}
	}

	for _, t := range w.tables {
		if w.catalog.HasColumn(t, name) {
			return
		}
	}

	if len(w.tables) > 0 {
		w.unknownColumns = append(w.unknownColumns, name)
	}
}

func (w *walker) walkSelect(stmt *pg_query.SelectStmt) {
	if stmt == nil {
		return
	}

	if stmt.WithClause != nil {
		if w.cteNames == nil {
			w.cteNames = make(map[string]bool)
		}
		for _, cte := range stmt.WithClause.GetCtes() {
			name := cte.GetCommonTableExpr().GetCtename()
			if name != "" {
				w.cteNames[strings.ToLower(name)] = true
			}
			w.walkNode(cte.GetCommonTableExpr().GetCtequery())
		}
	}

	for _, n := range stmt.GetFromClause() {
		w.walkFromItem(n)
	}

	for _, n := range stmt.GetTargetList() {
		w.walkNode(n.GetResTarget().GetVal())
	}

	w.walkNode(stmt.GetWhereClause())

	for _, n := range stmt.GetGroupClause() {
		w.walkNode(n)
		w.hasAggregation = true
	}

	for _, n := range stmt.GetSortClause() {
		w.walkNode(n.GetSortBy().GetNode())
	}

	for _, n := range stmt.GetTargetList() {
		if fc := n.GetResTarget().GetVal().GetFuncCall(); fc != nil {
			w.hasAggregation = true
		}
	}

	if stmt.Larg != nil {
		w.walkSelect(stmt.Larg)
	}
	if stmt.Rarg != nil {
		w.walkSelect(stmt.Rarg)
	}
}

func (w *walker) walkFromItem(n *pg_query.Node) {
	switch {
	case n.GetRangeVar() != nil:
		rv := n.GetRangeVar()
		if rv.GetSchemaname() != "" && isSystemIdentifier(rv.GetSchemaname()) {
			w.forbidden = append(w.forbidden, "references to the "+rv.GetSchemaname()+" schema")

			return
		}
		w.addTable(rv.GetRelname())
	case n.GetJoinExpr() != nil:
		je := n.GetJoinExpr()
		w.walkFromItem(je.GetLarg())
		w.walkFromItem(je.GetRarg())
		w.walkNode(je.GetQuals())
	case n.GetRangeSubselect() != nil:
		w.walkNode(n.GetRangeSubselect().GetSubquery())
	case n.GetRangeFunction() != nil:
		for _, fn := range n.GetRangeFunction().GetFunctions() {
			w.walkNode(fn.GetList().GetItems()[0])
		}
	}
}

// walkNode recurses into the expression-tree shapes that actually appear
// in Census analytics queries: boolean combinators, comparisons, function
// calls, subselects, and column references. It intentionally does not
// attempt to cover every node type PostgreSQL's grammar can produce — this
// gateway only ever needs to validate read-only aggregate SELECTs.
func (w *walker) walkNode(n *pg_query.Node) {
	if n == nil {
		return
	}

	switch {
	case n.GetColumnRef() != nil:
		w.addColumnRef(n.GetColumnRef())
	case n.GetAExpr() != nil:
		e := n.GetAExpr()
		w.walkNode(e.GetLexpr())
		w.walkNode(e.GetRexpr())
	case n.GetBoolExpr() != nil:
		for _, arg := range n.GetBoolExpr().GetArgs() {
			w.walkNode(arg)
		}
	case n.GetFuncCall() != nil:
		fc := n.GetFuncCall()
		w.checkFuncName(fc)
		for _, arg := range fc.GetArgs() {
			w.walkNode(arg)
		}
	case n.GetSubLink() != nil:
		w.walkNode(n.GetSubLink().GetSubselect())
	case n.GetCaseExpr() != nil:
		ce := n.GetCaseExpr()
		for _, when := range ce.GetArgs() {
			w.walkNode(when.GetCaseWhen().GetExpr())
			w.walkNode(when.GetCaseWhen().GetResult())
		}
		w.walkNode(ce.GetDefresult())
	case n.GetCoalesceExpr() != nil:
		for _, arg := range n.GetCoalesceExpr().GetArgs() {
			w.walkNode(arg)
		}
	case n.GetSelectStmt() != nil:
		w.walkSelect(n.GetSelectStmt())
	case n.GetTypeCast() != nil:
		w.walkNode(n.GetTypeCast().GetArg())
	}
}

func (w *walker) checkFuncName(fc *pg_query.FuncCall) {
	parts := fc.GetFuncname()
	if len(parts) == 0 {
		return
	}

	name := strings.ToLower(parts[len(parts)-1].GetString_().GetSval())
	if forbiddenFunctions[name] {
		w.forbidden = append(w.forbidden, "the "+name+" function")
	}
}

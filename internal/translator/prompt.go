package translator

import (
	"fmt"
	"strings"

	"github.com/censusql/gateway/internal/schema"
)

const responseSchema = `Respond ONLY with valid JSON matching this exact schema, no markdown fences, no preamble:
{
  "intent": "medicare_eligibility|population_health|facility_adequacy|general_demographic|error",
  "geography": [{"level": "state|county|tract|block_group", "code": "...", "name": "..."}],
  "measures": ["column_name", ...],
  "filters": [{"column": "...", "operator": "=|!=|<|<=|>|>=|in|between", "value": ...}],
  "sort": {"column": "...", "direction": "asc|desc"},
  "limit": 1000,
  "sql": "SELECT ...",
  "explanation": "one sentence describing what the query answers"
}
If the question cannot be answered from the schema below, set intent to "error" and explain why.`

func composeSystemPrompt(catalog *schema.Catalog) string {
	var sb strings.Builder

	sb.WriteString("You translate natural-language questions about U.S. Census demographics into a structured analysis plus a single read-only SQL SELECT statement.\n\n")
	sb.WriteString("You may reference only the following tables and columns:\n\n")

	for _, table := range catalog.Tables() {
		fmt.Fprintf(&sb, "TABLE %s — %s\n", table.Name, table.Description)
		for _, col := range table.Columns {
			fmt.Fprintf(&sb, "  - %s (%s): %s", col.Name, col.Kind, col.Description)
			if len(col.Enumeration) > 0 {
				fmt.Fprintf(&sb, " [one of: %s]", strings.Join(col.Enumeration, ", "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(responseSchema)

	return sb.String()
}

func composeUserPrompt(question string, session *SessionContext, useSession bool) string {
	var sb strings.Builder

	if useSession && session != nil && session.PreviousAnalysis != nil {
		sb.WriteString("Previous question: ")
		sb.WriteString(session.PreviousQuestion)
		sb.WriteString("\nPrevious analysis intent: ")
		sb.WriteString(string(session.PreviousAnalysis.Intent))
		sb.WriteString("\nPrevious SQL: ")
		sb.WriteString(session.PreviousAnalysis.SQL)
		sb.WriteString("\n\nThe following question may refer back to the above. Resolve pronouns and deltas against it.\n\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)

	return sb.String()
}

package sqlguard

import pg_query "github.com/pganalyze/pg_query_go/v6"

// containsComment resolves the comment-detection Open Question with a
// token scan rather than a substring search: a string literal containing
// "--" (e.g. a county name with a hyphen run) must not be rejected, but a
// genuine line or block comment must be, regardless of where it sits in
// the statement. Scanning the token stream and checking each token's kind
// makes that distinction exactly the way the SQL lexer itself does.
func containsComment(sql string) (bool, error) {
	result, err := pg_query.Scan(sql)
	if err != nil {
		return false, err
	}

	for _, token := range result.GetTokens() {
		switch token.GetToken() {
		case pg_query.Token_C_COMMENT, pg_query.Token_SQL_COMMENT:
			return true, nil
		}
	}

	return false, nil
}

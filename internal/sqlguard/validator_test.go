package sqlguard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/schema"
	"github.com/censusql/gateway/internal/sqlguard"
)

func newValidator() *sqlguard.Validator {
	return sqlguard.New(schema.Default(), sqlguard.Config{})
}

func TestValidate_AcceptsSimpleSelect(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT state_name, population FROM state_data WHERE population > 1000000")

	require.True(t, result.Accepted(), "reasons: %+v", result.Reasons)
	assert.Contains(t, result.Sanitized, "LIMIT 1000")
	assert.Equal(t, []string{"state_data"}, result.TouchedTables)
}

func TestValidate_RejectsNonSelect(t *testing.T) {
	v := newValidator()

	result := v.Validate("DELETE FROM state_data WHERE state_fips = '06'")

	require.False(t, result.Accepted())
	require.NotEmpty(t, result.Reasons)
	assert.Equal(t, sqlguard.TagNotSelect, result.Reasons[0].Tag)
}

func TestValidate_RejectsMultipleStatements(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT 1; DROP TABLE state_data;")

	require.False(t, result.Accepted())
	assert.Equal(t, sqlguard.TagMultipleStatements, result.Reasons[0].Tag)
}

func TestValidate_RejectsComment(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT state_name FROM state_data -- drop everything\n")

	require.False(t, result.Accepted())
	found := false
	for _, r := range result.Reasons {
		if r.Tag == sqlguard.TagCommentPresent {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_AllowsHyphenInStringLiteral(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT state_name FROM state_data WHERE state_name = 'Miami-Dade'")

	require.True(t, result.Accepted(), "reasons: %+v", result.Reasons)
}

func TestValidate_RejectsUnknownTable(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT * FROM pg_shadow")

	require.False(t, result.Accepted())
	found := false
	for _, r := range result.Reasons {
		if r.Tag == sqlguard.TagTableNotAllowed || r.Tag == sqlguard.TagForbiddenPattern {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_RejectsUnknownColumn(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT ssn FROM state_data")

	require.False(t, result.Accepted())
	assert.Equal(t, sqlguard.TagColumnNotAllowed, result.Reasons[0].Tag)
}

func TestValidate_ExpandsStar(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT * FROM state_data LIMIT 5")

	require.True(t, result.Accepted(), "reasons: %+v", result.Reasons)
	assert.Contains(t, result.Sanitized, "state_fips")
	assert.Contains(t, result.Sanitized, "LIMIT 5")
}

func TestValidate_ClampsOversizedLimit(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT state_name FROM state_data LIMIT 50000")

	require.True(t, result.Accepted(), "reasons: %+v", result.Reasons)
	assert.Contains(t, result.Sanitized, "LIMIT 1000")
}

func TestValidate_RejectsForbiddenFunction(t *testing.T) {
	v := newValidator()

	result := v.Validate("SELECT * FROM read_csv('/etc/passwd')")

	require.False(t, result.Accepted())
}

func TestValidate_AllowsCTE(t *testing.T) {
	v := newValidator()

	result := v.Validate(`
		WITH big_states AS (SELECT state_fips, population FROM state_data WHERE population > 5000000)
		SELECT state_fips FROM big_states
	`)

	require.True(t, result.Accepted(), "reasons: %+v", result.Reasons)
}

func TestValidate_IsIdempotent(t *testing.T) {
	v := newValidator()

	first := v.Validate("SELECT state_name FROM state_data WHERE population > 100")
	second := v.Validate("SELECT state_name FROM state_data WHERE population > 100")

	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Equal(t, first.Sanitized, second.Sanitized)
}

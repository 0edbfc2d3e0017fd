// Package translator turns a natural-language Census question into a
// structured Analysis, grounded in the Schema Catalog, by prompting an
// externally hosted LLM and strictly parsing its response.
package translator

// Intent is the closed set of question shapes the translator recognizes.
// Any value outside this set is rejected during parsing as a low-confidence
// response, the same outcome IntentError produces.
type Intent string

const (
	IntentMedicareEligibility Intent = "medicare_eligibility"
	IntentPopulationHealth    Intent = "population_health"
	IntentFacilityAdequacy    Intent = "facility_adequacy"
	IntentGeneralDemographic  Intent = "general_demographic"
	IntentError               Intent = "error"
)

func (i Intent) valid() bool {
	switch i {
	case IntentMedicareEligibility, IntentPopulationHealth, IntentFacilityAdequacy,
		IntentGeneralDemographic, IntentError:
		return true
	default:
		return false
	}
}

// GeographyLevel mirrors the Schema Catalog's allowed geography scopes.
type GeographyLevel string

const (
	LevelState      GeographyLevel = "state"
	LevelCounty     GeographyLevel = "county"
	LevelTract      GeographyLevel = "tract"
	LevelBlockGroup GeographyLevel = "block_group"
)

func (l GeographyLevel) valid() bool {
	switch l {
	case LevelState, LevelCounty, LevelTract, LevelBlockGroup:
		return true
	default:
		return false
	}
}

// GeographicEntity is a place referenced by the question, named or coded.
type GeographicEntity struct {
	Level GeographyLevel `json:"level"`
	Code  string         `json:"code,omitempty"`
	Name  string         `json:"name,omitempty"`
}

// FilterOperator is the closed set of comparison operators the translator
// may emit; the validator does not need to guard against anything else
// because the Analysis parser already rejects unknown operators.
type FilterOperator string

const (
	OpEqual        FilterOperator = "="
	OpNotEqual     FilterOperator = "!="
	OpLessThan     FilterOperator = "<"
	OpLessEqual    FilterOperator = "<="
	OpGreaterThan  FilterOperator = ">"
	OpGreaterEqual FilterOperator = ">="
	OpIn           FilterOperator = "in"
	OpBetween      FilterOperator = "between"
)

func (op FilterOperator) valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual, OpIn, OpBetween:
		return true
	default:
		return false
	}
}

// Filter is one WHERE-clause predicate.
type Filter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

// SortDirection is either ascending or descending.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// Sort orders the result set by a single column.
type Sort struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

const (
	defaultLimit = 1000
	hardCapLimit = 1000
)

// Analysis is the translator's structured output: everything the SQL
// Validator and executor need to turn a question into a safe, shaped
// query, plus the generated SQL itself.
type Analysis struct {
	Intent      Intent             `json:"intent"`
	Geography   []GeographicEntity `json:"geography"`
	Measures    []string           `json:"measures"`
	Filters     []Filter           `json:"filters"`
	Sort        *Sort              `json:"sort,omitempty"`
	Limit       int                `json:"limit"`
	SQL         string             `json:"sql"`
	Explanation string             `json:"explanation,omitempty"`
}

// normalizeLimit clamps Limit into (0, hardCapLimit], defaulting when unset.
func (a *Analysis) normalizeLimit() {
	if a.Limit <= 0 {
		a.Limit = defaultLimit

		return
	}
	if a.Limit > hardCapLimit {
		a.Limit = hardCapLimit
	}
}

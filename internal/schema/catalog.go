// Package schema holds the in-process description of the tables, columns,
// and semantic hints the LLM translator grounds on and the SQL validator
// allowlists against. The catalog is built once at process startup from a
// static definition and is immutable thereafter — safe for lock-free
// concurrent reads, per the Schema Catalog's ownership note.
package schema

import "strings"

// ColumnKind classifies a column's scalar type for prompt composition and
// filter-operator validation.
type ColumnKind string

const (
	KindString  ColumnKind = "string"
	KindInteger ColumnKind = "integer"
	KindFloat   ColumnKind = "float"
	KindBoolean ColumnKind = "boolean"
)

// Column describes one allowlisted column.
type Column struct {
	Name        string     `json:"name"`
	Kind        ColumnKind `json:"kind"`
	Description string     `json:"description"`
	// Enumeration lists known values for columns the translator should
	// ground on verbatim (e.g. state names), empty otherwise.
	Enumeration []string `json:"enumeration,omitempty"`
}

// Table describes one allowlisted table.
type Table struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
	// GeographyLevel is non-empty when rows of this table are identified by
	// a Census geography code at this level.
	GeographyLevel string `json:"geography_level,omitempty"`
	// PrimaryKey is the column that uniquely identifies a row; drill-down
	// cursors page on this column.
	PrimaryKey string `json:"primary_key"`
}

// Catalog is the process-wide, immutable table/column allowlist.
type Catalog struct {
	tables map[string]Table
	order  []string
}

// New builds a Catalog from a fixed list of tables. Intended to be called
// once at startup; the result is never mutated afterward.
func New(tables []Table) *Catalog {
	c := &Catalog{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		c.tables[strings.ToLower(t.Name)] = t
		c.order = append(c.order, t.Name)
	}

	return c
}

// Table returns the table definition for name, case-insensitively.
func (c *Catalog) Table(name string) (Table, bool) {
	t, ok := c.tables[strings.ToLower(name)]

	return t, ok
}

// HasTable reports whether name is allowlisted.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tables[strings.ToLower(name)]

	return ok
}

// HasColumn reports whether table.column is allowlisted.
func (c *Catalog) HasColumn(table, column string) bool {
	t, ok := c.Table(table)
	if !ok {
		return false
	}

	column = strings.ToLower(column)
	for _, col := range t.Columns {
		if strings.ToLower(col.Name) == column {
			return true
		}
	}

	return false
}

// ColumnNames returns the ordered list of column names for a table, for
// rewriting SELECT * into an explicit list.
func (c *Catalog) ColumnNames(table string) []string {
	t, ok := c.Table(table)
	if !ok {
		return nil
	}

	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}

	return names
}

// Tables returns all tables in catalog-definition order.
func (c *Catalog) Tables() []Table {
	out := make([]Table, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tables[strings.ToLower(name)])
	}

	return out
}

// Default returns the catalog shipped for the Census ACS tables this
// gateway is loaded with. The loader (out of scope) is responsible for
// populating a database whose tables and columns match this definition
// exactly.
func Default() *Catalog {
	return New([]Table{
		{
			Name:           "state_data",
			Description:    "One row per U.S. state or state-equivalent, from the American Community Survey.",
			GeographyLevel: "state",
			PrimaryKey:     "state_fips",
			Columns: []Column{
				{Name: "state_fips", Kind: KindString, Description: "2-digit state FIPS code, primary key"},
				{Name: "state_name", Kind: KindString, Description: "Full state name", Enumeration: USStateNames},
				{Name: "population", Kind: KindInteger, Description: "Total population (ACS estimate)"},
				{Name: "median_household_income", Kind: KindInteger, Description: "Median household income in USD"},
				{Name: "median_age", Kind: KindFloat, Description: "Median age of residents"},
				{Name: "poverty_rate", Kind: KindFloat, Description: "Percent of population below the poverty line"},
				{Name: "uninsured_rate", Kind: KindFloat, Description: "Percent of population without health insurance"},
			},
		},
		{
			Name:           "county_data",
			Description:    "One row per U.S. county or county-equivalent.",
			GeographyLevel: "county",
			PrimaryKey:     "county_fips",
			Columns: []Column{
				{Name: "county_fips", Kind: KindString, Description: "5-digit county FIPS code, primary key"},
				{Name: "state", Kind: KindString, Description: "2-digit state FIPS code of the containing state"},
				{Name: "county_name", Kind: KindString, Description: "County name, e.g. 'Miami-Dade County'"},
				{Name: "population", Kind: KindInteger, Description: "Total population (ACS estimate)"},
				{Name: "median_household_income", Kind: KindInteger, Description: "Median household income in USD"},
				{Name: "median_age", Kind: KindFloat, Description: "Median age of residents"},
				{Name: "poverty_rate", Kind: KindFloat, Description: "Percent of population below the poverty line"},
				{Name: "uninsured_rate", Kind: KindFloat, Description: "Percent of population without health insurance"},
				{Name: "population_65_plus", Kind: KindInteger, Description: "Population aged 65 and over"},
				{Name: "physician_count", Kind: KindInteger, Description: "Count of active primary-care physicians"},
			},
		},
		{
			Name:           "tract_data",
			Description:    "One row per Census tract, nested within a county.",
			GeographyLevel: "tract",
			PrimaryKey:     "tract_fips",
			Columns: []Column{
				{Name: "tract_fips", Kind: KindString, Description: "11-character tract FIPS code, primary key; first 5 characters are the county FIPS"},
				{Name: "county_fips", Kind: KindString, Description: "5-digit county FIPS code of the containing county"},
				{Name: "population", Kind: KindInteger, Description: "Total population (ACS estimate)"},
				{Name: "median_household_income", Kind: KindInteger, Description: "Median household income in USD"},
				{Name: "poverty_rate", Kind: KindFloat, Description: "Percent of population below the poverty line"},
			},
		},
		{
			Name:           "block_group_data",
			Description:    "One row per Census block group, the finest geography carried by this gateway.",
			GeographyLevel: "block_group",
			PrimaryKey:     "block_group_fips",
			Columns: []Column{
				{Name: "block_group_fips", Kind: KindString, Description: "12-character block group FIPS code, primary key; first 5 characters are the county FIPS"},
				{Name: "county_fips", Kind: KindString, Description: "5-digit county FIPS code of the containing county"},
				{Name: "population", Kind: KindInteger, Description: "Total population (ACS estimate)"},
				{Name: "median_household_income", Kind: KindInteger, Description: "Median household income in USD"},
			},
		},
		{
			Name:           "facility_data",
			Description:    "Healthcare facility locations and capacity, joined to county by FIPS code.",
			GeographyLevel: "county",
			PrimaryKey:     "facility_id",
			Columns: []Column{
				{Name: "facility_id", Kind: KindString, Description: "Facility identifier, primary key"},
				{Name: "county_fips", Kind: KindString, Description: "5-digit county FIPS code"},
				{Name: "facility_name", Kind: KindString, Description: "Facility name"},
				{Name: "facility_type", Kind: KindString, Description: "Facility type, e.g. 'hospital', 'clinic', 'urgent_care'"},
				{Name: "bed_count", Kind: KindInteger, Description: "Licensed bed count"},
			},
		},
	})
}

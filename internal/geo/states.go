package geo

import "github.com/censusql/gateway/internal/schema"

// States returns a Resolver that answers both full state names ("California")
// and postal abbreviations ("CA") with the state's 2-digit FIPS code.
func States() *Resolver {
	abbrevToCode := make(map[string]string, len(schema.StateAbbreviations))
	for abbr, name := range schema.StateAbbreviations {
		if code, ok := schema.StateFIPS[name]; ok {
			abbrevToCode[abbr] = code
		}
	}

	return New(schema.StateFIPS, abbrevToCode)
}

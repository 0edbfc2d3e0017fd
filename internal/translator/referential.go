package translator

import "regexp"

// referentialPattern matches pronouns and the delta-phrase idioms spec.md
// calls out ("now filter to", "only those over") that signal the question
// is a follow-up to the previous turn rather than a standalone query.
var referentialPattern = regexp.MustCompile(
	`(?i)\b(it|that|those|these|them|its)\b|` +
		`\bnow (filter|narrow|limit|show|sort)\b|` +
		`\bonly (those|the ones|ones)\b|` +
		`\b(instead|as well|also|too)\b$`,
)

package battle

import "regexp"

// commandPattern matches the closed set of battle command spellings a caller
// types at the start of a prompt ($startA/$sA, $battleA/$A, $winA/$wA, their
// B-side twins, $tie, $bad), plus any trailing word characters and whitespace.
var commandPattern = regexp.MustCompile(`^\$(startA|sA|startB|sB|battleA|A|battleB|B|winA|wA|winB|wB|tie|bad)\w*\s*`)

// CleanContent strips a single leading command token from user-authored
// message content, leaving the remainder as the effective prompt.
func CleanContent(content string) string {
	return commandPattern.ReplaceAllString(content, "")
}

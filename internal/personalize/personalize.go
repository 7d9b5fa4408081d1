// Package personalize performs {{placeholder}} substitution on message
// bodies at fan-out time.
package personalize

import "regexp"

// tokenPattern matches {{word}} placeholders. The token is a recipient
// attribute name; anything else between braces is left alone.
var tokenPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Placeholders lists the attribute names referenced by a body, in order of
// first appearance, without duplicates.
func Placeholders(body string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range tokenPattern.FindAllStringSubmatch(body, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// Render substitutes every {{name}} token whose name is present in attrs.
// Unresolved placeholders stay verbatim — a template referencing an
// attribute a recipient lacks is not an error.
func Render(body string, attrs map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(body, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]
		if value, ok := attrs[name]; ok {
			return value
		}
		return token
	})
}

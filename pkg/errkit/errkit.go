// Package errkit renders the single deterministic textual form spec.md
// §7 requires of every component error kind: "<Kind>: <message> (at
// <location>)", with an optional "(see: <url>)" suffix when a doc
// reference exists. Each component (parser.Error, typecheck.Error,
// provider.ValidationError, ...) keeps its own taxonomy; only the final
// rendering is shared, so the textual form never drifts between them.
package errkit

import "fmt"

// Format renders kind/message/location/docURL into spec.md §7's fixed
// textual shape. docURL may be empty; location may be empty if the
// error kind carries none (the suffix is simply "(at )" in that case,
// matching the pre-existing ValidationError rendering this formalizes).
func Format(kind, message, location, docURL string) string {
	s := fmt.Sprintf("%s: %s (at %s)", kind, message, location)
	if docURL != "" {
		s += fmt.Sprintf(" (see: %s)", docURL)
	}
	return s
}

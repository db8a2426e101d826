package plan

import "strings"

// Evaluate reports whether an edge with the given condition is satisfied by
// the source's recorded outcome. A nil condition is always satisfied; a
// present condition must be a case-sensitive substring of outcome.
func Evaluate(outcome string, condition *string) bool {
	if condition == nil {
		return true
	}
	return strings.Contains(outcome, *condition)
}

package ai

import "strings"

// emptyInputPlaceholder replaces blank inputs; some embedding backends
// reject empty strings outright.
const emptyInputPlaceholder = " "

// PrepareInputs returns texts with blank entries replaced by a placeholder
// so that every input yields a vector. The input slice is not modified.
func PrepareInputs(texts []string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			text = emptyInputPlaceholder
		}
		out[i] = text
	}
	return out
}

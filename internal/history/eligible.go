package history

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ToolFilter reports whether results of the named tool may be shortened or
// cleared by pruning. Filters are pure and deterministic for the settings
// snapshot they were built from.
type ToolFilter func(tool string) bool

// NewToolFilter compiles allow and deny pattern lists into a filter. Deny
// matches win over allow matches. An empty allow list means every tool is
// eligible. Patterns containing glob metacharacters use doublestar
// matching; everything else is an exact name comparison.
func NewToolFilter(allowed, denied []string) ToolFilter {
	allow := slices.Clone(allowed)
	deny := slices.Clone(denied)
	return func(tool string) bool {
		for _, pat := range deny {
			if matchTool(pat, tool) {
				return false
			}
		}
		if len(allow) == 0 {
			return true
		}
		for _, pat := range allow {
			if matchTool(pat, tool) {
				return true
			}
		}
		return false
	}
}

func matchTool(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		return false
	}
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

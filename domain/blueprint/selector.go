package blueprint

import (
	"fmt"
	"path"
	"strings"

	"multiverse/domain/core"
	"multiverse/domain/frame"
)

// MatchColumns resolves a column selector against the dataset schema.
// Selectors are comma-separated glob patterns ("mood_*", "a,b,c"); matches
// come back in schema order, deduplicated, so expansion stays deterministic.
func MatchColumns(data *frame.Frame, selector string) ([]string, error) {
	patterns := strings.Split(selector, ",")
	for i := range patterns {
		patterns[i] = strings.TrimSpace(patterns[i])
	}

	seen := map[string]bool{}
	var matched []string
	for _, name := range data.Names() {
		for _, pat := range patterns {
			if pat == "" {
				continue
			}
			ok, err := path.Match(pat, name)
			if err != nil {
				return nil, fmt.Errorf("%w: bad selector pattern %q: %v", core.ErrValidation, pat, err)
			}
			if ok && !seen[name] {
				seen[name] = true
				matched = append(matched, name)
			}
		}
	}

	// Literal (non-glob) patterns must resolve; a typo here should not
	// silently shrink the decision space.
	for _, pat := range patterns {
		if pat == "" || strings.ContainsAny(pat, "*?[") {
			continue
		}
		if !data.Has(pat) {
			return nil, core.NewUnknownColumnError(pat, fmt.Sprintf("selector %q", selector))
		}
	}

	return matched, nil
}

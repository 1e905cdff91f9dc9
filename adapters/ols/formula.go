package ols

import (
	"fmt"
	"strings"

	"multiverse/domain/core"
)

// Term is one effect on the right-hand side of a formula: a single variable
// for a main effect, several for an interaction.
type Term struct {
	Vars []string
}

// Name returns the canonical term label ("a", "a:b")
func (t Term) Name() string {
	return strings.Join(t.Vars, ":")
}

// Formula is a parsed model specification "response ~ term + term".
// Supported operators: "+" to add terms, ":" for an interaction, "*" for
// main effects plus their interaction. An intercept is always included.
type Formula struct {
	Response string
	Terms    []Term
}

// ParseFormula parses a formula string
func ParseFormula(src string) (*Formula, error) {
	parts := strings.Split(src, "~")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: formula %q needs exactly one ~", core.ErrValidation, src)
	}
	response := strings.TrimSpace(parts[0])
	if response == "" {
		return nil, fmt.Errorf("%w: formula %q has no response", core.ErrValidation, src)
	}

	f := &Formula{Response: response}
	seen := map[string]bool{}
	addTerm := func(vars []string) {
		t := Term{Vars: vars}
		if !seen[t.Name()] {
			seen[t.Name()] = true
			f.Terms = append(f.Terms, t)
		}
	}

	for _, raw := range strings.Split(parts[1], "+") {
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == "1" {
			continue
		}

		switch {
		case strings.Contains(raw, "*"):
			vars, err := splitVars(src, raw, "*")
			if err != nil {
				return nil, err
			}
			// a*b expands to the main effects plus the full interaction.
			for _, v := range vars {
				addTerm([]string{v})
			}
			addTerm(vars)
		case strings.Contains(raw, ":"):
			vars, err := splitVars(src, raw, ":")
			if err != nil {
				return nil, err
			}
			addTerm(vars)
		default:
			addTerm([]string{raw})
		}
	}

	if len(f.Terms) == 0 {
		return nil, fmt.Errorf("%w: formula %q has no terms", core.ErrValidation, src)
	}
	return f, nil
}

func splitVars(formula, raw, sep string) ([]string, error) {
	var vars []string
	for _, v := range strings.Split(raw, sep) {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, fmt.Errorf("%w: malformed term %q in formula %q", core.ErrValidation, raw, formula)
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// Columns lists every dataset column the formula references
func (f *Formula) Columns() []string {
	seen := map[string]bool{f.Response: true}
	out := []string{f.Response}
	for _, t := range f.Terms {
		for _, v := range t.Vars {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

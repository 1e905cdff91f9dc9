package grid

import (
	"regexp"
	"strings"

	"multiverse/domain/blueprint"
	"multiverse/domain/core"
)

var tokenPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Tokens lists the placeholder tokens referenced by a code template
func Tokens(template string) []string {
	var out []string
	for _, m := range tokenPattern.FindAllStringSubmatch(template, -1) {
		out = append(out, m[1])
	}
	return out
}

// factorGroups returns the branching groups in canonical order: filters in
// registration order, then variables, preprocess, model, postprocess.
// Reliability groups are auxiliary and contribute no factor. The fixed order
// is what makes pipeline ID assignment reproducible.
func factorGroups(bp *blueprint.Blueprint) []blueprint.DecisionGroup {
	order := []blueprint.GroupKind{
		blueprint.KindFilter,
		blueprint.KindVariable,
		blueprint.KindPreprocess,
		blueprint.KindModel,
		blueprint.KindPostprocess,
	}
	var out []blueprint.DecisionGroup
	for _, kind := range order {
		for _, g := range bp.Groups() {
			if g.Kind == kind {
				out = append(out, g)
			}
		}
	}
	return out
}

// Validate checks a blueprint's structure ahead of expansion: accumulated
// registration errors, empty decision groups, and template tokens with no
// matching variable group.
func Validate(bp *blueprint.Blueprint) error {
	if err := bp.Err(); err != nil {
		return err
	}

	for _, g := range bp.Groups() {
		if len(g.Alternatives) == 0 {
			return core.NewEmptyGroupError(string(g.Kind), g.Name)
		}
	}

	vars := bp.VariableGroups()
	for _, g := range bp.Groups() {
		switch g.Kind {
		case blueprint.KindPreprocess, blueprint.KindModel, blueprint.KindPostprocess:
			for _, alt := range g.Alternatives {
				for _, token := range Tokens(alt.Template) {
					if _, ok := vars[token]; !ok {
						return core.NewTemplateBindingError(token, string(g.Kind))
					}
				}
			}
		}
	}
	return nil
}

// TotalCount returns the size of the decision product without materializing
// the grid.
func TotalCount(bp *blueprint.Blueprint) (int, error) {
	if err := Validate(bp); err != nil {
		return 0, err
	}
	total := 1
	for _, g := range factorGroups(bp) {
		total *= g.Arity()
	}
	return total, nil
}

// FilterFactorCount returns the number of filter decision groups
func FilterFactorCount(bp *blueprint.Blueprint) int {
	n := 0
	for _, g := range bp.Groups() {
		if g.Kind == blueprint.KindFilter {
			n++
		}
	}
	return n
}

// Cursor lazily walks the Cartesian product of a blueprint's decisions,
// yielding one resolved pipeline at a time. The product can reach the tens
// of thousands, so callers that stream results should prefer this over
// Expand.
type Cursor struct {
	factors []blueprint.DecisionGroup
	idx     []int
	pos     int
	total   int
	started bool
}

// NewCursor validates the blueprint and positions a cursor before the first
// pipeline.
func NewCursor(bp *blueprint.Blueprint) (*Cursor, error) {
	if err := Validate(bp); err != nil {
		return nil, err
	}
	factors := factorGroups(bp)
	total := 1
	for _, g := range factors {
		total *= g.Arity()
	}
	return &Cursor{
		factors: factors,
		idx:     make([]int, len(factors)),
		total:   total,
	}, nil
}

// Total returns the number of pipelines the cursor will yield
func (c *Cursor) Total() int { return c.total }

// Next advances to the next pipeline, odometer style with the last factor
// varying fastest. It returns false once the product is exhausted.
func (c *Cursor) Next() bool {
	if !c.started {
		c.started = true
		c.pos = 1
		return c.total > 0
	}
	if c.pos >= c.total {
		return false
	}
	for i := len(c.idx) - 1; i >= 0; i-- {
		c.idx[i]++
		if c.idx[i] < c.factors[i].Arity() {
			break
		}
		c.idx[i] = 0
	}
	c.pos++
	return true
}

// Pipeline builds the resolved pipeline at the cursor's current position
func (c *Cursor) Pipeline() ResolvedPipeline {
	p := ResolvedPipeline{
		ID:        core.PipelineID(c.pos),
		Variables: map[string]string{},
	}

	// Variables resolve before any template that can reference them because
	// variable factors precede preprocess/model/postprocess in factor order.
	for i, g := range c.factors {
		alt := g.Alternatives[c.idx[i]]
		p.Choices = append(p.Choices, Choice{
			Kind:          g.Kind,
			Group:         g.Name,
			AlternativeID: alt.ID,
			Label:         alt.Label,
			Apply:         alt.Apply,
		})

		switch g.Kind {
		case blueprint.KindFilter:
			if alt.Apply {
				p.Filters = append(p.Filters, alt.Template)
			}
		case blueprint.KindVariable:
			p.Variables[g.Name] = alt.Template
		case blueprint.KindPreprocess:
			p.PreprocessName = alt.ID
			p.PreprocessCode = substitute(alt.Template, p.Variables)
		case blueprint.KindModel:
			p.ModelName = alt.ID
			p.ModelCode = substitute(alt.Template, p.Variables)
		case blueprint.KindPostprocess:
			p.PostprocessName = alt.ID
			p.PostprocessCode = substitute(alt.Template, p.Variables)
		}
	}
	return p
}

// substitute replaces {token} placeholders with the chosen column names.
// Unknown tokens were rejected by Validate, so a leftover brace here means
// the token was bound; replacement is a plain textual pass.
func substitute(template string, vars map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(m string) string {
		token := strings.Trim(m, "{}")
		if col, ok := vars[token]; ok {
			return col
		}
		return m
	})
}

// Expand materializes the full grid of resolved pipelines for a blueprint.
// Pipeline IDs are dense 1..N in canonical order; expanding the same
// blueprint twice yields identical grids.
func Expand(bp *blueprint.Blueprint) (*Grid, error) {
	cursor, err := NewCursor(bp)
	if err != nil {
		return nil, err
	}

	g := &Grid{
		Hash:      bp.Hash(),
		Pipelines: make([]ResolvedPipeline, 0, cursor.Total()),
		blueprint: bp,
	}
	for cursor.Next() {
		g.Pipelines = append(g.Pipelines, cursor.Pipeline())
	}
	return g, nil
}

package app

import (
	"multiverse/domain/blueprint"
	"multiverse/domain/core"
	"multiverse/domain/grid"
	"multiverse/ports"
)

// Multiverse orchestrates the expansion and execution of a decision grid.
// Expression evaluation and model estimation stay behind ports so the engine
// remains agnostic to the statistical backend.
type Multiverse struct {
	expr   ports.ExprEngine
	fitter ports.ModelFitter
}

// NewMultiverse creates the orchestration service
func NewMultiverse(expr ports.ExprEngine, fitter ports.ModelFitter) *Multiverse {
	return &Multiverse{expr: expr, fitter: fitter}
}

// Expand validates a blueprint referentially and materializes its grid.
// Structural problems abort here; a malformed blueprint cannot produce a
// meaningful grid.
func (m *Multiverse) Expand(bp *blueprint.Blueprint) (*grid.Grid, error) {
	if err := m.validateFilterColumns(bp); err != nil {
		return nil, err
	}
	return grid.Expand(bp)
}

// TotalCount returns the decision-product size without materializing the grid
func (m *Multiverse) TotalCount(bp *blueprint.Blueprint) (int, error) {
	if err := m.validateFilterColumns(bp); err != nil {
		return 0, err
	}
	return grid.TotalCount(bp)
}

// FilterFactorCount returns the number of filter decision groups
func (m *Multiverse) FilterFactorCount(bp *blueprint.Blueprint) int {
	return grid.FilterFactorCount(bp)
}

// FilterExclusion summarizes what one filter predicate alone would remove
// from the unfiltered dataset.
type FilterExclusion struct {
	Predicate string `json:"predicate"`
	Removed   int    `json:"removed"`
	Kept      int    `json:"kept"`
}

// FilterExclusionSummary evaluates every filter predicate in isolation
// against the base dataset, for sanity-checking exclusion rules before
// committing to a full run.
func (m *Multiverse) FilterExclusionSummary(bp *blueprint.Blueprint) ([]FilterExclusion, error) {
	data := bp.Data()
	var out []FilterExclusion
	for _, g := range bp.Groups() {
		if g.Kind != blueprint.KindFilter {
			continue
		}
		for _, alt := range g.Alternatives {
			if !alt.Apply {
				continue
			}
			mask, err := m.expr.Mask(alt.Template, data)
			if err != nil {
				return nil, err
			}
			kept := 0
			for _, keep := range mask {
				if keep {
					kept++
				}
			}
			out = append(out, FilterExclusion{
				Predicate: alt.Template,
				Removed:   data.Rows() - kept,
				Kept:      kept,
			})
		}
	}
	return out, nil
}

// validateFilterColumns checks every filter predicate's column references
// against the dataset schema, so typos fail at expansion rather than
// silently failing pipelines at run time.
func (m *Multiverse) validateFilterColumns(bp *blueprint.Blueprint) error {
	data := bp.Data()
	for _, g := range bp.Groups() {
		if g.Kind != blueprint.KindFilter {
			continue
		}
		for _, alt := range g.Alternatives {
			if !alt.Apply {
				continue
			}
			cols, err := m.expr.Columns(alt.Template)
			if err != nil {
				return err
			}
			for _, col := range cols {
				if !data.Has(col) {
					return core.NewUnknownColumnError(col, "filter "+alt.Template)
				}
			}
		}
	}
	return nil
}

package blueprint

import (
	"errors"
	"fmt"
	"strings"

	"multiverse/domain/core"
	"multiverse/domain/frame"
)

// Blueprint accumulates decision groups for a pipeline under construction.
// It is built once by chained Add* calls against one dataset, then handed to
// the expander; groups are only ever appended, never removed. Registration
// problems (duplicate names, selectors matching nothing) are collected and
// surfaced by Err, so decisions can be added in any order.
type Blueprint struct {
	data   *frame.Frame
	groups []DecisionGroup
	errs   []error
}

// New creates an empty blueprint over a dataset
func New(data *frame.Frame) *Blueprint {
	return &Blueprint{data: data}
}

// Data returns the base dataset
func (b *Blueprint) Data() *frame.Frame { return b.data }

// Groups returns the registered decision groups in registration order
func (b *Blueprint) Groups() []DecisionGroup {
	out := make([]DecisionGroup, len(b.groups))
	copy(out, b.groups)
	return out
}

// Err returns every registration problem collected so far
func (b *Blueprint) Err() error {
	return errors.Join(b.errs...)
}

// AddFilters registers each predicate as its own two-way decision: apply the
// predicate, or pass every row through untouched. Predicates are boolean
// expressions over dataset columns ("noise < 2"); column references are
// checked at expansion time against the dataset schema.
func (b *Blueprint) AddFilters(predicates ...string) *Blueprint {
	for _, pred := range predicates {
		pred = strings.TrimSpace(pred)
		if pred == "" {
			b.errs = append(b.errs, fmt.Errorf("%w: empty filter predicate", core.ErrValidation))
			continue
		}
		b.appendGroup(DecisionGroup{
			Kind: KindFilter,
			Name: pred,
			Alternatives: []Alternative{
				{ID: "apply", Label: pred, Template: pred, Apply: true},
				{ID: "skip", Label: "keep all rows", Apply: false},
			},
		})
	}
	return b
}

// AddRequiredFilters registers predicates that apply in every pipeline.
// Each contributes a factor of one to the decision product.
func (b *Blueprint) AddRequiredFilters(predicates ...string) *Blueprint {
	for _, pred := range predicates {
		pred = strings.TrimSpace(pred)
		if pred == "" {
			b.errs = append(b.errs, fmt.Errorf("%w: empty filter predicate", core.ErrValidation))
			continue
		}
		b.appendGroup(DecisionGroup{
			Kind:     KindFilter,
			Name:     pred,
			Required: true,
			Alternatives: []Alternative{
				{ID: "apply", Label: pred, Template: pred, Apply: true},
			},
		})
	}
	return b
}

// AddVariables registers a variable group whose alternatives are the dataset
// columns matched by the glob selector. The group name becomes a {name}
// placeholder usable in later preprocess/model/postprocess templates.
func (b *Blueprint) AddVariables(name, selector string) *Blueprint {
	cols, err := MatchColumns(b.data, selector)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	if len(cols) == 0 {
		b.errs = append(b.errs, fmt.Errorf("%w: variable group %q selector %q", core.ErrNoMatch, name, selector))
		return b
	}

	alts := make([]Alternative, 0, len(cols))
	for _, col := range cols {
		alts = append(alts, Alternative{ID: col, Label: col, Template: col})
	}
	b.appendGroup(DecisionGroup{Kind: KindVariable, Name: name, Alternatives: alts, Columns: cols})
	return b
}

// AddPreprocess registers one preprocessing alternative. Repeated calls make
// the preprocessing step a branching decision across the registered templates.
func (b *Blueprint) AddPreprocess(name, template string) *Blueprint {
	return b.addShared(KindPreprocess, name, template)
}

// AddModel registers one model alternative (formula template). Repeated
// calls make the model a branching decision.
func (b *Blueprint) AddModel(name, template string) *Blueprint {
	return b.addShared(KindModel, name, template)
}

// AddPostprocess registers one postprocess alternative evaluated against the
// fitted artifact. Repeated calls make it a branching decision.
func (b *Blueprint) AddPostprocess(name, template string) *Blueprint {
	return b.addShared(KindPostprocess, name, template)
}

// AddReliabilities registers an auxiliary internal-consistency computation
// over the matched item columns. It runs once per pipeline and never branches.
func (b *Blueprint) AddReliabilities(name, selector string) *Blueprint {
	cols, err := MatchColumns(b.data, selector)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	if len(cols) < 2 {
		b.errs = append(b.errs, fmt.Errorf("%w: reliability group %q needs at least two item columns, selector %q matched %d",
			core.ErrValidation, name, selector, len(cols)))
		return b
	}
	b.appendGroup(DecisionGroup{
		Kind:         KindReliability,
		Name:         name,
		Columns:      cols,
		Alternatives: []Alternative{{ID: name, Label: name}},
	})
	return b
}

// addShared appends an alternative to the single group of the given kind,
// creating the group on first use.
func (b *Blueprint) addShared(kind GroupKind, name, template string) *Blueprint {
	if strings.TrimSpace(name) == "" {
		b.errs = append(b.errs, fmt.Errorf("%w: %s alternative needs a name", core.ErrValidation, kind))
		return b
	}
	for i := range b.groups {
		if b.groups[i].Kind != kind {
			continue
		}
		for _, alt := range b.groups[i].Alternatives {
			if alt.ID == name {
				b.errs = append(b.errs, fmt.Errorf("%w: duplicate %s alternative %q", core.ErrValidation, kind, name))
				return b
			}
		}
		b.groups[i].Alternatives = append(b.groups[i].Alternatives, Alternative{ID: name, Label: name, Template: template})
		return b
	}
	b.appendGroup(DecisionGroup{
		Kind:         kind,
		Name:         string(kind),
		Alternatives: []Alternative{{ID: name, Label: name, Template: template}},
	})
	return b
}

func (b *Blueprint) appendGroup(g DecisionGroup) {
	for _, existing := range b.groups {
		if existing.Kind == g.Kind && existing.Name == g.Name {
			b.errs = append(b.errs, fmt.Errorf("%w: duplicate %s group %q", core.ErrValidation, g.Kind, g.Name))
			return
		}
	}
	b.groups = append(b.groups, g)
}

// VariableGroups returns the variable groups keyed by placeholder token
func (b *Blueprint) VariableGroups() map[string]DecisionGroup {
	out := map[string]DecisionGroup{}
	for _, g := range b.groups {
		if g.Kind == KindVariable {
			out[g.Name] = g
		}
	}
	return out
}

// ReliabilityGroups returns the registered reliability groups in order
func (b *Blueprint) ReliabilityGroups() []DecisionGroup {
	var out []DecisionGroup
	for _, g := range b.groups {
		if g.Kind == KindReliability {
			out = append(out, g)
		}
	}
	return out
}

// Hash fingerprints the decision structure. Expansion is a pure function of
// the blueprint, so equal hashes imply byte-identical resolved grids.
func (b *Blueprint) Hash() core.BlueprintHash {
	var sb strings.Builder
	for _, g := range b.groups {
		sb.WriteString(string(g.Kind))
		sb.WriteByte(':')
		sb.WriteString(g.Name)
		if g.Required {
			sb.WriteString(":required")
		}
		for _, alt := range g.Alternatives {
			fmt.Fprintf(&sb, "|%s=%s", alt.ID, alt.Template)
		}
		sb.WriteByte(';')
	}
	return core.NewBlueprintHash([]byte(sb.String()))
}

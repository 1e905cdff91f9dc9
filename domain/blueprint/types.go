package blueprint

// GroupKind classifies one analytic choice point
type GroupKind string

const (
	KindFilter      GroupKind = "filter"
	KindVariable    GroupKind = "variable"
	KindPreprocess  GroupKind = "preprocess"
	KindModel       GroupKind = "model"
	KindPostprocess GroupKind = "postprocess"
	KindReliability GroupKind = "reliability"
)

// Alternative is one concrete choice within a decision group
type Alternative struct {
	ID       string `json:"id"`       // unique within the group
	Label    string `json:"label"`    // human-readable, e.g. the predicate text
	Template string `json:"template"` // parametrized code, may hold {token} placeholders
	Apply    bool   `json:"apply"`    // filter groups: false marks the identity pass-through
}

// DecisionGroup is a named set of mutually exclusive alternatives for one
// analytic choice. Variable groups carry one alternative per matched column;
// reliability groups are auxiliary and never branch.
type DecisionGroup struct {
	Kind         GroupKind     `json:"kind"`
	Name         string        `json:"name"`
	Alternatives []Alternative `json:"alternatives"`
	Required     bool          `json:"required"` // filter groups: no skip alternative
	Columns      []string      `json:"columns,omitempty"`
}

// Arity returns the number of branches this group contributes to the
// decision product. Reliability groups are not a factor.
func (g DecisionGroup) Arity() int {
	if g.Kind == KindReliability {
		return 1
	}
	return len(g.Alternatives)
}

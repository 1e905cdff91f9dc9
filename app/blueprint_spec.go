package app

import (
	"multiverse/domain/blueprint"
	"multiverse/domain/frame"
)

// NamedTemplate is one declared alternative for a shared decision group
type NamedTemplate struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

// SelectorSpec names a column group picked by a glob selector
type SelectorSpec struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

// BlueprintSpec is the serializable form of a blueprint, used by the HTTP
// API and the CLI. Slices keep declaration order, which fixes pipeline ID
// assignment across runs of the same spec.
type BlueprintSpec struct {
	Filters         []string        `json:"filters,omitempty"`
	RequiredFilters []string        `json:"required_filters,omitempty"`
	Variables       []SelectorSpec  `json:"variables,omitempty"`
	Preprocess      []NamedTemplate `json:"preprocess,omitempty"`
	Models          []NamedTemplate `json:"models,omitempty"`
	Postprocess     []NamedTemplate `json:"postprocess,omitempty"`
	Reliabilities   []SelectorSpec  `json:"reliabilities,omitempty"`
}

// Build registers every declared decision group against the dataset.
// Structural errors surface later through the blueprint's own validation.
func (s BlueprintSpec) Build(data *frame.Frame) *blueprint.Blueprint {
	bp := blueprint.New(data)
	bp.AddFilters(s.Filters...)
	bp.AddRequiredFilters(s.RequiredFilters...)
	for _, v := range s.Variables {
		bp.AddVariables(v.Name, v.Selector)
	}
	for _, p := range s.Preprocess {
		bp.AddPreprocess(p.Name, p.Template)
	}
	for _, m := range s.Models {
		bp.AddModel(m.Name, m.Template)
	}
	for _, p := range s.Postprocess {
		bp.AddPostprocess(p.Name, p.Template)
	}
	for _, r := range s.Reliabilities {
		bp.AddReliabilities(r.Name, r.Selector)
	}
	return bp
}

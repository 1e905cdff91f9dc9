package grid

import (
	"fmt"
	"strings"

	"multiverse/domain/blueprint"
	"multiverse/domain/core"
)

// Stage names one phase of a resolved pipeline
type Stage string

const (
	StageFilter      Stage = "filter"
	StagePreprocess  Stage = "preprocess"
	StageModel       Stage = "model"
	StagePostprocess Stage = "postprocess"
	StageReliability Stage = "reliability"
)

// Choice records which alternative a resolved pipeline took for one group
type Choice struct {
	Kind          blueprint.GroupKind `json:"kind"`
	Group         string              `json:"group"`
	AlternativeID string              `json:"alternative_id"`
	Label         string              `json:"label"`
	Apply         bool                `json:"apply"` // filters only
}

// ResolvedPipeline is one fully concrete combination of decisions with all
// placeholder tokens substituted. The code strings are stored verbatim at
// expansion time; nothing is executed until the runner picks the pipeline up.
type ResolvedPipeline struct {
	ID      core.PipelineID `json:"id"`
	Choices []Choice        `json:"choices"`

	// Filters holds the predicates this pipeline applies, in registration
	// order. Skipped toggles are absent.
	Filters []string `json:"filters"`

	PreprocessName  string `json:"preprocess_name,omitempty"`
	PreprocessCode  string `json:"preprocess_code,omitempty"`
	ModelName       string `json:"model_name,omitempty"`
	ModelCode       string `json:"model_code,omitempty"`
	PostprocessName string `json:"postprocess_name,omitempty"`
	PostprocessCode string `json:"postprocess_code,omitempty"`

	// Variables maps placeholder tokens to the column chosen for them.
	Variables map[string]string `json:"variables,omitempty"`
}

// Code returns the resolved code string for one stage
func (p ResolvedPipeline) Code(stage Stage) (string, error) {
	switch stage {
	case StageFilter:
		return strings.Join(p.Filters, " && "), nil
	case StagePreprocess:
		return p.PreprocessCode, nil
	case StageModel:
		return p.ModelCode, nil
	case StagePostprocess:
		return p.PostprocessCode, nil
	}
	return "", fmt.Errorf("unknown pipeline stage %q", stage)
}

// Grid is the materialized Cartesian product of a blueprint's decisions
type Grid struct {
	Hash      core.BlueprintHash
	Pipelines []ResolvedPipeline

	blueprint *blueprint.Blueprint
}

// Blueprint returns the blueprint this grid was expanded from
func (g *Grid) Blueprint() *blueprint.Blueprint { return g.blueprint }

// Len returns the number of resolved pipelines
func (g *Grid) Len() int { return len(g.Pipelines) }

// Pipeline looks up one resolved pipeline by its dense ID
func (g *Grid) Pipeline(id core.PipelineID) (ResolvedPipeline, error) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(g.Pipelines) {
		return ResolvedPipeline{}, fmt.Errorf("pipeline %d out of range 1..%d", id, len(g.Pipelines))
	}
	return g.Pipelines[idx], nil
}

// ShowCode returns the exact resolved code string for one stage of one
// pipeline, for debugging ahead of a full run.
func (g *Grid) ShowCode(stage Stage, id core.PipelineID) (string, error) {
	p, err := g.Pipeline(id)
	if err != nil {
		return "", err
	}
	return p.Code(stage)
}

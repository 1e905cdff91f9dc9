package result

import (
	"multiverse/domain/core"
)

// UnpackMode controls how decision choices attach to tidy rows
type UnpackMode string

const (
	// Wide: each row carries every decision choice in its Decisions map.
	Wide UnpackMode = "wide"
	// Long: each statistic is replicated once per (group, choice) pair.
	Long UnpackMode = "long"
)

// RowKind distinguishes what a tidy row describes
type RowKind string

const (
	RowParameter   RowKind = "parameter"
	RowPostprocess RowKind = "postprocess"
	RowReliability RowKind = "reliability"
)

// Row is one entry of the tidy result table, keyed by (pipeline, parameter).
// Failed pipelines unpack to rows whose statistic fields are NaN with Status
// set, so downstream aggregation can count or drop them explicitly.
type Row struct {
	PipelineID core.PipelineID `json:"pipeline_id"`
	Kind       RowKind         `json:"kind"`
	Parameter  string          `json:"parameter"`
	Status     Status          `json:"status"`

	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	PValue   float64 `json:"p_value"`
	CILow    float64 `json:"ci_low"`
	CIHigh   float64 `json:"ci_high"`

	// Decisions carries group -> chosen alternative label (wide mode).
	Decisions map[string]string `json:"decisions,omitempty"`
	// Group/Choice identify one decision pair (long mode).
	Group  string `json:"group,omitempty"`
	Choice string `json:"choice,omitempty"`
}

// Condensed is one output row of a grouped reduction
type Condensed struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	N         int     `json:"n"`
}

// Reduction collapses the values of one column within a group to a scalar
type Reduction func(values []float64) (float64, error)

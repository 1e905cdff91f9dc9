package result

import (
	"multiverse/domain/core"
)

// Status marks whether a pipeline execution produced a usable fit
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// ParamStat holds the inferential statistics for one model parameter
type ParamStat struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TStat    float64 `json:"t_stat"`
	PValue   float64 `json:"p_value"`
	CILow    float64 `json:"ci_low"`
	CIHigh   float64 `json:"ci_high"`
}

// ModelFit is the fitted-model artifact a fitter hands back. The engine
// treats estimation as opaque: it only reads Params for unpacking and passes
// Residuals/Fitted through to postprocess expressions.
type ModelFit struct {
	Formula   string      `json:"formula"`
	Params    []ParamStat `json:"params"`
	Residuals []float64   `json:"-"`
	Fitted    []float64   `json:"-"`
	R2        float64     `json:"r2"`
	AdjR2     float64     `json:"adj_r2"`
	Sigma     float64     `json:"sigma"`
	N         int         `json:"n"`
}

// Reliability is the internal-consistency output of one reliability group
type Reliability struct {
	Group         string  `json:"group"`
	Alpha         float64 `json:"alpha"`
	Items         int     `json:"items"`
	N             int     `json:"n"`
	MeanInterItem float64 `json:"mean_inter_item_r"`
}

// Record is the outcome of executing one resolved pipeline. The runner
// produces exactly one record per pipeline whether or not a stage failed;
// failed records carry the stage and message instead of a fit.
type Record struct {
	PipelineID   core.PipelineID `json:"pipeline_id"`
	Status       Status          `json:"status"`
	FailedStage  string          `json:"failed_stage,omitempty"`
	Err          string          `json:"error,omitempty"`
	FilteredRows int             `json:"filtered_rows"`

	Fit           *ModelFit            `json:"fit,omitempty"`
	Post          map[string][]float64 `json:"post,omitempty"`
	Reliabilities []Reliability        `json:"reliabilities,omitempty"`
}

// Failed reports whether the record captured a stage failure
func (r Record) Failed() bool { return r.Status == StatusFailed }

// NewFailure builds a failed record for one pipeline and stage
func NewFailure(id core.PipelineID, stage string, err error, filteredRows int) Record {
	return Record{
		PipelineID:   id,
		Status:       StatusFailed,
		FailedStage:  stage,
		Err:          err.Error(),
		FilteredRows: filteredRows,
	}
}

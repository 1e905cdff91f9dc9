package app

import (
	"fmt"
	"time"

	"multiverse/domain/core"
	"multiverse/domain/frame"
	"multiverse/domain/grid"
)

// Manifest records what one run executed, for reproducibility audits. Two
// runs with equal fingerprints ran the same grid against a dataset of the
// same shape.
type Manifest struct {
	RunID         core.RunID         `json:"run_id"`
	BlueprintHash core.BlueprintHash `json:"blueprint_hash"`
	Fingerprint   core.Hash          `json:"fingerprint"`
	Pipelines     int                `json:"pipelines"`
	DatasetRows   int                `json:"dataset_rows"`
	DatasetCols   int                `json:"dataset_cols"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
}

// NewManifest builds the manifest for one run
func NewManifest(runID core.RunID, g *grid.Grid, data *frame.Frame, started, finished time.Time) Manifest {
	fp := core.NewHash([]byte(fmt.Sprintf("%s:%d:%d:%d",
		g.Hash, g.Len(), data.Rows(), len(data.Names()))))
	return Manifest{
		RunID:         runID,
		BlueprintHash: g.Hash,
		Fingerprint:   fp,
		Pipelines:     g.Len(),
		DatasetRows:   data.Rows(),
		DatasetCols:   len(data.Names()),
		StartedAt:     started,
		FinishedAt:    finished,
	}
}

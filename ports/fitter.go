package ports

import (
	"context"

	"multiverse/domain/frame"
	"multiverse/domain/result"
)

// ModelFitter fits a model described by a resolved formula string against
// prepared data. The engine stays agnostic to the estimation backend: its job
// is orchestration and combinatorics, and a fitter is free to implement any
// estimator as long as it returns a fit artifact or an error. Fitters must
// honor ctx cancellation so a hung fit cannot stall the batch.
type ModelFitter interface {
	Fit(ctx context.Context, data *frame.Frame, formula string) (*result.ModelFit, error)
}

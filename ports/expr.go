package ports

import (
	"multiverse/domain/frame"
	"multiverse/domain/result"
)

// ExprEngine evaluates the resolved code strings of a pipeline's filter,
// preprocess and postprocess stages. Implementations parse the expression
// language; the engine core only moves the strings around.
type ExprEngine interface {
	// Columns returns the column names a predicate or template references,
	// without evaluating it. Used for fail-fast schema validation.
	Columns(expr string) ([]string, error)

	// Mask evaluates a boolean predicate per row.
	Mask(expr string, data *frame.Frame) ([]bool, error)

	// Transform evaluates preprocess assignments ("iv_z = scale(mood_1)")
	// and returns a new frame with the assigned columns added or replaced.
	Transform(code string, data *frame.Frame) (*frame.Frame, error)

	// EvalFit evaluates a postprocess expression against a fitted artifact
	// (residuals, fitted values) and returns its scalar or vector output.
	EvalFit(expr string, fit *result.ModelFit) ([]float64, error)
}

package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Structural errors: a malformed blueprint cannot produce a meaningful
	// grid, so these abort registration or expansion outright.
	ErrValidation         = errors.New("blueprint validation failed")
	ErrUnknownColumn      = fmt.Errorf("%w: unknown column", ErrValidation)
	ErrNoMatch            = fmt.Errorf("%w: selector matched no columns", ErrValidation)
	ErrTemplateBinding    = errors.New("template references an unbound placeholder")
	ErrEmptyDecisionGroup = errors.New("decision group has no alternatives")

	// Execution errors: contained at the granularity of one pipeline and
	// reported on its result record, never raised across the batch.
	ErrPipelineExecution = errors.New("pipeline stage failed")
	ErrFitTimeout        = errors.New("model fit exceeded time budget")
)

// Error constructors with context
func NewUnknownColumnError(column, where string) error {
	return fmt.Errorf("%w %q referenced by %s", ErrUnknownColumn, column, where)
}

func NewTemplateBindingError(token, stage string) error {
	return fmt.Errorf("%w: {%s} in %s template has no matching variable group", ErrTemplateBinding, token, stage)
}

func NewEmptyGroupError(kind, name string) error {
	return fmt.Errorf("%w: %s group %q", ErrEmptyDecisionGroup, kind, name)
}

func NewStageError(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPipelineExecution, stage, err)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsTemplateBindingError(err error) bool {
	return errors.Is(err, ErrTemplateBinding)
}

func IsExecutionError(err error) bool {
	return errors.Is(err, ErrPipelineExecution) || errors.Is(err, ErrFitTimeout)
}

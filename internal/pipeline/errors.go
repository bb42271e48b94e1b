// Package pipeline compiles the step catalog into class-specific execution
// plans and drives them against a job's evolving context. It is the state
// machine at the center of document processing: plans are immutable, step
// order is strict, and every external call goes through the model invoker
// or the extraction router.
package pipeline

import (
	"errors"
	"fmt"
)

// Configuration errors raised by the compiler. These are validation
// failures: never retried, and they fail the job immediately.
var (
	// ErrUnknownClass indicates a class-specific step or branch resolution
	// references a class key the catalog does not define.
	ErrUnknownClass = errors.New("unknown document class")
	// ErrDisabledClass indicates the resolved document class is disabled.
	ErrDisabledClass = errors.New("document class is disabled")
	// ErrNoBranchingStep indicates the catalog defines class-specific steps
	// but no enabled branching step to resolve a class.
	ErrNoBranchingStep = errors.New("catalog has no branching step")
	// ErrBranchingSkipped indicates the branching step could not run because
	// its required context variables were absent. Skipping it would leave the
	// document class unresolved, so this is a hard configuration error.
	ErrBranchingSkipped = errors.New("branching step requires absent context variables")
)

// StepError wraps a step invocation failure with the step's identity so the
// job surface can name the step that failed.
type StepError struct {
	Step  string
	Order int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q (position %d): %v", e.Step, e.Order, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

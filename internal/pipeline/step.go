// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidStep is the sentinel error wrapped by InvalidStepError.
	ErrInvalidStep = errors.New("invalid step")
	// ErrInvalidPipeline is the sentinel error wrapped by InvalidPipelineError.
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

type (
	// Decision is the outcome of a Step's Condition: whether the step
	// executes, plus a human-readable reason surfaced in logs and in
	// plan output.
	Decision struct {
		Execute bool
		Reason  string
	}

	// Step is one ordered unit of a provisioning run. Steps are value
	// types; the Runner never mutates them.
	//
	// Precondition: every step may assume the payload was resolved and
	// all prior executed steps completed. It must not assume a prior
	// conditional step ran.
	Step[T any] struct {
		// Name identifies the step in logs, plan output, and StepError.
		Name string
		// Condition is evaluated immediately before the step runs, never
		// earlier. A nil Condition means the step always executes.
		Condition func(t T) Decision
		// Run performs the step's side effects. Required.
		Run func(ctx context.Context, t T) error
	}

	// InvalidStepError is returned when a Step has invalid fields.
	// It wraps ErrInvalidStep for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidStepError struct {
		Name        string
		FieldErrors []error
	}

	// InvalidPipelineError is returned when a pipeline's step list fails
	// validation. It wraps ErrInvalidPipeline for errors.Is()
	// compatibility and collects step-level validation errors.
	InvalidPipelineError struct {
		FieldErrors []error
	}
)

// Execute builds an affirmative Decision with the given reason.
func Execute(reason string) Decision {
	return Decision{Execute: true, Reason: reason}
}

// Skip builds a negative Decision with the given reason.
func Skip(reason string) Decision {
	return Decision{Execute: false, Reason: reason}
}

// String renders the decision for plan output, e.g. "execute: build enabled".
func (d Decision) String() string {
	verdict := "skip"
	if d.Execute {
		verdict = "execute"
	}
	if d.Reason == "" {
		return verdict
	}
	return verdict + ": " + d.Reason
}

// IsValid returns whether the Step is well-formed: a non-empty name and a
// non-nil Run function. Condition is optional.
func (s Step[T]) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, fmt.Errorf("step name must be non-empty"))
	}
	if s.Run == nil {
		errs = append(errs, fmt.Errorf("step run function must be non-nil"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidStepError{Name: s.Name, FieldErrors: errs}}
	}
	return true, nil
}

// Decide evaluates the step's condition against the payload. A nil
// Condition yields an unconditional execute decision.
func (s Step[T]) Decide(t T) Decision {
	if s.Condition == nil {
		return Execute("unconditional")
	}
	return s.Condition(t)
}

// Error implements the error interface for InvalidStepError.
func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("invalid step %q: %d field error(s)", e.Name, len(e.FieldErrors))
}

// Unwrap returns ErrInvalidStep for errors.Is() compatibility.
func (e *InvalidStepError) Unwrap() error { return ErrInvalidStep }

// Error implements the error interface for InvalidPipelineError.
func (e *InvalidPipelineError) Error() string {
	return fmt.Sprintf("invalid pipeline: %d step error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidPipeline for errors.Is() compatibility.
func (e *InvalidPipelineError) Unwrap() error { return ErrInvalidPipeline }

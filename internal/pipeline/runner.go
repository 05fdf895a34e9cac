// SPDX-License-Identifier: EPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// StateInit indicates the runner has been created but not started.
	StateInit State = iota
	// StateResolving indicates the run payload is being resolved.
	StateResolving
	// StateSequencing indicates steps are executing in declaration order.
	StateSequencing
	// StateStaged indicates every step ran to completion and its outputs
	// are in place.
	StateStaged
	// StateComplete indicates the run finished and its result was
	// assembled (terminal state).
	StateComplete
	// StateFailed indicates the run aborted on a resolve or step failure
	// (terminal state).
	StateFailed
)

type (
	// State represents the lifecycle state of a run.
	State int32

	// Resolver produces the run payload during the resolving phase.
	Resolver[T any] func(ctx context.Context) (T, error)

	// Runner executes an ordered step list exactly once, fail-fast, with
	// no retry and no rollback. A Runner instance is single-use and is
	// exclusively owned by one caller; once complete or failed, create a
	// new instance.
	Runner[T any] struct {
		name     string
		steps    []Step[T]
		logger   *log.Logger
		snapshot func(T) string

		// State management (atomic for lock-free reads)
		state   atomic.Int32
		lastErr error
	}

	// Option configures a Runner at construction.
	Option[T any] func(*Runner[T])

	// StepError reports a step whose action failed. It carries the step
	// name and a one-line payload snapshot for postmortem context; Unwrap
	// exposes the cause unmodified.
	StepError struct {
		Step     string
		Snapshot string
		Err      error
	}

	// StepResult records one step's outcome within a run.
	StepResult struct {
		Name     string
		Executed bool
		Reason   string
		Duration time.Duration
	}

	// Result is the assembled outcome of a successful run.
	Result[T any] struct {
		// Payload is the resolved run payload after all steps ran.
		Payload T
		// Steps holds one entry per declared step, executed or skipped,
		// in declaration order.
		Steps []StepResult
		// Duration is the wall time of the whole run.
		Duration time.Duration
	}
)

// String returns a human-readable representation of the run state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResolving:
		return "resolving"
	case StateSequencing:
		return "sequencing"
	case StateStaged:
		return "staged"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error implements the error interface for StepError.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

// Unwrap returns the step's cause unmodified.
func (e *StepError) Unwrap() error { return e.Err }

// WithLogger sets the logger the runner reports step lifecycle events on.
func WithLogger[T any](logger *log.Logger) Option[T] {
	return func(r *Runner[T]) {
		r.logger = logger
	}
}

// WithSnapshot sets a function that renders the resolved payload as a
// one-line summary. The snapshot is attached to every StepError.
func WithSnapshot[T any](fn func(T) string) Option[T] {
	return func(r *Runner[T]) {
		r.snapshot = fn
	}
}

// New creates a runner over the given steps. The step list is validated
// up front: every step must be well-formed and names must be unique.
// The runner is not started; call Run to execute.
func New[T any](name string, steps []Step[T], opts ...Option[T]) (*Runner[T], error) {
	var errs []error
	if len(steps) == 0 {
		errs = append(errs, fmt.Errorf("pipeline must declare at least one step"))
	}
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if valid, fieldErrs := s.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
		if _, dup := seen[s.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate step name %q", s.Name))
		}
		seen[s.Name] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, &InvalidPipelineError{FieldErrors: errs}
	}

	r := &Runner[T]{
		name:   name,
		steps:  append([]Step[T](nil), steps...),
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: name}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state.Store(int32(StateInit))

	return r, nil
}

// State returns the current run state.
func (r *Runner[T]) State() State {
	return State(r.state.Load())
}

// LastError returns the error that moved the runner to StateFailed, or
// nil if the runner has not failed.
func (r *Runner[T]) LastError() error {
	return r.lastErr
}

// Run executes the pipeline once: resolve the payload, then execute each
// step in declaration order. A step's condition is evaluated immediately
// before the step would run; a negative decision logs a skip and has no
// side effect. The first failure aborts the run with a StepError and no
// rollback. Cancellation is honored at step boundaries.
//
// A second Run on the same instance is rejected regardless of the first
// run's outcome.
func (r *Runner[T]) Run(ctx context.Context, resolve Resolver[T]) (*Result[T], error) {
	if !r.state.CompareAndSwap(int32(StateInit), int32(StateResolving)) {
		return nil, fmt.Errorf("cannot start pipeline %q in state %s", r.name, r.State())
	}

	if resolve == nil {
		return nil, r.fail(fmt.Errorf("pipeline %q requires a resolver", r.name))
	}

	select {
	case <-ctx.Done():
		return nil, r.fail(fmt.Errorf("run canceled before resolving: %w", ctx.Err()))
	default:
	}

	start := time.Now()
	r.logger.Debug("resolving run inputs", "pipeline", r.name)
	payload, err := resolve(ctx)
	if err != nil {
		return nil, r.fail(fmt.Errorf("failed to resolve run inputs: %w", err))
	}

	snapshot := ""
	if r.snapshot != nil {
		snapshot = r.snapshot(payload)
		r.logger.Debug("resolved run inputs", "snapshot", snapshot)
	}

	r.state.Store(int32(StateSequencing))

	results := make([]StepResult, 0, len(r.steps))
	for i, step := range r.steps {
		select {
		case <-ctx.Done():
			return nil, r.fail(&StepError{
				Step:     step.Name,
				Snapshot: snapshot,
				Err:      fmt.Errorf("run canceled: %w", ctx.Err()),
			})
		default:
		}

		decision := step.Decide(payload)
		if !decision.Execute {
			r.logger.Info("step skipped", "step", step.Name, "reason", decision.Reason)
			results = append(results, StepResult{Name: step.Name, Reason: decision.Reason})
			continue
		}

		r.logger.Info("step started", "step", step.Name,
			"position", fmt.Sprintf("%d/%d", i+1, len(r.steps)), "reason", decision.Reason)
		stepStart := time.Now()
		if err := step.Run(ctx, payload); err != nil {
			return nil, r.fail(&StepError{Step: step.Name, Snapshot: snapshot, Err: err})
		}
		elapsed := time.Since(stepStart)
		r.logger.Info("step completed", "step", step.Name, "duration", elapsed)
		results = append(results, StepResult{
			Name:     step.Name,
			Executed: true,
			Reason:   decision.Reason,
			Duration: elapsed,
		})
	}

	r.state.Store(int32(StateStaged))

	result := &Result[T]{
		Payload:  payload,
		Steps:    results,
		Duration: time.Since(start),
	}
	r.logger.Info("run completed", "pipeline", r.name, "duration", result.Duration)
	r.state.Store(int32(StateComplete))

	return result, nil
}

// fail moves the runner to the terminal failed state and records the error.
func (r *Runner[T]) fail(err error) error {
	r.state.Store(int32(StateFailed))
	r.lastErr = err
	r.logger.Error("run failed", "pipeline", r.name, "error", err)
	return err
}

// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// testPayload records step activity so tests can assert ordering and
// condition evaluation timing.
type testPayload struct {
	order    []string
	unlocked bool
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func appendStep(name string) Step[*testPayload] {
	return Step[*testPayload]{
		Name: name,
		Run: func(_ context.Context, p *testPayload) error {
			p.order = append(p.order, name)
			return nil
		},
	}
}

func resolveTestPayload(context.Context) (*testPayload, error) {
	return &testPayload{}, nil
}

func TestNew_ValidatesSteps(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, *testPayload) error { return nil }

	tests := []struct {
		name    string
		steps   []Step[*testPayload]
		wantErr bool
	}{
		{
			name:    "well-formed steps accepted",
			steps:   []Step[*testPayload]{{Name: "first", Run: noop}, {Name: "second", Run: noop}},
			wantErr: false,
		},
		{
			name:    "empty step list rejected",
			steps:   nil,
			wantErr: true,
		},
		{
			name:    "unnamed step rejected",
			steps:   []Step[*testPayload]{{Name: "", Run: noop}},
			wantErr: true,
		},
		{
			name:    "nil run function rejected",
			steps:   []Step[*testPayload]{{Name: "first"}},
			wantErr: true,
		},
		{
			name:    "duplicate step names rejected",
			steps:   []Step[*testPayload]{{Name: "first", Run: noop}, {Name: "first", Run: noop}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := New("test", tt.steps, WithLogger[*testPayload](quietLogger()))
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() should reject invalid steps")
				}
				if !errors.Is(err, ErrInvalidPipeline) {
					t.Errorf("error should wrap ErrInvalidPipeline, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() returned error: %v", err)
			}
			if r.State() != StateInit {
				t.Errorf("initial state = %s, want %s", r.State(), StateInit)
			}
		})
	}
}

func TestRunner_ExecutesStepsInOrder(t *testing.T) {
	t.Parallel()

	steps := []Step[*testPayload]{appendStep("first"), appendStep("second"), appendStep("third")}
	r, err := New("test", steps, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	result, err := r.Run(context.Background(), resolveTestPayload)
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	want := []string{"first", "second", "third"}
	if strings.Join(result.Payload.order, ",") != strings.Join(want, ",") {
		t.Errorf("execution order = %v, want %v", result.Payload.order, want)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(result.Steps))
	}
	for i, sr := range result.Steps {
		if !sr.Executed {
			t.Errorf("step %d (%s) should be marked executed", i, sr.Name)
		}
	}
	if r.State() != StateComplete {
		t.Errorf("state after run = %s, want %s", r.State(), StateComplete)
	}
}

func TestRunner_SkipsOnFalseCondition(t *testing.T) {
	t.Parallel()

	skipped := appendStep("second")
	skipped.Condition = func(*testPayload) Decision { return Skip("triton build disabled") }

	steps := []Step[*testPayload]{appendStep("first"), skipped, appendStep("third")}
	r, err := New("test", steps, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	result, err := r.Run(context.Background(), resolveTestPayload)
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	want := []string{"first", "third"}
	if strings.Join(result.Payload.order, ",") != strings.Join(want, ",") {
		t.Errorf("execution order = %v, want %v", result.Payload.order, want)
	}
	if result.Steps[1].Executed {
		t.Error("skipped step should not be marked executed")
	}
	if result.Steps[1].Reason != "triton build disabled" {
		t.Errorf("skip reason = %q, want %q", result.Steps[1].Reason, "triton build disabled")
	}
	if r.State() != StateComplete {
		t.Errorf("state after run = %s, want %s", r.State(), StateComplete)
	}
}

func TestRunner_ConditionEvaluatedJustBeforeStep(t *testing.T) {
	t.Parallel()

	// The first step unlocks the second step's condition. If conditions
	// were evaluated up front instead of immediately before each step,
	// the second step would be skipped.
	unlock := Step[*testPayload]{
		Name: "unlock",
		Run: func(_ context.Context, p *testPayload) error {
			p.unlocked = true
			return nil
		},
	}
	gated := appendStep("gated")
	gated.Condition = func(p *testPayload) Decision {
		if p.unlocked {
			return Execute("unlocked by prior step")
		}
		return Skip("locked")
	}

	r, err := New("test", []Step[*testPayload]{unlock, gated}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	result, err := r.Run(context.Background(), resolveTestPayload)
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if !result.Steps[1].Executed {
		t.Error("gated step should execute: its condition must be evaluated after the prior step ran")
	}
}

func TestRunner_AbortsOnFirstFailure(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	failing := Step[*testPayload]{
		Name: "second",
		Run:  func(context.Context, *testPayload) error { return errBoom },
	}

	steps := []Step[*testPayload]{appendStep("first"), failing, appendStep("third")}
	r, err := New("test", steps, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	result, err := r.Run(context.Background(), resolveTestPayload)
	if err == nil {
		t.Fatal("Run() should fail when a step fails")
	}
	if result != nil {
		t.Error("failed run should return nil result")
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error should be *StepError, got: %T", err)
	}
	if stepErr.Step != "second" {
		t.Errorf("StepError.Step = %q, want %q", stepErr.Step, "second")
	}
	if !errors.Is(err, errBoom) {
		t.Error("StepError should expose the cause via Unwrap")
	}
	if r.State() != StateFailed {
		t.Errorf("state after failure = %s, want %s", r.State(), StateFailed)
	}
	if !errors.Is(r.LastError(), errBoom) {
		t.Errorf("LastError() = %v, want the step failure", r.LastError())
	}
}

func TestRunner_SnapshotAttachedToStepError(t *testing.T) {
	t.Parallel()

	failing := Step[*testPayload]{
		Name: "build",
		Run:  func(context.Context, *testPayload) error { return errors.New("boom") },
	}
	r, err := New("test", []Step[*testPayload]{failing},
		WithLogger[*testPayload](quietLogger()),
		WithSnapshot[*testPayload](func(*testPayload) string { return "variant=test archs=[gfx90a]" }),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	_, err = r.Run(context.Background(), resolveTestPayload)

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error should be *StepError, got: %T", err)
	}
	if stepErr.Snapshot != "variant=test archs=[gfx90a]" {
		t.Errorf("Snapshot = %q, want the rendered payload snapshot", stepErr.Snapshot)
	}
}

func TestRunner_SecondRunRejected(t *testing.T) {
	t.Parallel()

	r, err := New("test", []Step[*testPayload]{appendStep("only")}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	if _, err := r.Run(context.Background(), resolveTestPayload); err != nil {
		t.Fatalf("first Run() returned error: %v", err)
	}

	_, err = r.Run(context.Background(), resolveTestPayload)
	if err == nil {
		t.Fatal("second Run() should be rejected")
	}
	if !strings.Contains(err.Error(), "cannot start pipeline") {
		t.Errorf("unexpected rejection message: %v", err)
	}
}

func TestRunner_SecondRunRejectedAfterFailure(t *testing.T) {
	t.Parallel()

	failing := Step[*testPayload]{
		Name: "only",
		Run:  func(context.Context, *testPayload) error { return errors.New("boom") },
	}
	r, err := New("test", []Step[*testPayload]{failing}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	if _, err := r.Run(context.Background(), resolveTestPayload); err == nil {
		t.Fatal("first Run() should fail")
	}

	_, err = r.Run(context.Background(), resolveTestPayload)
	if err == nil {
		t.Fatal("second Run() should be rejected after a failed run")
	}
}

func TestRunner_ResolverError(t *testing.T) {
	t.Parallel()

	errResolve := errors.New("no such config")
	r, err := New("test", []Step[*testPayload]{appendStep("only")}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	_, err = r.Run(context.Background(), func(context.Context) (*testPayload, error) {
		return nil, errResolve
	})
	if err == nil {
		t.Fatal("Run() should fail when the resolver fails")
	}
	if !errors.Is(err, errResolve) {
		t.Errorf("error should wrap the resolver failure, got: %v", err)
	}
	if r.State() != StateFailed {
		t.Errorf("state = %s, want %s", r.State(), StateFailed)
	}
}

func TestRunner_NilResolverRejected(t *testing.T) {
	t.Parallel()

	r, err := New("test", []Step[*testPayload]{appendStep("only")}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	if _, err := r.Run(context.Background(), nil); err == nil {
		t.Fatal("Run() should reject a nil resolver")
	}
	if r.State() != StateFailed {
		t.Errorf("state = %s, want %s", r.State(), StateFailed)
	}
}

func TestRunner_ContextCanceledBeforeRun(t *testing.T) {
	t.Parallel()

	r, err := New("test", []Step[*testPayload]{appendStep("only")}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx, resolveTestPayload)
	if err == nil {
		t.Fatal("Run() should fail with a canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got: %v", err)
	}
	if r.State() != StateFailed {
		t.Errorf("state = %s, want %s", r.State(), StateFailed)
	}
}

func TestRunner_ContextCanceledBetweenSteps(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	canceling := Step[*testPayload]{
		Name: "first",
		Run: func(_ context.Context, p *testPayload) error {
			p.order = append(p.order, "first")
			cancel()
			return nil
		},
	}

	steps := []Step[*testPayload]{canceling, appendStep("second")}
	r, err := New("test", steps, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	_, err = r.Run(ctx, resolveTestPayload)
	if err == nil {
		t.Fatal("Run() should fail when the context is canceled mid-run")
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error should be *StepError, got: %T", err)
	}
	if stepErr.Step != "second" {
		t.Errorf("cancellation should surface at the next step boundary, got step %q", stepErr.Step)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got: %v", err)
	}
}

func TestRunner_ObservesSequencingState(t *testing.T) {
	t.Parallel()

	var r *Runner[*testPayload]
	var observed State

	probe := Step[*testPayload]{
		Name: "probe",
		Run: func(context.Context, *testPayload) error {
			observed = r.State()
			return nil
		},
	}

	r, err := New("test", []Step[*testPayload]{probe}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	if _, err := r.Run(context.Background(), resolveTestPayload); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if observed != StateSequencing {
		t.Errorf("state during step execution = %s, want %s", observed, StateSequencing)
	}
}

func TestRunner_CompletesWithAllStepsSkipped(t *testing.T) {
	t.Parallel()

	skipAll := func(*testPayload) Decision { return Skip("build disabled") }
	first := appendStep("first")
	first.Condition = skipAll
	second := appendStep("second")
	second.Condition = skipAll

	r, err := New("test", []Step[*testPayload]{first, second}, WithLogger[*testPayload](quietLogger()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	result, err := r.Run(context.Background(), resolveTestPayload)
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(result.Payload.order) != 0 {
		t.Errorf("no step should have executed, got %v", result.Payload.order)
	}
	if r.State() != StateComplete {
		t.Errorf("state = %s, want %s", r.State(), StateComplete)
	}
}

func TestStepError_Error(t *testing.T) {
	t.Parallel()

	err := &StepError{Step: "build extension", Err: errors.New("exit status 2")}
	want := `step "build extension" failed: exit status 2`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateInit, "init"},
		{StateResolving, "resolving"},
		{StateSequencing, "sequencing"},
		{StateStaged, "staged"},
		{StateComplete, "complete"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

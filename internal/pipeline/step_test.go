// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestStep_IsValid(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, int) error { return nil }

	tests := []struct {
		name      string
		step      Step[int]
		wantValid bool
		wantErrs  int
	}{
		{
			name:      "named step with run function valid",
			step:      Step[int]{Name: "fetch sources", Run: noop},
			wantValid: true,
		},
		{
			name:      "condition optional",
			step:      Step[int]{Name: "fetch sources", Condition: func(int) Decision { return Execute("always") }, Run: noop},
			wantValid: true,
		},
		{
			name:      "empty name invalid",
			step:      Step[int]{Name: "", Run: noop},
			wantValid: false,
			wantErrs:  1,
		},
		{
			name:      "whitespace name invalid",
			step:      Step[int]{Name: "   ", Run: noop},
			wantValid: false,
			wantErrs:  1,
		},
		{
			name:      "nil run function invalid",
			step:      Step[int]{Name: "fetch sources"},
			wantValid: false,
			wantErrs:  1,
		},
		{
			name:      "empty name and nil run collect both errors",
			step:      Step[int]{},
			wantValid: false,
			wantErrs:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			valid, errs := tt.step.IsValid()
			if valid != tt.wantValid {
				t.Errorf("IsValid() = %v, want %v", valid, tt.wantValid)
			}
			if !tt.wantValid {
				if len(errs) != 1 {
					t.Fatalf("expected 1 wrapping error, got %d", len(errs))
				}
				if !errors.Is(errs[0], ErrInvalidStep) {
					t.Errorf("error should wrap ErrInvalidStep, got: %v", errs[0])
				}

				var stepErr *InvalidStepError
				if !errors.As(errs[0], &stepErr) {
					t.Fatalf("error should be *InvalidStepError, got: %T", errs[0])
				}
				if len(stepErr.FieldErrors) != tt.wantErrs {
					t.Errorf("expected %d field errors, got %d", tt.wantErrs, len(stepErr.FieldErrors))
				}
			}
		})
	}
}

func TestStep_Decide_NilCondition(t *testing.T) {
	t.Parallel()

	step := Step[int]{Name: "fetch sources", Run: func(context.Context, int) error { return nil }}

	d := step.Decide(0)
	if !d.Execute {
		t.Error("nil condition should decide execute")
	}
	if d.Reason != "unconditional" {
		t.Errorf("Reason = %q, want %q", d.Reason, "unconditional")
	}
}

func TestStep_Decide_ConsultsPayload(t *testing.T) {
	t.Parallel()

	step := Step[int]{
		Name: "build extension",
		Condition: func(n int) Decision {
			if n > 0 {
				return Execute("build enabled")
			}
			return Skip("build disabled")
		},
		Run: func(context.Context, int) error { return nil },
	}

	if d := step.Decide(1); !d.Execute {
		t.Errorf("Decide(1) = %v, want execute", d)
	}
	if d := step.Decide(0); d.Execute {
		t.Errorf("Decide(0) = %v, want skip", d)
	}
}

func TestDecision_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		decision Decision
		want     string
	}{
		{
			name:     "execute with reason",
			decision: Execute("attention build enabled"),
			want:     "execute: attention build enabled",
		},
		{
			name:     "skip with reason",
			decision: Skip("triton build disabled"),
			want:     "skip: triton build disabled",
		},
		{
			name:     "execute without reason",
			decision: Decision{Execute: true},
			want:     "execute",
		},
		{
			name:     "skip without reason",
			decision: Decision{},
			want:     "skip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.decision.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInvalidStepError_Error(t *testing.T) {
	t.Parallel()

	err := &InvalidStepError{Name: "fetch sources", FieldErrors: []error{errors.New("test")}}
	want := `invalid step "fetch sources": 1 field error(s)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestInvalidPipelineError_Unwrap(t *testing.T) {
	t.Parallel()

	err := &InvalidPipelineError{FieldErrors: []error{errors.New("test")}}
	if !errors.Is(err, ErrInvalidPipeline) {
		t.Error("Unwrap() should return ErrInvalidPipeline")
	}
}

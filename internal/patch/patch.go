// SPDX-License-Identifier: MPL-2.0

package patch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rocforge/internal/shell"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrInvalidPatch is the sentinel error wrapped by InvalidPatchError.
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrApply is the sentinel error wrapped by ApplyError.
	ErrApply = errors.New("patch application failed")
	// ErrTargetMissing indicates the patch target does not exist. There
	// is no fallback build path for an unpatched tree, so this is fatal.
	ErrTargetMissing = errors.New("patch target missing")
)

type (
	// Patch declares a single patch-file application. Patch files travel
	// with the source tree they fix, so File is usually relative to Dir
	// while Target points into the tree being remediated.
	Patch struct {
		// File is the patch file to apply. Relative paths resolve
		// against Dir.
		File string
		// Target is the file the patch rewrites. It must exist before
		// application.
		Target string
		// Dir is the working directory of the patch invocation. Empty
		// means the runner's current directory.
		Dir string
	}

	// InvalidPatchError is returned when a Patch has invalid fields.
	// It wraps ErrInvalidPatch for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidPatchError struct {
		FieldErrors []error
	}

	// ApplyError reports a patch that could not be applied. It unwraps to
	// both ErrApply (classification) and the underlying cause, so callers
	// can inspect either with errors.Is/As.
	ApplyError struct {
		Patch  string
		Target string
		Err    error
	}
)

// IsValid returns whether the Patch declaration is well-formed: both the
// patch file and the target must be non-empty.
func (p Patch) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(p.File) == "" {
		errs = append(errs, fmt.Errorf("patch file must be non-empty"))
	}
	if strings.TrimSpace(p.Target) == "" {
		errs = append(errs, fmt.Errorf("patch target must be non-empty"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidPatchError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPatchError.
func (e *InvalidPatchError) Error() string {
	return fmt.Sprintf("invalid patch: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidPatch for errors.Is() compatibility.
func (e *InvalidPatchError) Unwrap() error { return ErrInvalidPatch }

// Error implements the error interface for ApplyError.
func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply patch %q to %q: %v", e.Patch, e.Target, e.Err)
}

// Unwrap exposes the classification sentinel and the cause.
func (e *ApplyError) Unwrap() []error { return []error{ErrApply, e.Err} }

// Apply applies a patch through the runner as `patch <target> <file>`.
// The target must already exist; a missing target aborts with an
// ApplyError wrapping ErrTargetMissing. A non-clean application surfaces
// the patch(1) exit status as the ApplyError cause. Failures are always
// fatal to the caller's run.
func Apply(ctx context.Context, runner *shell.Runner, p Patch) error {
	if valid, errs := p.IsValid(); !valid {
		return errs[0]
	}

	target := p.Target
	if !filepath.IsAbs(target) && p.Dir != "" {
		target = filepath.Join(p.Dir, target)
	}

	info, err := os.Stat(target)
	switch {
	case os.IsNotExist(err):
		return &ApplyError{Patch: p.File, Target: p.Target, Err: ErrTargetMissing}
	case err != nil:
		return &ApplyError{Patch: p.File, Target: p.Target, Err: err}
	case info.IsDir():
		return &ApplyError{Patch: p.File, Target: p.Target, Err: ErrTargetMissing}
	}

	script, err := command(p)
	if err != nil {
		return &ApplyError{Patch: p.File, Target: p.Target, Err: err}
	}

	var opts []shell.Option
	if p.Dir != "" {
		opts = append(opts, shell.WithDir(p.Dir))
	}
	if err := runner.Run(ctx, script, opts...); err != nil {
		return &ApplyError{Patch: p.File, Target: p.Target, Err: err}
	}
	return nil
}

// command renders the patch invocation with shell-safe quoting.
func command(p Patch) (string, error) {
	target, err := syntax.Quote(p.Target, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("failed to quote target path: %w", err)
	}
	file, err := syntax.Quote(p.File, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("failed to quote patch file path: %w", err)
	}
	return fmt.Sprintf("patch %s %s", target, file), nil
}

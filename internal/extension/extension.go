// SPDX-License-Identifier: MPL-2.0

package extension

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"rocforge/internal/patch"
	"rocforge/internal/shell"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrInvalidSpec is the sentinel error wrapped by InvalidSpecError.
	ErrInvalidSpec = errors.New("invalid extension spec")
	// ErrFetch is the sentinel error wrapped by FetchError.
	ErrFetch = errors.New("extension fetch failed")
	// ErrBuild is the sentinel error wrapped by BuildError.
	ErrBuild = errors.New("extension build failed")
)

type (
	// Spec declares one native extension build: where its sources come
	// from, where they are checked out, and how they are built. Each
	// extension is independent; disabling one never affects another.
	Spec struct {
		// Name identifies the extension in errors and logs.
		Name string
		// Enabled gates the whole build. A disabled extension is a
		// documented no-op escape hatch, not an error.
		Enabled bool
		// RepoURL is the git repository the sources are cloned from.
		RepoURL string
		// Revision pins the checkout. Empty means the remote default
		// branch tip.
		Revision string
		// Submodules declares that the checkout needs its submodules
		// initialized before building.
		Submodules bool
		// ArchEnv is exported into the build environment, e.g.
		// GPU_ARCHS=gfx90a;gfx942 for arch-targeted kernel builds.
		// Extensions that take no targeting hints leave it empty.
		ArchEnv map[string]string
		// CloneDir is the checkout directory. Its parent is created
		// before cloning.
		CloneDir string
		// PreBuildPatch is an optional patch applied after fetch and
		// strictly before the build. A patch failure is fatal.
		PreBuildPatch *patch.Patch
		// BuildScript builds and installs the extension, run inside
		// CloneDir.
		BuildScript string
	}

	// InvalidSpecError is returned when a Spec has invalid fields.
	// It wraps ErrInvalidSpec for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidSpecError struct {
		Name        string
		FieldErrors []error
	}

	// FetchError reports a failed source fetch (clone, checkout, or
	// submodule init). It unwraps to both ErrFetch and the cause.
	FetchError struct {
		Extension string
		Err       error
	}

	// BuildError reports a failed build or install. It unwraps to both
	// ErrBuild and the cause.
	BuildError struct {
		Extension string
		Err       error
	}
)

// IsValid returns whether the Spec is well-formed. A disabled spec only
// needs a name; an enabled spec also needs a repository, a clone
// directory, and a build script.
func (s Spec) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, fmt.Errorf("extension name must be non-empty"))
	}
	if s.Enabled {
		if strings.TrimSpace(s.RepoURL) == "" {
			errs = append(errs, fmt.Errorf("enabled extension requires a repository URL"))
		}
		if strings.TrimSpace(s.CloneDir) == "" {
			errs = append(errs, fmt.Errorf("enabled extension requires a clone directory"))
		}
		if strings.TrimSpace(s.BuildScript) == "" {
			errs = append(errs, fmt.Errorf("enabled extension requires a build script"))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidSpecError{Name: s.Name, FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidSpecError.
func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid extension spec %q: %d field error(s)", e.Name, len(e.FieldErrors))
}

// Unwrap returns ErrInvalidSpec for errors.Is() compatibility.
func (e *InvalidSpecError) Unwrap() error { return ErrInvalidSpec }

// Error implements the error interface for FetchError.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch extension %q: %v", e.Extension, e.Err)
}

// Unwrap exposes the classification sentinel and the cause.
func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// Error implements the error interface for BuildError.
func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build extension %q: %v", e.Extension, e.Err)
}

// Unwrap exposes the classification sentinel and the cause.
func (e *BuildError) Unwrap() []error { return []error{ErrBuild, e.Err} }

// Build runs one extension build end to end: fetch the sources, apply
// the pre-build patch when one is declared, then build and install. A
// disabled extension returns immediately with no side effect.
//
// The pre-build patch always precedes the build invocation; its failure
// aborts the extension with the patch error unmodified so callers can
// classify it.
func Build(ctx context.Context, runner *shell.Runner, spec Spec) error {
	if valid, errs := spec.IsValid(); !valid {
		return errs[0]
	}
	if !spec.Enabled {
		return nil
	}

	if err := fetch(ctx, runner, spec); err != nil {
		return &FetchError{Extension: spec.Name, Err: err}
	}

	if spec.PreBuildPatch != nil {
		if err := patch.Apply(ctx, runner, *spec.PreBuildPatch); err != nil {
			return err
		}
	}

	if err := build(ctx, runner, spec); err != nil {
		return &BuildError{Extension: spec.Name, Err: err}
	}
	return nil
}

// fetch clones the repository into CloneDir, pins the declared revision,
// and initializes submodules when requested.
func fetch(ctx context.Context, runner *shell.Runner, spec Spec) error {
	repo, err := syntax.Quote(spec.RepoURL, syntax.LangBash)
	if err != nil {
		return fmt.Errorf("failed to quote repository URL: %w", err)
	}
	dir, err := syntax.Quote(spec.CloneDir, syntax.LangBash)
	if err != nil {
		return fmt.Errorf("failed to quote clone directory: %w", err)
	}
	parent, err := syntax.Quote(filepath.Dir(spec.CloneDir), syntax.LangBash)
	if err != nil {
		return fmt.Errorf("failed to quote clone parent directory: %w", err)
	}

	parts := []string{
		fmt.Sprintf("mkdir -p %s", parent),
		fmt.Sprintf("git clone %s %s", repo, dir),
	}
	if spec.Revision != "" {
		rev, err := syntax.Quote(spec.Revision, syntax.LangBash)
		if err != nil {
			return fmt.Errorf("failed to quote revision: %w", err)
		}
		parts = append(parts, fmt.Sprintf("git -C %s checkout %s", dir, rev))
	}
	if spec.Submodules {
		parts = append(parts, fmt.Sprintf("git -C %s submodule update --init", dir))
	}

	return runner.Run(ctx, strings.Join(parts, " && "))
}

// build runs the build script inside the checkout with the arch
// targeting environment exported.
func build(ctx context.Context, runner *shell.Runner, spec Spec) error {
	opts := []shell.Option{shell.WithDir(spec.CloneDir)}
	if len(spec.ArchEnv) > 0 {
		opts = append(opts, shell.WithEnv(spec.ArchEnv))
	}
	return runner.Run(ctx, spec.BuildScript, opts...)
}

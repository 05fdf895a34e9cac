// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"rocforge/internal/config"
	"rocforge/pkg/fspath"
	"rocforge/pkg/types"
)

var (
	// ErrInvalidLayout is the sentinel error wrapped by InvalidLayoutError.
	ErrInvalidLayout = errors.New("invalid staging layout")
	// ErrMissingArtifact is the sentinel error wrapped by MissingArtifactError.
	ErrMissingArtifact = errors.New("expected artifact missing after build")
)

// moduleNames are the native extension modules the serving engine imports.
// The build drops one shared object per module into its output directory.
var moduleNames = []string{"_C", "_punica_C"}

type (
	// Layout derives every staging path from the workspace root and the
	// target interpreter. The build system tags its output directory and
	// artifact file names with the interpreter version and platform, so
	// both must be known before any path can be computed.
	Layout struct {
		// Workspace is the serving-engine build tree root.
		Workspace types.FilesystemPath
		// Python identifies the interpreter the native build targeted.
		Python config.PythonConfig
	}

	// Artifact pairs one build output file with its runtime destination.
	Artifact struct {
		Source      types.FilesystemPath
		Destination types.FilesystemPath
	}

	// StagedArtifact records one artifact copied into place.
	StagedArtifact struct {
		Name        string
		Destination types.FilesystemPath
		SizeBytes   int64
	}

	// InvalidLayoutError is returned when a Layout has invalid fields.
	// It wraps ErrInvalidLayout for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidLayoutError struct {
		FieldErrors []error
	}

	// MissingArtifactError is returned when an expected artifact is absent
	// or empty after the build reported success. It unwraps to both
	// ErrMissingArtifact and the underlying cause when one exists.
	MissingArtifactError struct {
		// Artifact is the source path the artifact was expected at.
		Artifact types.FilesystemPath
		// Err is the underlying filesystem error; nil when the artifact
		// exists but is empty.
		Err error
	}
)

// IsValid returns whether the Layout is well-formed. Both the workspace
// and the interpreter description are required because every staging path
// derives from them.
func (l Layout) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := l.Workspace.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := l.Python.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidLayoutError{FieldErrors: errs}}
	}
	return true, nil
}

// ABI returns the artifact file name tag for the target interpreter,
// e.g. "cpython-39-x86_64-linux-gnu" for Python 3.9 on linux-x86_64.
func (l Layout) ABI() string {
	return fmt.Sprintf("cpython-%s-%s-%s-gnu",
		l.Python.Version.Compact(), l.Python.Platform.Arch(), l.Python.Platform.OS())
}

// SourceDir returns the build system's output directory for the target
// interpreter, e.g. "<workspace>/build/lib.linux-x86_64-cpython-39/vllm".
func (l Layout) SourceDir() types.FilesystemPath {
	tag := fmt.Sprintf("lib.%s-cpython-%s", l.Python.Platform, l.Python.Version.Compact())
	return fspath.JoinStr(l.Workspace, "build", tag, "vllm")
}

// DestinationDir returns the runtime-importable package directory the
// artifacts are staged into.
func (l Layout) DestinationDir() types.FilesystemPath {
	return fspath.JoinStr(l.Workspace, "vllm")
}

// Artifacts returns the fixed artifact pairs for this layout, one per
// native extension module, in stable order.
func (l Layout) Artifacts() []Artifact {
	abi := l.ABI()
	src := l.SourceDir()
	dst := l.DestinationDir()
	artifacts := make([]Artifact, len(moduleNames))
	for i, name := range moduleNames {
		file := fmt.Sprintf("%s.%s.so", name, abi)
		artifacts[i] = Artifact{
			Source:      fspath.JoinStr(src, file),
			Destination: fspath.JoinStr(dst, file),
		}
	}
	return artifacts
}

// Error implements the error interface for InvalidLayoutError.
func (e *InvalidLayoutError) Error() string {
	return fmt.Sprintf("invalid staging layout: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLayout for errors.Is() compatibility.
func (e *InvalidLayoutError) Unwrap() error { return ErrInvalidLayout }

// Error implements the error interface for MissingArtifactError.
func (e *MissingArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("expected artifact %q missing after build: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("expected artifact %q is empty after build", e.Artifact)
}

// Unwrap exposes the classification sentinel and the cause when one exists.
func (e *MissingArtifactError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMissingArtifact}
	}
	return []error{ErrMissingArtifact, e.Err}
}

// Stage copies every expected artifact from the build output directory
// into the runtime-importable directory, overwriting stale artifacts from
// previous runs. An absent or zero-size artifact fails the run: the build
// reported success, so an empty output means it silently produced nothing.
//
// Artifacts are staged in order with no cleanup on failure; the workspace
// is left as-is for inspection.
func Stage(l Layout) ([]StagedArtifact, error) {
	if valid, errs := l.IsValid(); !valid {
		return nil, errs[0]
	}
	if err := os.MkdirAll(l.DestinationDir().String(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging destination: %w", err)
	}

	artifacts := l.Artifacts()
	staged := make([]StagedArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		info, err := os.Stat(a.Source.String())
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &MissingArtifactError{Artifact: a.Source, Err: err}
			}
			return nil, fmt.Errorf("failed to stat artifact %q: %w", a.Source, err)
		}
		if info.Size() == 0 {
			return nil, &MissingArtifactError{Artifact: a.Source}
		}
		if err := CopyFile(a.Source, a.Destination); err != nil {
			return nil, fmt.Errorf("failed to stage artifact %q: %w", a.Source, err)
		}
		staged = append(staged, StagedArtifact{
			Name:        filepath.Base(a.Source.String()),
			Destination: a.Destination,
			SizeBytes:   info.Size(),
		})
	}
	return staged, nil
}

// CopyFile copies a single file, creating or truncating the destination
// with the source's permission bits.
func CopyFile(src, dst types.FilesystemPath) error {
	srcFile, err := os.Open(src.String())
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstFile, err := os.OpenFile(dst.String(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return nil
}

// CopyTree recursively copies a directory tree. Destination directories
// inherit the source's permission bits; existing files are overwritten.
func CopyTree(src, dst types.FilesystemPath) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if err := dst.Validate(); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src.String())
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}

	if err := os.MkdirAll(dst.String(), srcInfo.Mode()); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := os.ReadDir(src.String())
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, entry := range entries {
		srcPath := fspath.JoinStr(src, entry.Name())
		dstPath := fspath.JoinStr(dst, entry.Name())

		if entry.IsDir() {
			if err := CopyTree(srcPath, dstPath); err != nil {
				return err
			}
		} else {
			if err := CopyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}

	return nil
}

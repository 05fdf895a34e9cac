// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"rocforge/pkg/archspec"
	"rocforge/pkg/types"
)

var (
	// ErrInvalidImageRef is the sentinel error wrapped by InvalidImageRefError.
	ErrInvalidImageRef = errors.New("invalid base image reference")
	// ErrInvalidRepoURL is the sentinel error wrapped by InvalidRepoURLError.
	ErrInvalidRepoURL = errors.New("invalid repository URL")
	// ErrInvalidRevision is the sentinel error wrapped by InvalidRevisionError.
	ErrInvalidRevision = errors.New("invalid revision")
	// ErrInvalidPythonVersion is the sentinel error wrapped by InvalidPythonVersionError.
	ErrInvalidPythonVersion = errors.New("invalid python version")
	// ErrInvalidPlatformTag is the sentinel error wrapped by InvalidPlatformTagError.
	ErrInvalidPlatformTag = errors.New("invalid platform tag")
	// ErrMissingArchTargets is returned when the attention kernel build is
	// enabled but no GPU architecture targets are declared.
	ErrMissingArchTargets = errors.New("attention kernel build requires at least one gfx architecture target")
	// ErrInvalidAttentionConfig is the sentinel error wrapped by InvalidAttentionConfigError.
	ErrInvalidAttentionConfig = errors.New("invalid attention config")
	// ErrInvalidTritonConfig is the sentinel error wrapped by InvalidTritonConfigError.
	ErrInvalidTritonConfig = errors.New("invalid triton config")
	// ErrInvalidEngineConfig is the sentinel error wrapped by InvalidEngineConfigError.
	ErrInvalidEngineConfig = errors.New("invalid engine config")
	// ErrInvalidPythonConfig is the sentinel error wrapped by InvalidPythonConfigError.
	ErrInvalidPythonConfig = errors.New("invalid python config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ImageRef identifies a base runtime image, e.g.
	// "rocm/pytorch:rocm6.0_ubuntu20.04_py3.9_pytorch_2.1.1".
	// Defined locally to avoid coupling config to internal/variant;
	// the orchestrator casts to variant.Variant at the boundary.
	// A valid reference must be non-empty and not whitespace-only.
	ImageRef string

	// InvalidImageRefError is returned when an ImageRef value is empty or
	// whitespace-only. It wraps ErrInvalidImageRef for errors.Is() compatibility.
	InvalidImageRefError struct {
		Value ImageRef
	}

	// RepoURL identifies a git repository to clone.
	// A valid URL must be non-empty and not whitespace-only; any transport
	// git understands is accepted.
	RepoURL string

	// InvalidRepoURLError is returned when a RepoURL value is empty or
	// whitespace-only. It wraps ErrInvalidRepoURL for errors.Is() compatibility.
	InvalidRepoURLError struct {
		Value RepoURL
	}

	// Revision pins a git revision (commit, tag, or branch).
	// The zero value ("") is valid and means "remote default branch tip".
	// Non-zero values must not be whitespace-only.
	Revision string

	// InvalidRevisionError is returned when a Revision value is non-empty
	// but whitespace-only. It wraps ErrInvalidRevision for errors.Is().
	InvalidRevisionError struct {
		Value Revision
	}

	// PythonVersion is a dotted interpreter version such as "3.9".
	// It drives conda environment and build output path derivation, so a
	// valid value must be two or more dot-separated numeric components.
	PythonVersion string

	// InvalidPythonVersionError is returned when a PythonVersion value is
	// not in dotted numeric form. It wraps ErrInvalidPythonVersion.
	InvalidPythonVersionError struct {
		Value PythonVersion
	}

	// PlatformTag is an "<os>-<arch>" build platform tag such as
	// "linux-x86_64". It drives the platform-tagged build output directory
	// and the artifact ABI suffix.
	PlatformTag string

	// InvalidPlatformTagError is returned when a PlatformTag value is not
	// in "<os>-<arch>" form. It wraps ErrInvalidPlatformTag.
	InvalidPlatformTagError struct {
		Value PlatformTag
	}

	// InvalidAttentionConfigError is returned when an AttentionConfig has
	// invalid fields. It wraps ErrInvalidAttentionConfig for errors.Is()
	// compatibility and collects field-level validation errors.
	InvalidAttentionConfigError struct {
		FieldErrors []error
	}

	// InvalidTritonConfigError is returned when a TritonConfig has invalid
	// fields. It wraps ErrInvalidTritonConfig for errors.Is() compatibility
	// and collects field-level validation errors.
	InvalidTritonConfigError struct {
		FieldErrors []error
	}

	// InvalidEngineConfigError is returned when an EngineConfig has invalid
	// fields. It wraps ErrInvalidEngineConfig for errors.Is() compatibility
	// and collects field-level validation errors.
	InvalidEngineConfigError struct {
		FieldErrors []error
	}

	// InvalidPythonConfigError is returned when a PythonConfig has invalid
	// fields. It wraps ErrInvalidPythonConfig for errors.Is() compatibility
	// and collects field-level validation errors.
	InvalidPythonConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the resolved provisioning configuration. It is immutable
	// once resolved: resolving identical declared input twice yields
	// identical values.
	Config struct {
		// BaseVariant selects the base runtime image the environment is
		// provisioned on top of. Variant-gated remediation keys off it.
		BaseVariant ImageRef `json:"base_variant" mapstructure:"base_variant"`
		// GfxArchs is the ordered GPU architecture target list exported to
		// native kernel builds (GPU_ARCHS).
		GfxArchs archspec.List `json:"gfx_archs" mapstructure:"gfx_archs"`
		// MountPath is the workspace root for extension library checkouts.
		MountPath types.FilesystemPath `json:"mount_path" mapstructure:"mount_path"`
		// WorkspaceDir is the serving-engine build tree.
		WorkspaceDir types.FilesystemPath `json:"workspace_dir" mapstructure:"workspace_dir"`
		// Attention configures the flash-attention kernel extension build.
		Attention AttentionConfig `json:"attention" mapstructure:"attention"`
		// Triton configures the Triton JIT compiler toolchain build.
		Triton TritonConfig `json:"triton" mapstructure:"triton"`
		// Engine configures the serving engine source tree and requirements.
		Engine EngineConfig `json:"engine" mapstructure:"engine"`
		// Python describes the target interpreter for staging path derivation.
		Python PythonConfig `json:"python" mapstructure:"python"`
	}

	// AttentionConfig configures the flash-attention kernel extension.
	AttentionConfig struct {
		// Build enables the extension; false skips fetch, patch, and build.
		Build bool `json:"build" mapstructure:"build"`
		// RepoURL is the kernel library repository. Required when Build is true.
		RepoURL RepoURL `json:"repo_url" mapstructure:"repo_url"`
		// Revision pins the checkout; empty means remote default branch tip.
		Revision Revision `json:"revision" mapstructure:"revision"`
	}

	// TritonConfig configures the Triton JIT compiler toolchain.
	TritonConfig struct {
		// Build enables the toolchain build; false skips fetch and build.
		Build bool `json:"build" mapstructure:"build"`
		// RepoURL is the toolchain repository. Required when Build is true.
		RepoURL RepoURL `json:"repo_url" mapstructure:"repo_url"`
	}

	// EngineConfig configures the serving engine build inputs.
	EngineConfig struct {
		// SourceDir is the engine source tree copied into the workspace.
		SourceDir types.FilesystemPath `json:"source_dir" mapstructure:"source_dir"`
		// Requirements is the pip requirements file, relative to the workspace.
		Requirements types.FilesystemPath `json:"requirements" mapstructure:"requirements"`
	}

	// PythonConfig describes the target interpreter. Version and Platform
	// together determine where the native build drops its artifacts.
	PythonConfig struct {
		// Version is the dotted interpreter version, e.g. "3.9".
		Version PythonVersion `json:"version" mapstructure:"version"`
		// Platform is the "<os>-<arch>" build platform tag.
		Platform PlatformTag `json:"platform" mapstructure:"platform"`
	}
)

// String returns the string representation of the ImageRef.
func (r ImageRef) String() string { return string(r) }

// IsValid returns whether the ImageRef is valid.
// A valid reference must be non-empty and not whitespace-only.
func (r ImageRef) IsValid() (bool, []error) {
	if strings.TrimSpace(string(r)) == "" {
		return false, []error{&InvalidImageRefError{Value: r}}
	}
	return true, nil
}

// Error implements the error interface for InvalidImageRefError.
func (e *InvalidImageRefError) Error() string {
	return fmt.Sprintf("invalid base image reference %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidImageRef for errors.Is() compatibility.
func (e *InvalidImageRefError) Unwrap() error { return ErrInvalidImageRef }

// String returns the string representation of the RepoURL.
func (u RepoURL) String() string { return string(u) }

// IsValid returns whether the RepoURL is valid.
// A valid URL must be non-empty and not whitespace-only.
func (u RepoURL) IsValid() (bool, []error) {
	if strings.TrimSpace(string(u)) == "" {
		return false, []error{&InvalidRepoURLError{Value: u}}
	}
	return true, nil
}

// Error implements the error interface for InvalidRepoURLError.
func (e *InvalidRepoURLError) Error() string {
	return fmt.Sprintf("invalid repository URL %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidRepoURL for errors.Is() compatibility.
func (e *InvalidRepoURLError) Unwrap() error { return ErrInvalidRepoURL }

// String returns the string representation of the Revision.
func (r Revision) String() string { return string(r) }

// IsValid returns whether the Revision is valid.
// The zero value ("") is valid (means "remote default branch tip").
// Non-zero values must not be whitespace-only.
func (r Revision) IsValid() (bool, []error) {
	if r == "" {
		return true, nil
	}
	if strings.TrimSpace(string(r)) == "" {
		return false, []error{&InvalidRevisionError{Value: r}}
	}
	return true, nil
}

// Error implements the error interface for InvalidRevisionError.
func (e *InvalidRevisionError) Error() string {
	return fmt.Sprintf("invalid revision %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidRevision for errors.Is() compatibility.
func (e *InvalidRevisionError) Unwrap() error { return ErrInvalidRevision }

// String returns the string representation of the PythonVersion.
func (v PythonVersion) String() string { return string(v) }

// Compact returns the version with the dots stripped ("3.9" -> "39"),
// the form interpreter build tags use.
func (v PythonVersion) Compact() string {
	return strings.ReplaceAll(string(v), ".", "")
}

// IsValid returns whether the PythonVersion is valid.
// A valid version is two or more dot-separated numeric components.
func (v PythonVersion) IsValid() (bool, []error) {
	parts := strings.Split(string(v), ".")
	if len(parts) < 2 {
		return false, []error{&InvalidPythonVersionError{Value: v}}
	}
	for _, part := range parts {
		if part == "" {
			return false, []error{&InvalidPythonVersionError{Value: v}}
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false, []error{&InvalidPythonVersionError{Value: v}}
			}
		}
	}
	return true, nil
}

// Error implements the error interface for InvalidPythonVersionError.
func (e *InvalidPythonVersionError) Error() string {
	return fmt.Sprintf("invalid python version %q (want dotted numeric form, e.g. \"3.9\")", e.Value)
}

// Unwrap returns ErrInvalidPythonVersion for errors.Is() compatibility.
func (e *InvalidPythonVersionError) Unwrap() error { return ErrInvalidPythonVersion }

// String returns the string representation of the PlatformTag.
func (p PlatformTag) String() string { return string(p) }

// OS returns the operating system component of the tag ("linux").
func (p PlatformTag) OS() string {
	os, _, _ := strings.Cut(string(p), "-")
	return os
}

// Arch returns the architecture component of the tag ("x86_64").
func (p PlatformTag) Arch() string {
	_, arch, _ := strings.Cut(string(p), "-")
	return arch
}

// IsValid returns whether the PlatformTag is valid.
// A valid tag is "<os>-<arch>" with both components non-empty.
func (p PlatformTag) IsValid() (bool, []error) {
	os, arch, ok := strings.Cut(string(p), "-")
	if !ok || os == "" || arch == "" {
		return false, []error{&InvalidPlatformTagError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPlatformTagError.
func (e *InvalidPlatformTagError) Error() string {
	return fmt.Sprintf("invalid platform tag %q (want <os>-<arch> form, e.g. \"linux-x86_64\")", e.Value)
}

// Unwrap returns ErrInvalidPlatformTag for errors.Is() compatibility.
func (e *InvalidPlatformTagError) Unwrap() error { return ErrInvalidPlatformTag }

// IsValid returns whether the AttentionConfig has valid fields.
// RepoURL is validated only when Build is true (a disabled extension may
// leave its repository unset); Revision validates its own zero value.
func (c AttentionConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Build {
		if valid, fieldErrs := c.RepoURL.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := c.Revision.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidAttentionConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidAttentionConfigError.
func (e *InvalidAttentionConfigError) Error() string {
	return fmt.Sprintf("invalid attention config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidAttentionConfig for errors.Is() compatibility.
func (e *InvalidAttentionConfigError) Unwrap() error { return ErrInvalidAttentionConfig }

// IsValid returns whether the TritonConfig has valid fields.
// RepoURL is validated only when Build is true.
func (c TritonConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Build {
		if valid, fieldErrs := c.RepoURL.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidTritonConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidTritonConfigError.
func (e *InvalidTritonConfigError) Error() string {
	return fmt.Sprintf("invalid triton config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidTritonConfig for errors.Is() compatibility.
func (e *InvalidTritonConfigError) Unwrap() error { return ErrInvalidTritonConfig }

// IsValid returns whether the EngineConfig has valid fields.
// Both SourceDir and Requirements are required.
func (c EngineConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.SourceDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Requirements.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidEngineConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidEngineConfigError.
func (e *InvalidEngineConfigError) Error() string {
	return fmt.Sprintf("invalid engine config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidEngineConfig for errors.Is() compatibility.
func (e *InvalidEngineConfigError) Unwrap() error { return ErrInvalidEngineConfig }

// IsValid returns whether the PythonConfig has valid fields.
// Both Version and Platform are required because staging path derivation
// depends on them.
func (c PythonConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Version.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Platform.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidPythonConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPythonConfigError.
func (e *InvalidPythonConfigError) Error() string {
	return fmt.Sprintf("invalid python config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidPythonConfig for errors.Is() compatibility.
func (e *InvalidPythonConfigError) Unwrap() error { return ErrInvalidPythonConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to each field's and sub-component's IsValid(), then checks
// the one cross-field rule: an empty architecture list while the attention
// kernel build is enabled is a configuration error, because that build has
// no default target to fall back to.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.BaseVariant.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.GfxArchs.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.MountPath.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.WorkspaceDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Attention.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Triton.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Engine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Python.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Attention.Build && len(c.GfxArchs) == 0 {
		errs = append(errs, ErrMissingArchTargets)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Validate is the single-error convenience form of IsValid.
func (c Config) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

// Snapshot returns a one-line summary of the decisions the configuration
// encodes, attached to step errors for postmortem context.
func (c Config) Snapshot() string {
	return fmt.Sprintf("variant=%s archs=[%s] attention=%t triton=%t mount=%s workspace=%s",
		c.BaseVariant, c.GfxArchs.Join(), c.Attention.Build, c.Triton.Build, c.MountPath, c.WorkspaceDir)
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseVariant:  "rocm/pytorch:rocm6.0_ubuntu20.04_py3.9_pytorch_2.1.1",
		GfxArchs:     archspec.List{"gfx90a", "gfx942"},
		MountPath:    "/app",
		WorkspaceDir: "/vllm-workspace",
		Attention: AttentionConfig{
			Build:    true,
			RepoURL:  "https://github.com/ROCm/flash-attention.git",
			Revision: "ae7928c",
		},
		Triton: TritonConfig{
			Build:   true,
			RepoURL: "https://github.com/ROCm/triton.git",
		},
		Engine: EngineConfig{
			SourceDir:    ".",
			Requirements: "requirements-rocm.txt",
		},
		Python: PythonConfig{
			Version:  "3.9",
			Platform: "linux-x86_64",
		},
	}
}

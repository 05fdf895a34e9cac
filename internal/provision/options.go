// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"rocforge/internal/shell"
	"rocforge/pkg/types"
)

type (
	// Option configures a provisioning run.
	Option func(*settings)

	// settings holds run configuration assembled from options.
	settings struct {
		logger      *log.Logger
		shell       *shell.Runner
		runID       string
		condaPrefix types.FilesystemPath
		rocmDir     types.FilesystemPath
		getenv      func(string) string
	}
)

// WithLogger sets the logger for pipeline and step events.
func WithLogger(logger *log.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithShell sets the script runner steps execute their commands through.
// Tests inject a runner with an exec-handler recorder here.
func WithShell(runner *shell.Runner) Option {
	return func(s *settings) {
		s.shell = runner
	}
}

// WithRunID pins the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(s *settings) {
		s.runID = id
	}
}

// WithCondaPrefix sets the conda installation root the base image ships
// (default /opt/conda). Variant remediation paths derive from it.
func WithCondaPrefix(prefix types.FilesystemPath) Option {
	return func(s *settings) {
		s.condaPrefix = prefix
	}
}

// WithRocmDir sets the ROCm installation root (default /opt/rocm).
func WithRocmDir(dir types.FilesystemPath) Option {
	return func(s *settings) {
		s.rocmDir = dir
	}
}

// WithGetenv sets the base environment source the runtime environment
// step extends (default os.Getenv). Tests pass a hermetic lookup.
func WithGetenv(getenv func(string) string) Option {
	return func(s *settings) {
		s.getenv = getenv
	}
}

// newSettings applies options over the defaults.
func newSettings(opts ...Option) settings {
	s := settings{
		logger:      log.NewWithOptions(os.Stderr, log.Options{Prefix: "rocforge"}),
		condaPrefix: "/opt/conda",
		rocmDir:     "/opt/rocm",
		getenv:      os.Getenv,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.shell == nil {
		s.shell = shell.New()
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	return s
}

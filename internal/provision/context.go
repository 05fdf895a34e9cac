// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"

	"github.com/charmbracelet/log"

	"rocforge/internal/config"
	"rocforge/internal/extension"
	"rocforge/internal/patch"
	"rocforge/internal/shell"
	"rocforge/internal/stage"
	"rocforge/internal/variant"
	"rocforge/pkg/types"
)

// ErrNilConfig is returned when Run is given no resolved configuration.
var ErrNilConfig = errors.New("provisioning requires a resolved config")

// Context is the run payload threaded through every step. Steps read the
// resolved inputs from it and record their outputs on it. A Context
// belongs to exactly one run.
type Context struct {
	// Config is the resolved, validated provisioning configuration.
	Config *config.Config
	// Variant classifies the base image for remediation gating.
	Variant variant.Variant
	// Shell runs each step's command sequences.
	Shell *shell.Runner
	// Logger reports step-level events.
	Logger *log.Logger
	// RunID identifies this run in the manifest.
	RunID string
	// Paths locates everything the steps touch.
	Paths Paths

	// Env is the composed runtime environment. The runtime environment
	// step sets it; every later build runs with it injected.
	Env map[string]string
	// EnvFile is where the environment was persisted.
	EnvFile types.FilesystemPath
	// Staged holds the artifacts the staging step copied into place.
	Staged []stage.StagedArtifact
	// ManifestPath is where the provisioning record was written.
	ManifestPath types.FilesystemPath

	getenv func(string) string
}

// newContext resolves the run payload: the configuration is validated,
// the base image variant classified, and every path derived. No step has
// executed yet when it returns.
func newContext(cfg *config.Config, set settings) (*Context, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Context{
		Config:  cfg,
		Variant: variant.Variant(cfg.BaseVariant),
		Shell:   set.shell,
		Logger:  set.logger,
		RunID:   set.runID,
		Paths: Paths{
			CondaPrefix: set.condaPrefix,
			RocmDir:     set.rocmDir,
			Mount:       cfg.MountPath,
			Workspace:   cfg.WorkspaceDir,
		},
		getenv: set.getenv,
	}, nil
}

// attentionSpec assembles the flash-attention kernel build: pinned
// revision, submodule init, GPU arch targeting, and the variant-gated
// hipify translator patch applied before compiling.
func (c *Context) attentionSpec() extension.Spec {
	spec := extension.Spec{
		Name:        "flash-attention",
		Enabled:     c.Config.Attention.Build,
		RepoURL:     c.Config.Attention.RepoURL.String(),
		Revision:    c.Config.Attention.Revision.String(),
		Submodules:  true,
		CloneDir:    c.Paths.AttentionCloneDir().String(),
		BuildScript: "python3 setup.py install",
	}
	if len(c.Config.GfxArchs) > 0 {
		spec.ArchEnv = map[string]string{"GPU_ARCHS": c.Config.GfxArchs.Join()}
	}
	if c.Variant.NeedsHipifyPatch() {
		// The patch file travels with the flash-attention checkout.
		spec.PreBuildPatch = &patch.Patch{
			File:   "hipify_patch.patch",
			Target: c.Paths.HipifyTranslator(c.Config.Python).String(),
			Dir:    spec.CloneDir,
		}
	}
	return spec
}

// tritonSpec assembles the Triton toolchain build. The base image's
// preinstalled triton is uninstalled first so the ROCm build replaces it.
func (c *Context) tritonSpec() extension.Spec {
	return extension.Spec{
		Name:        "triton",
		Enabled:     c.Config.Triton.Build,
		RepoURL:     c.Config.Triton.RepoURL.String(),
		CloneDir:    c.Paths.TritonCloneDir().String(),
		BuildScript: "pip3 uninstall -y triton && cd python && pip3 install .",
	}
}

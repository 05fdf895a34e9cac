// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"rocforge/internal/extension"
	"rocforge/internal/patch"
	"rocforge/internal/pipeline"
	"rocforge/internal/runtimeenv"
	"rocforge/internal/shell"
	"rocforge/internal/stage"
)

// Step names in canonical order. Exported for plan rendering and tests.
const (
	StepSystemPackages = "system packages"
	StepAttention      = "attention kernels"
	StepNumpyCleanup   = "numpy metadata cleanup"
	StepTriton         = "triton toolchain"
	StepMaterialize    = "workspace materialization"
	StepRuntimeEnv     = "runtime environment"
	StepEngineBuild    = "engine build"
	StepStaging        = "artifact staging"
)

// Plan returns the eight provisioning steps in canonical order. The plan
// is the same for every configuration; conditions decide at run time
// which steps execute.
func Plan() []pipeline.Step[*Context] {
	return []pipeline.Step[*Context]{
		systemPackagesStep(),
		attentionStep(),
		numpyCleanupStep(),
		tritonStep(),
		materializeStep(),
		runtimeEnvStep(),
		engineBuildStep(),
		stagingStep(),
	}
}

// systemPackagesStep installs the build prerequisites the base image
// lacks and the python tooling the engine depends on.
func systemPackagesStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepSystemPackages,
		Run: func(ctx context.Context, c *Context) error {
			script := strings.Join([]string{
				"apt-get update",
				"apt-get install -y sqlite3 libsqlite3-dev libfmt-dev",
				"python3 -m pip install --upgrade pip",
				"python3 -m pip install --no-cache-dir fastapi ninja tokenizers pandas",
			}, " && ")
			c.Logger.Debug("installing system packages", "script", script)
			return c.Shell.Run(ctx, script)
		},
	}
}

func attentionStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepAttention,
		Condition: func(c *Context) pipeline.Decision {
			if !c.Config.Attention.Build {
				return pipeline.Skip("attention kernel build disabled")
			}
			return pipeline.Execute("attention.build is enabled")
		},
		Run: func(ctx context.Context, c *Context) error {
			return extension.Build(ctx, c.Shell, c.attentionSpec())
		},
	}
}

// numpyCleanupStep removes the stale numpy metadata some variants ship,
// which breaks later package upgrades. Removal is idempotent: an
// already-absent directory is success.
func numpyCleanupStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepNumpyCleanup,
		Condition: func(c *Context) pipeline.Decision {
			if !c.Variant.NeedsNumpyCleanup() {
				return pipeline.Skip("variant ships no stale numpy metadata")
			}
			return pipeline.Execute("variant ships stale numpy metadata")
		},
		Run: func(_ context.Context, c *Context) error {
			dir := c.Paths.StaleNumpyMetadata(c.Config.Python)
			if err := os.RemoveAll(dir.String()); err != nil {
				return fmt.Errorf("failed to remove stale numpy metadata: %w", err)
			}
			c.Logger.Debug("stale numpy metadata removed", "dir", dir)
			return nil
		},
	}
}

func tritonStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepTriton,
		Condition: func(c *Context) pipeline.Decision {
			if !c.Config.Triton.Build {
				return pipeline.Skip("triton toolchain build disabled")
			}
			return pipeline.Execute("triton.build is enabled")
		},
		Run: func(ctx context.Context, c *Context) error {
			return extension.Build(ctx, c.Shell, c.tritonSpec())
		},
	}
}

// materializeStep copies the engine source tree into the workspace and
// refreshes the pip tooling the build needs.
func materializeStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepMaterialize,
		Run: func(ctx context.Context, c *Context) error {
			if err := stage.CopyTree(c.Config.Engine.SourceDir, c.Paths.Workspace); err != nil {
				return fmt.Errorf("failed to materialize engine source: %w", err)
			}
			c.Logger.Debug("engine source materialized", "source", c.Config.Engine.SourceDir, "workspace", c.Paths.Workspace)
			return c.Shell.Run(ctx, "python3 -m pip install --upgrade pip numba")
		},
	}
}

// runtimeEnvStep composes the runtime environment and persists it in the
// workspace. Every later build runs with the composed variables injected.
func runtimeEnvStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepRuntimeEnv,
		Run: func(_ context.Context, c *Context) error {
			c.Env = runtimeenv.Compose(c.getenv)
			path, err := runtimeenv.WriteEnvFile(c.Paths.Workspace, c.Env)
			if err != nil {
				return err
			}
			c.EnvFile = path
			c.Logger.Debug("runtime environment persisted", "file", path)
			return nil
		},
	}
}

// engineBuildStep builds and installs the serving engine inside the
// workspace: requirements install, the variant-gated bf16 header patch,
// then the native build. It runs regardless of the extension flags; the
// engine carries a pure-python attention fallback.
func engineBuildStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepEngineBuild,
		Run: func(ctx context.Context, c *Context) error {
			reqs, err := syntax.Quote(c.Config.Engine.Requirements.String(), syntax.LangBash)
			if err != nil {
				return fmt.Errorf("failed to quote requirements path: %w", err)
			}
			inWorkspace := shell.WithDir(c.Paths.Workspace.String())
			withEnv := shell.WithEnv(c.Env)

			c.Logger.Debug("building engine", "requirements", reqs, "workspace", c.Paths.Workspace)
			if err := c.Shell.Run(ctx, "pip install -U -r "+reqs, inWorkspace, withEnv); err != nil {
				return &extension.BuildError{Extension: "engine", Err: err}
			}

			if c.Variant.NeedsBF16Patch() {
				// The patch file travels with the engine source tree.
				bf16 := patch.Patch{
					File:   "rocm_patch/rocm_bf16.patch",
					Target: c.Paths.BF16Header().String(),
					Dir:    c.Paths.Workspace.String(),
				}
				if err := patch.Apply(ctx, c.Shell, bf16); err != nil {
					return err
				}
			}

			if err := c.Shell.Run(ctx, "python3 setup.py install", inWorkspace, withEnv); err != nil {
				return &extension.BuildError{Extension: "engine", Err: err}
			}
			return nil
		},
	}
}

// stagingStep relocates the build outputs into the runtime tree and
// writes the provisioning manifest.
func stagingStep() pipeline.Step[*Context] {
	return pipeline.Step[*Context]{
		Name: StepStaging,
		Run: func(_ context.Context, c *Context) error {
			staged, err := stage.Stage(stage.Layout{
				Workspace: c.Paths.Workspace,
				Python:    c.Config.Python,
			})
			if err != nil {
				return err
			}
			c.Staged = staged

			manifest := stage.NewManifest(c.RunID, c.Config.BaseVariant, staged, c.Env)
			path, err := stage.WriteManifest(c.Paths.Workspace, manifest)
			if err != nil {
				return err
			}
			c.ManifestPath = path
			c.Logger.Info("artifacts staged", "count", len(staged), "manifest", path)
			return nil
		},
	}
}

// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"time"

	"rocforge/internal/config"
	"rocforge/internal/pipeline"
	"rocforge/internal/stage"
	"rocforge/pkg/types"
)

type (
	// Result is the outcome of a completed provisioning run.
	Result struct {
		// RunID identifies the run; the manifest records the same ID.
		RunID string
		// State is the pipeline's terminal state.
		State pipeline.State
		// Staged lists the artifacts placed in the runtime tree.
		Staged []stage.StagedArtifact
		// EnvFile is the persisted shell-sourceable environment file.
		EnvFile types.FilesystemPath
		// ManifestPath is the provisioning record.
		ManifestPath types.FilesystemPath
		// Steps reports per-step outcomes in declaration order.
		Steps []pipeline.StepResult
		// Duration is the wall time of the whole run.
		Duration time.Duration
	}

	// StepPlan is one step's projected decision for a configuration,
	// produced without executing anything.
	StepPlan struct {
		Name     string
		Decision pipeline.Decision
	}
)

// Run provisions the environment described by cfg: resolve the run
// payload, execute the eight-step plan in order, and report what was
// staged. The first failure aborts the run with no retry and no rollback;
// the returned error carries the failing step name and the configuration
// snapshot, with the cause unmodified underneath.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Result, error) {
	set := newSettings(opts...)

	runner, err := pipeline.New("rocforge", Plan(),
		pipeline.WithLogger[*Context](set.logger),
		pipeline.WithSnapshot[*Context](func(c *Context) string { return c.Config.Snapshot() }),
	)
	if err != nil {
		return nil, err
	}

	res, err := runner.Run(ctx, func(context.Context) (*Context, error) {
		return newContext(cfg, set)
	})
	if err != nil {
		return nil, err
	}

	payload := res.Payload
	return &Result{
		RunID:        payload.RunID,
		State:        runner.State(),
		Staged:       payload.Staged,
		EnvFile:      payload.EnvFile,
		ManifestPath: payload.ManifestPath,
		Steps:        res.Steps,
		Duration:     res.Duration,
	}, nil
}

// Describe resolves the plan for cfg without executing anything: each
// step is listed with the decision it would take. Conditions are pure,
// so the projection matches what Run would do for the same inputs.
func Describe(cfg *config.Config, opts ...Option) ([]StepPlan, error) {
	set := newSettings(opts...)
	c, err := newContext(cfg, set)
	if err != nil {
		return nil, err
	}

	steps := Plan()
	plans := make([]StepPlan, len(steps))
	for i, s := range steps {
		plans[i] = StepPlan{Name: s.Name, Decision: s.Decide(c)}
	}
	return plans, nil
}

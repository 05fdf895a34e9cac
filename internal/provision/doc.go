// SPDX-License-Identifier: MPL-2.0

// Package provision composes and drives the provisioning pipeline that
// turns a base ROCm runtime image into a working GPU-accelerated serving
// environment.
//
// The pipeline is a fixed list of eight steps executed strictly in order:
// system packages, the flash-attention kernel build, variant-gated numpy
// metadata cleanup, the Triton toolchain build, workspace materialization,
// runtime environment composition, the serving engine build, and artifact
// staging. Each step's condition derives from the resolved configuration
// and the detected base image variant, and is evaluated immediately before
// the step would run.
//
// The main entry point is Run:
//
//	cfg, _ := provider.Load(ctx, config.LoadOptions{})
//	result, err := provision.Run(ctx, cfg)
//	// result.Staged lists the artifacts now in the runtime tree
//
// A failing step aborts the run with no retry and no rollback; the
// workspace is left as-is for inspection.
package provision

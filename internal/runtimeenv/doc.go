// SPDX-License-Identifier: MPL-2.0

// Package runtimeenv owns the environment variables the provisioned
// serving environment depends on: the accelerator toolchain lookup paths,
// the library and include search paths, and the engine's feature toggles.
//
// The set is composed once per run, injected into every subsequent step,
// and persisted as a shell-sourceable file in the workspace so processes
// outside the pipeline can inherit the same environment.
package runtimeenv

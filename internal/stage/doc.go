// SPDX-License-Identifier: MPL-2.0

// Package stage relocates compiled native-extension artifacts from the
// build system's platform-tagged output directory into the package tree
// the runtime imports from, and records the run in a TOML manifest.
//
// Every path derives from the workspace root plus the target interpreter:
// the build drops its output under build/lib.<platform>-cpython-<NN>/ and
// names each shared object with the interpreter ABI tag. An artifact that
// is absent or empty after the build reported success fails the run with
// MissingArtifactError. Staging overwrites stale artifacts from previous
// runs and never cleans up on failure.
package stage

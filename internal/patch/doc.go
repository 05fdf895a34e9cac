// SPDX-License-Identifier: MPL-2.0

// Package patch applies patch files to source trees through the embedded
// shell runner. Patch application is always fatal on failure: the trees
// being remediated have no alternative build path, so a target that does
// not exist or a patch that does not apply cleanly aborts the run.
package patch

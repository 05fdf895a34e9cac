// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"

	"rocforge/internal/config"
	"rocforge/pkg/fspath"
	"rocforge/pkg/types"
)

// staleNumpyDistInfo is the metadata directory the Torch211 base image
// ships for a numpy it no longer contains; later pip upgrades trip over it.
const staleNumpyDistInfo = "numpy-1.20.3.dist-info"

// Paths derives every filesystem location the steps touch from the
// resolved configuration and the image's installation roots.
type Paths struct {
	// CondaPrefix is the conda installation root the base image ships.
	CondaPrefix types.FilesystemPath
	// RocmDir is the ROCm installation root.
	RocmDir types.FilesystemPath
	// Mount is the externally bound workspace root for library checkouts.
	Mount types.FilesystemPath
	// Workspace is the serving-engine build tree.
	Workspace types.FilesystemPath
}

// LibsDir returns the checkout parent for extension libraries.
func (p Paths) LibsDir() types.FilesystemPath {
	return fspath.JoinStr(p.Mount, "libs")
}

// AttentionCloneDir returns the flash-attention checkout directory.
func (p Paths) AttentionCloneDir() types.FilesystemPath {
	return fspath.JoinStr(p.LibsDir(), "flash-attention")
}

// TritonCloneDir returns the Triton toolchain checkout directory.
func (p Paths) TritonCloneDir() types.FilesystemPath {
	return fspath.JoinStr(p.LibsDir(), "triton")
}

// CondaSiteDir returns the site-packages directory of the conda
// environment for the target interpreter, e.g.
// "/opt/conda/envs/py_3.9/lib/python3.9/site-packages".
func (p Paths) CondaSiteDir(py config.PythonConfig) types.FilesystemPath {
	env := fmt.Sprintf("py_%s", py.Version)
	lib := fmt.Sprintf("python%s", py.Version)
	return fspath.JoinStr(p.CondaPrefix, "envs", env, "lib", lib, "site-packages")
}

// HipifyTranslator returns the torch hipify translator script inside the
// conda tree, the target of the legacy-variant pre-build patch.
func (p Paths) HipifyTranslator(py config.PythonConfig) types.FilesystemPath {
	return fspath.JoinStr(p.CondaSiteDir(py), "torch", "utils", "hipify", "hipify_python.py")
}

// StaleNumpyMetadata returns the stale numpy dist-info directory removed
// by the variant remediation step.
func (p Paths) StaleNumpyMetadata(py config.PythonConfig) types.FilesystemPath {
	return fspath.JoinStr(p.CondaSiteDir(py), staleNumpyDistInfo)
}

// BF16Header returns the HIP bf16 device header patched before the engine
// build on variants that need it.
func (p Paths) BF16Header() types.FilesystemPath {
	return fspath.JoinStr(p.RocmDir, "include", "hip", "amd_detail", "amd_hip_bf16.h")
}

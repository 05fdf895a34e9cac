// SPDX-License-Identifier: MPL-2.0

package runtimeenv

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"mvdan.cc/sh/v3/syntax"

	"rocforge/pkg/fspath"
	"rocforge/pkg/types"
)

// EnvFileName is the shell-sourceable environment file persisted in the
// workspace for any process inheriting the provisioned environment.
const EnvFileName = "rocforge.env"

// fixed are the variables exported with constant values.
var fixed = map[string]string{
	"LLVM_SYMBOLIZER_PATH":                        "/opt/rocm/llvm/bin/llvm-symbolizer",
	"VLLM_INSTALL_PUNICA_KERNELS":                 "1",
	"RAY_EXPERIMENTAL_NOSET_ROCR_VISIBLE_DEVICES": "1",
	"VLLM_NCCL_SO_PATH":                           "/opt/rocm/lib/librccl.so",
}

// appended are the search-path variables extended rather than replaced;
// each suffix is appended to the current value with a ":" separator.
var appended = map[string]string{
	"PATH":               "/opt/rocm/bin:/libtorch/bin",
	"LD_LIBRARY_PATH":    "/opt/rocm/lib/:/libtorch/lib:",
	"CPLUS_INCLUDE_PATH": "/libtorch/include:/libtorch/include/torch/csrc/api/include/:/opt/rocm/include/:",
}

// Compose assembles the runtime environment exported to every step after
// composition and recorded in the manifest. getenv supplies the base
// values the search-path variables extend; pass os.Getenv outside tests.
//
// The variable set is fixed. A variable with no base value gets only the
// suffix, never a leading separator.
func Compose(getenv func(string) string) map[string]string {
	out := make(map[string]string, len(fixed)+len(appended))
	for k, v := range fixed {
		out[k] = v
	}
	for k, suffix := range appended {
		if base := getenv(k); base != "" {
			out[k] = base + ":" + suffix
		} else {
			out[k] = suffix
		}
	}
	return out
}

// WriteEnvFile persists env as sorted shell export lines in the workspace
// and returns the file path. Values are quoted for the shell, so the file
// can be sourced directly.
func WriteEnvFile(workspace types.FilesystemPath, env map[string]string) (types.FilesystemPath, error) {
	keys := maps.Keys(env)
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		quoted, err := syntax.Quote(env[k], syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("failed to quote value for %s: %w", k, err)
		}
		fmt.Fprintf(&b, "export %s=%s\n", k, quoted)
	}

	path := fspath.JoinStr(workspace, EnvFileName)
	if err := os.WriteFile(path.String(), []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write env file: %w", err)
	}
	return path, nil
}

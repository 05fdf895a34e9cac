// SPDX-License-Identifier: MPL-2.0

package runtimeenv

import (
	"os"
	"strings"
	"testing"

	"rocforge/internal/shell"
	"rocforge/pkg/types"
)

// emptyGetenv simulates a process started with no inherited environment.
func emptyGetenv(string) string { return "" }

func TestCompose_FixedValues(t *testing.T) {
	t.Parallel()

	env := Compose(emptyGetenv)

	want := map[string]string{
		"LLVM_SYMBOLIZER_PATH":                        "/opt/rocm/llvm/bin/llvm-symbolizer",
		"VLLM_INSTALL_PUNICA_KERNELS":                 "1",
		"RAY_EXPERIMENTAL_NOSET_ROCR_VISIBLE_DEVICES": "1",
		"VLLM_NCCL_SO_PATH":                           "/opt/rocm/lib/librccl.so",
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("env[%q] = %q, want %q", k, env[k], v)
		}
	}
	if len(env) != 7 {
		t.Errorf("expected exactly 7 variables, got %d: %v", len(env), env)
	}
}

func TestCompose_AppendsToExisting(t *testing.T) {
	t.Parallel()

	getenv := func(key string) string {
		switch key {
		case "PATH":
			return "/usr/local/bin:/usr/bin"
		case "LD_LIBRARY_PATH":
			return "/usr/lib"
		default:
			return ""
		}
	}

	env := Compose(getenv)

	if want := "/usr/local/bin:/usr/bin:/opt/rocm/bin:/libtorch/bin"; env["PATH"] != want {
		t.Errorf("PATH = %q, want %q", env["PATH"], want)
	}
	if want := "/usr/lib:/opt/rocm/lib/:/libtorch/lib:"; env["LD_LIBRARY_PATH"] != want {
		t.Errorf("LD_LIBRARY_PATH = %q, want %q", env["LD_LIBRARY_PATH"], want)
	}
	if want := "/libtorch/include:/libtorch/include/torch/csrc/api/include/:/opt/rocm/include/:"; env["CPLUS_INCLUDE_PATH"] != want {
		t.Errorf("CPLUS_INCLUDE_PATH = %q, want %q", env["CPLUS_INCLUDE_PATH"], want)
	}
}

func TestCompose_NoLeadingSeparatorOnEmptyBase(t *testing.T) {
	t.Parallel()

	env := Compose(emptyGetenv)
	for _, key := range []string{"PATH", "LD_LIBRARY_PATH", "CPLUS_INCLUDE_PATH"} {
		if strings.HasPrefix(env[key], ":") {
			t.Errorf("%s = %q has a leading separator", key, env[key])
		}
	}
}

func TestCompose_Deterministic(t *testing.T) {
	t.Parallel()

	first := Compose(emptyGetenv)
	second := Compose(emptyGetenv)
	if len(first) != len(second) {
		t.Fatalf("composed sizes differ: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		if second[k] != v {
			t.Errorf("second[%q] = %q, want %q", k, second[k], v)
		}
	}
}

func TestWriteEnvFile(t *testing.T) {
	t.Parallel()

	workspace := types.FilesystemPath(t.TempDir())
	path, err := WriteEnvFile(workspace, Compose(emptyGetenv))
	if err != nil {
		t.Fatalf("WriteEnvFile() returned error: %v", err)
	}
	if !strings.HasSuffix(path.String(), EnvFileName) {
		t.Errorf("env file path = %q, want it to end in %q", path, EnvFileName)
	}

	data, err := os.ReadFile(path.String())
	if err != nil {
		t.Fatalf("env file unreadable: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "export VLLM_NCCL_SO_PATH=") {
		t.Error("env file should export VLLM_NCCL_SO_PATH")
	}
	if !strings.Contains(content, "/opt/rocm/llvm/bin/llvm-symbolizer") {
		t.Error("env file should carry the symbolizer path")
	}

	// The file's contract is that a shell can source it.
	if err := shell.CheckSyntax(content); err != nil {
		t.Errorf("env file is not sourceable: %v", err)
	}
}

func TestWriteEnvFile_SortedByKey(t *testing.T) {
	t.Parallel()

	workspace := types.FilesystemPath(t.TempDir())
	path, err := WriteEnvFile(workspace, map[string]string{
		"ZEBRA": "z",
		"ALPHA": "a",
		"MIKE":  "m",
	})
	if err != nil {
		t.Fatalf("WriteEnvFile() returned error: %v", err)
	}

	data, err := os.ReadFile(path.String())
	if err != nil {
		t.Fatalf("env file unreadable: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{"export ALPHA=a", "export MIKE=m", "export ZEBRA=z"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

// SPDX-License-Identifier: MPL-2.0

package variant

import "strings"

const (
	// Torch201 is the ROCm 5.7 base image shipping PyTorch 2.0.1. Its conda
	// torch tree ships a hipify translator that miscompiles the attention
	// kernels, so the hipify patch must be applied before that build.
	Torch201 Variant = "rocm/pytorch:rocm5.7_ubuntu20.04_py3.9_pytorch_2.0.1"

	// Torch211 is the ROCm 6.0 base image shipping PyTorch 2.1.1. It carries
	// stale numpy dist-info metadata that breaks later package upgrades, and
	// its bf16 device header needs patching before the serving engine build.
	Torch211 Variant = "rocm/pytorch:rocm6.0_ubuntu20.04_py3.9_pytorch_2.1.1"
)

const (
	// KindUnknown covers every identifier outside the known set.
	// Unknown variants take no special handling.
	KindUnknown Kind = iota
	// KindLegacyHipify marks variants whose attention kernel build needs
	// the hipify translator patched first.
	KindLegacyHipify
	// KindStaleNumpy marks variants that need the stale numpy metadata
	// removed and the bf16 header patched.
	KindStaleNumpy
)

type (
	// Variant is a base runtime image identifier, e.g.
	// "rocm/pytorch:rocm6.0_ubuntu20.04_py3.9_pytorch_2.1.1".
	// Matching is exact: a partial identifier or bare version suffix is not
	// a known variant.
	Variant string

	// Kind is the remediation class of a Variant.
	Kind int
)

// String returns the string representation of the Variant.
func (v Variant) String() string { return string(v) }

// Kind classifies the variant. Identifiers outside the known set return
// KindUnknown.
func (v Variant) Kind() Kind {
	switch v {
	case Torch201:
		return KindLegacyHipify
	case Torch211:
		return KindStaleNumpy
	default:
		return KindUnknown
	}
}

// IsKnown reports whether the variant is one of the known identifiers.
func (v Variant) IsKnown() bool { return v.Kind() != KindUnknown }

// NeedsHipifyPatch reports whether the attention kernel build must patch
// the conda tree's hipify translator before compiling.
func (v Variant) NeedsHipifyPatch() bool { return v.Kind() == KindLegacyHipify }

// NeedsNumpyCleanup reports whether the stale numpy dist-info metadata must
// be removed before subsequent package upgrades.
func (v Variant) NeedsNumpyCleanup() bool { return v.Kind() == KindStaleNumpy }

// NeedsBF16Patch reports whether the bf16 device header must be patched
// before the serving engine build.
func (v Variant) NeedsBF16Patch() bool { return v.Kind() == KindStaleNumpy }

// String returns a human-readable representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindLegacyHipify:
		return "legacy-hipify"
	case KindStaleNumpy:
		return "stale-numpy"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Known returns the closed set of known variants, in declaration order.
func Known() []Variant {
	return []Variant{Torch201, Torch211}
}

// Describe summarizes the special handling a variant triggers, for plan
// rendering and logs. Unknown variants describe as "default handling".
func Describe(v Variant) string {
	var notes []string
	if v.NeedsHipifyPatch() {
		notes = append(notes, "hipify translator patch before attention kernel build")
	}
	if v.NeedsNumpyCleanup() {
		notes = append(notes, "stale numpy metadata cleanup")
	}
	if v.NeedsBF16Patch() {
		notes = append(notes, "bf16 header patch before engine build")
	}
	if len(notes) == 0 {
		return "default handling"
	}
	return strings.Join(notes, ", ")
}

// SPDX-License-Identifier: MPL-2.0

// Package extension builds native GPU kernel extensions from source:
// fetch a pinned checkout, apply a variant-gated pre-build patch when one
// is declared, and run the build inside the checkout with architecture
// targeting exported into its environment. Extension builds are
// independent of each other and individually gated; a disabled extension
// is a no-op by contract.
package extension

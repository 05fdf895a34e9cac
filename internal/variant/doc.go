// SPDX-License-Identifier: MPL-2.0

// Package variant classifies base runtime image identifiers and answers
// whether a given identifier needs special remediation or patching during
// provisioning.
//
// Classification is a pure string comparison against a closed set of known
// identifiers. Identifiers outside the set classify as KindUnknown, which
// means "no special handling": unknown variants provision on the default
// path rather than failing. Predicates are recomputed on demand and never
// cached, so they cannot drift from the configuration they derive from.
package variant

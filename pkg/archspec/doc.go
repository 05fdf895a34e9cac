// SPDX-License-Identifier: MPL-2.0

// Package archspec defines GPU architecture target tokens (e.g. "gfx90a",
// "gfx942") and list handling for passing them to native extension builds.
//
// This package is a leaf dependency: it imports only the standard library.
package archspec

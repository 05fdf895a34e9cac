// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// This package centralizes platform-specific concerns such as runtime.GOOS
// string constants, so domain packages never scatter raw OS name literals.
package platform

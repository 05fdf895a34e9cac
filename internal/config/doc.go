// SPDX-License-Identifier: MPL-2.0

// Package config handles provisioning configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/rocforge/rocforge.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/rocforge/rocforge.cue on macOS, %APPDATA%\rocforge\rocforge.cue
// on Windows), falling back to ./rocforge.cue in the working directory. Resolution is
// defaults, then the config file, then CLI flag overrides; the resolved Config is
// immutable and resolving identical declared input twice yields identical values.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations. Unknown fields
// are ignored (open schema) so configs written for newer releases still load.
package config

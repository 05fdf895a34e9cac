// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for rocforge.
//
// This package implements the Cobra command hierarchy for the rocforge CLI:
// the root command, the provision and plan commands, and the configuration
// management subcommands.
package cmd

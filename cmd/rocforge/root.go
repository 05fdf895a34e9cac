// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"rocforge/internal/config"
	"rocforge/internal/issue"
	"rocforge/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "rocforge",
		Short: "Conditional provisioning for ROCm GPU serving environments",
		Long: TitleStyle.Render("rocforge") + SubtitleStyle.Render(" - conditional provisioning for ROCm GPU serving environments") + `

rocforge turns a ROCm PyTorch base image into a ready-to-serve inference
environment: it conditionally builds native accelerator extensions
(flash-attention kernels, the Triton toolchain), applies the source
patches the declared base variant needs, builds the serving engine, and
stages the compiled artifacts where the runtime imports them.

Provisioning inputs are declared in a 'rocforge.cue' file and can be
overridden per run with flags.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Inspect what a run would do:  rocforge plan
  2. Provision the environment:    rocforge provision
  3. Source the emitted env file:  . <workspace>/rocforge.env

` + SubtitleStyle.Render("Examples:") + `
  rocforge plan                        Show step decisions for the resolved config
  rocforge provision                   Provision with the resolved configuration
  rocforge provision --build-triton=false
  rocforge config show                 Show the resolved configuration`,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/rocforge/rocforge.cue)")

	// Add subcommands
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.Code
			// Out-of-range codes collapse to the generic failure status.
			if validateErr := code.Validate(); validateErr != nil {
				code = 1
			}
			os.Exit(int(code))
		}
		os.Exit(1)
	}
}

// loadOptions assembles the provider options shared by every command: the
// --config flag plus any per-command flag overrides.
func loadOptions(overrides map[string]any) config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: types.FilesystemPath(cfgFile),
		Overrides:      overrides,
	}
}

// newRunLogger builds the logger provisioning runs report on. Verbose mode
// lowers the level to debug.
func newRunLogger() *log.Logger {
	opts := log.Options{Prefix: "rocforge"}
	if verbose {
		opts.Level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, opts)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

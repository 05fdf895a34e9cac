// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"rocforge/internal/config"
	"rocforge/internal/issue"
	"rocforge/internal/provision"
	"rocforge/internal/variant"
	"rocforge/pkg/archspec"
)

// provisionCmd runs the full provisioning pipeline.
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision the ROCm serving environment",
	Long: `Provision the ROCm serving environment described by the resolved
configuration.

The run executes the provisioning steps in a fixed order: system packages,
the conditional extension builds (flash-attention kernels, Triton
toolchain), variant remediations, workspace materialization, the runtime
environment file, the engine build, and artifact staging. The first
failure aborts the run; the workspace is left as-is for inspection.

Flags override the corresponding configuration values for this run only.`,
	Example: `  # Provision with the resolved configuration
  rocforge provision

  # Target a different base image and skip the Triton build
  rocforge provision --base-image rocm/pytorch:rocm5.7_ubuntu20.04_py3.9_pytorch_2.0.1 --build-triton=false

  # Narrow the kernel build to one architecture
  rocforge provision --gfx-archs gfx90a`,
	RunE: runProvision,
}

func init() {
	addProvisionFlags(provisionCmd)
}

// addProvisionFlags registers the configuration override flags shared by
// the provision and plan commands.
func addProvisionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("base-image", "", "base image reference (selects variant remediations)")
	flags.String("gfx-archs", "", `GPU architecture targets, ";"-separated (e.g. "gfx90a;gfx942")`)
	flags.Bool("build-attention", true, "build the flash-attention kernels")
	flags.String("attention-rev", "", "flash-attention revision to check out")
	flags.Bool("build-triton", true, "build the Triton toolchain")
	flags.String("mount", "", "mount root for extension checkouts")
	flags.String("workspace", "", "workspace directory the engine is built in")
	flags.String("source", "", "engine source directory")
}

// provisionOverrides maps changed flags to configuration override keys.
// Only flags the user actually set participate, so flag defaults never
// mask values from the configuration file.
func provisionOverrides(cmd *cobra.Command) map[string]any {
	flags := cmd.Flags()
	overrides := make(map[string]any)

	if flags.Changed("base-image") {
		v, _ := flags.GetString("base-image")
		overrides["base_variant"] = v
	}
	if flags.Changed("gfx-archs") {
		v, _ := flags.GetString("gfx-archs")
		overrides["gfx_archs"] = archspec.ParseList(v).Strings()
	}
	if flags.Changed("build-attention") {
		v, _ := flags.GetBool("build-attention")
		overrides["attention.build"] = v
	}
	if flags.Changed("attention-rev") {
		v, _ := flags.GetString("attention-rev")
		overrides["attention.revision"] = v
	}
	if flags.Changed("build-triton") {
		v, _ := flags.GetBool("build-triton")
		overrides["triton.build"] = v
	}
	if flags.Changed("mount") {
		v, _ := flags.GetString("mount")
		overrides["mount_path"] = v
	}
	if flags.Changed("workspace") {
		v, _ := flags.GetString("workspace")
		overrides["workspace_dir"] = v
	}
	if flags.Changed("source") {
		v, _ := flags.GetString("source")
		overrides["engine.source_dir"] = v
	}

	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

func runProvision(cmd *cobra.Command, _ []string) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	ctx := cmd.Context()

	cfg, cfgPath, err := config.Resolve(ctx, loadOptions(provisionOverrides(cmd)))
	if err != nil {
		renderServiceError(cmd.ErrOrStderr(), newServiceError(err, issue.ConfigLoadFailedId,
			fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))))
		return &ExitError{Code: 1, Err: err}
	}

	logger := newRunLogger()
	if cfgPath != "" {
		logger.Debug("configuration loaded", "file", cfgPath)
	}

	if !variant.Variant(cfg.BaseVariant).IsKnown() {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s base variant %q is not a recognized image; provisioning without remediations\n",
			WarningStyle.Render("!"), cfg.BaseVariant)
	}

	res, err := provision.Run(ctx, cfg, provision.WithLogger(logger))
	if err != nil {
		issueID, styled := classifyProvisionError(err, GetVerbose())
		renderServiceError(cmd.ErrOrStderr(), newServiceError(err, issueID, styled))
		return &ExitError{Code: 1, Err: err}
	}

	printRunSummary(cmd.OutOrStdout(), res)
	return nil
}

// printRunSummary reports a completed run: step counts, staged artifacts,
// and where the manifest and env file landed.
func printRunSummary(w io.Writer, res *provision.Result) {
	executed := 0
	for _, s := range res.Steps {
		if s.Executed {
			executed++
		}
	}

	fmt.Fprintf(w, "%s Provisioning complete\n", SuccessStyle.Render("✓"))
	fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("run:"), res.RunID)
	fmt.Fprintf(w, "  %s %d executed, %d skipped (%s)\n",
		SubtitleStyle.Render("steps:"), executed, len(res.Steps)-executed, res.Duration.Round(time.Millisecond))
	for _, a := range res.Staged {
		fmt.Fprintf(w, "  %s %s (%d bytes)\n", SubtitleStyle.Render("staged:"), CmdStyle.Render(a.Destination.String()), a.SizeBytes)
	}
	fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("manifest:"), CmdStyle.Render(res.ManifestPath.String()))
	fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("env file:"), CmdStyle.Render(res.EnvFile.String()))
}

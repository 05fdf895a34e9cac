// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rocforge/internal/config"
	"rocforge/internal/issue"
	"rocforge/internal/provision"
	"rocforge/internal/variant"
)

// planCmd renders the step decisions for the resolved configuration
// without executing anything.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the provisioning steps the resolved configuration selects",
	Long: `Show the provisioning steps the resolved configuration selects.

Each step is listed in execution order with the decision a run would take
(execute or skip) and the reason. Nothing is executed and nothing is
written; the same flags as 'rocforge provision' can be used to preview
the effect of overrides.`,
	Example: `  # Plan for the resolved configuration
  rocforge plan

  # Preview the effect of a different base image
  rocforge plan --base-image rocm/pytorch:rocm5.7_ubuntu20.04_py3.9_pytorch_2.0.1`,
	RunE: runPlan,
}

func init() {
	addProvisionFlags(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	cfg, _, err := config.Resolve(cmd.Context(), loadOptions(provisionOverrides(cmd)))
	if err != nil {
		renderServiceError(cmd.ErrOrStderr(), newServiceError(err, issue.ConfigLoadFailedId,
			fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))))
		return &ExitError{Code: 1, Err: err}
	}

	plans, err := provision.Describe(cfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	printPlan(cmd.OutOrStdout(), cfg, plans)
	return nil
}

// printPlan renders the step list with per-step decisions.
func printPlan(w io.Writer, cfg *config.Config, plans []provision.StepPlan) {
	fmt.Fprintln(w, TitleStyle.Render("Provisioning plan"))
	fmt.Fprintln(w, SubtitleStyle.Render(cfg.Snapshot()))
	fmt.Fprintln(w, SubtitleStyle.Render("variant handling: "+variant.Describe(variant.Variant(cfg.BaseVariant))))
	fmt.Fprintln(w)

	for i, p := range plans {
		verdict := SuccessStyle.Render("execute")
		if !p.Decision.Execute {
			verdict = SubtitleStyle.Render("skip   ")
		}
		fmt.Fprintf(w, "  %d. %s %s  %s\n",
			i+1, verdict, CmdStyle.Render(fmt.Sprintf("%-26s", p.Name)), SubtitleStyle.Render(p.Decision.Reason))
	}
}

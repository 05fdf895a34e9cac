// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"rocforge/internal/config"
	"rocforge/internal/extension"
	"rocforge/internal/issue"
	"rocforge/internal/patch"
	"rocforge/internal/pipeline"
	"rocforge/internal/provision"
	"rocforge/internal/stage"
)

// classifyProvisionError maps provisioning failures to issue catalog IDs and
// returns a styled message for CLI rendering. It preserves actionable error
// details and surfaces the failing step name when one is known.
func classifyProvisionError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	var buildErr *extension.BuildError

	switch {
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrInvalidLoadOptions):
		issueID = issue.ConfigLoadFailedId
	case errors.Is(err, extension.ErrFetch):
		issueID = issue.SourceFetchFailedId
	case errors.Is(err, patch.ErrApply), errors.Is(err, patch.ErrTargetMissing):
		issueID = issue.PatchFailedId
	case errors.As(err, &buildErr):
		if buildErr.Extension == "engine" {
			issueID = issue.EngineBuildFailedId
		} else {
			issueID = issue.ExtensionBuildFailedId
		}
	case errors.Is(err, stage.ErrMissingArtifact), errors.Is(err, stage.ErrInvalidLayout):
		issueID = issue.StagingFailedId
	default:
		issueID = stepIssueID(err)
	}

	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		msg := fmt.Sprintf("\n%s step %s failed\n  %s %s\n",
			ErrorStyle.Render("Error:"),
			CmdStyle.Render(fmt.Sprintf("%q", stepErr.Step)),
			SubtitleStyle.Render("cause:"),
			formatErrorForDisplay(stepErr.Err, verbose))
		if verbose && stepErr.Snapshot != "" {
			msg += fmt.Sprintf("  %s %s\n", SubtitleStyle.Render("config:"), VerboseStyle.Render(stepErr.Snapshot))
		}
		return issueID, msg
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// stepIssueID maps a failure with no recognized cause to an issue by the
// step it happened in. Unrecognized failures outside any step get no
// catalog entry, only the formatted error.
func stepIssueID(err error) issue.Id {
	var stepErr *pipeline.StepError
	if !errors.As(err, &stepErr) {
		return 0
	}
	switch stepErr.Step {
	case provision.StepSystemPackages:
		return issue.PackageInstallFailedId
	case provision.StepMaterialize, provision.StepRuntimeEnv:
		return issue.WorkspaceSetupFailedId
	case provision.StepEngineBuild:
		return issue.EngineBuildFailedId
	case provision.StepStaging:
		return issue.StagingFailedId
	case provision.StepAttention, provision.StepTriton:
		return issue.ExtensionBuildFailedId
	}
	return 0
}

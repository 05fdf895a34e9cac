// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	SourceFetchFailedId
	PatchFailedId
	ExtensionBuildFailedId
	EngineBuildFailedId
	StagingFailedId
	WorkspaceSetupFailedId
	PackageInstallFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the rocforge configuration file.

## Configuration file locations:
- Linux: ~/.config/rocforge/rocforge.cue
- macOS: ~/Library/Application Support/rocforge/rocforge.cue
- ./rocforge.cue in the current directory

## Things you can try:
- Create a default configuration:
~~~
$ rocforge config init
~~~

- Check the configuration syntax against the schema
- Remove the config file to provision with defaults

## Example configuration:
~~~cue
base_variant: "rocm/pytorch:rocm6.0_ubuntu20.04_py3.9_pytorch_2.1.1"
gfx_archs: ["gfx90a", "gfx942"]

attention: {
  build: true
  revision: "ae7928c"
}

triton: {
  build: true
}
~~~`,
	}

	sourceFetchFailedIssue = &Issue{
		id: SourceFetchFailedId,
		mdMsg: `
# Failed to fetch extension sources!

Cloning or checking out a native extension repository failed.

## Common causes:
- No network access from the build environment
- The pinned revision no longer exists on the remote
- git is not installed in the base image

## Things you can try:
- Verify the revision pin:
~~~
$ rocforge config show
~~~

- Test connectivity to the remote from inside the environment:
~~~
$ git ls-remote https://github.com/ROCm/flash-attention.git
~~~

- Override the revision for this run:
~~~
$ rocforge provision --attention-rev <revision>
~~~

- Disable the extension if it is not needed for your hardware:
~~~
$ rocforge provision --build-attention=false
~~~`,
	}

	patchFailedIssue = &Issue{
		id: PatchFailedId,
		mdMsg: `
# Patch failed to apply!

A required source patch did not apply cleanly to its target file.

There is **no fallback build path** once a patch fails: building without
it would silently miscompile the extension, so the run always aborts here.

## Common causes:
- The base image ships a different file version than the patch expects
- The patch target file was moved or removed upstream
- The patch was already applied by a previous (partial) run

## Things you can try:
- Confirm the base variant matches what the patch was written for:
~~~
$ rocforge plan
~~~

- Inspect the target file and the rejected hunks left in the workspace
- Start from a fresh base image; a half-provisioned workspace is not
  safe to re-patch`,
	}

	extensionBuildFailedIssue = &Issue{
		id: ExtensionBuildFailedId,
		mdMsg: `
# Native extension build failed!

The external toolchain invocation for an accelerator extension failed.

## Common causes:
- The declared GPU architectures are not supported by the source revision
- Missing ROCm development headers in the base image
- Out-of-memory during kernel compilation

## Things you can try:
- Check the declared architecture list matches your hardware:
~~~
$ rocforge config show
$ rocforge provision --gfx-archs "gfx90a;gfx942"
~~~

- Re-run with verbose output to capture the full compiler log:
~~~
$ rocforge --verbose provision
~~~

- Skip the extension on unsupported targets:
~~~
$ rocforge provision --build-attention=false --build-triton=false
~~~`,
	}

	engineBuildFailedIssue = &Issue{
		id: EngineBuildFailedId,
		mdMsg: `
# Serving engine build failed!

The final engine build/install step failed.

## Common causes:
- Requirements installation failed (network or version conflicts)
- The bf16 header patch was skipped on a variant that needs it
- Stale package metadata from the base image conflicting with upgrades

## Things you can try:
- Re-run with verbose output:
~~~
$ rocforge --verbose provision
~~~

- Verify the requirements file exists in the engine source tree
- Check the variant remediation decisions:
~~~
$ rocforge plan
~~~`,
	}

	stagingFailedIssue = &Issue{
		id: StagingFailedId,
		mdMsg: `
# Build artifacts missing after build!

The engine build reported success but an expected compiled artifact was
not found under the build output directory. This is treated as a failure:
a build that silently produces nothing must not look like success.

## Things you can try:
- Confirm the python version and platform tags match the interpreter in
  the base image (they determine the build output subdirectory):
~~~
$ rocforge config show
~~~

- Inspect the build tree for the actual output location:
~~~
$ ls <workspace>/build/
~~~

- Re-run with verbose output and check for skipped compilation units`,
	}

	workspaceSetupFailedIssue = &Issue{
		id: WorkspaceSetupFailedId,
		mdMsg: `
# Workspace materialization failed!

Copying the engine source tree into the workspace failed.

## Common causes:
- The engine source directory does not exist or is empty
- The workspace mount is read-only or out of space

## Things you can try:
- Verify the source directory:
~~~
$ rocforge provision --source /path/to/engine
~~~

- Check that the workspace mount is writable`,
	}

	packageInstallFailedIssue = &Issue{
		id: PackageInstallFailedId,
		mdMsg: `
# System package installation failed!

Installing base system packages or python tooling failed.

## Common causes:
- No network access to the package mirrors
- The base image's package index is stale

## Things you can try:
- Verify network access from the environment
- Re-run; package mirrors occasionally serve transient errors, and the
  pipeline intentionally performs no retries of its own`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		sourceFetchFailedIssue.Id():    sourceFetchFailedIssue,
		patchFailedIssue.Id():          patchFailedIssue,
		extensionBuildFailedIssue.Id(): extensionBuildFailedIssue,
		engineBuildFailedIssue.Id():    engineBuildFailedIssue,
		stagingFailedIssue.Id():        stagingFailedIssue,
		workspaceSetupFailedIssue.Id(): workspaceSetupFailedIssue,
		packageInstallFailedIssue.Id(): packageInstallFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}

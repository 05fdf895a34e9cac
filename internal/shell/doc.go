// SPDX-License-Identifier: MPL-2.0

// Package shell executes provisioning step scripts with the embedded
// mvdan/sh interpreter instead of shelling out to /bin/sh. Scripts are
// parsed and run in-process; external commands (git, pip, patch, apt-get)
// are spawned through the interpreter's exec handler chain, which is also
// the seam tests use to intercept and record command invocations without
// touching the host.
package shell

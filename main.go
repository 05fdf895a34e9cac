// SPDX-License-Identifier: MPL-2.0

// Command rocforge provisions ROCm GPU serving environments.
package main

import (
	cmd "rocforge/cmd/rocforge"
)

func main() {
	cmd.Execute()
}

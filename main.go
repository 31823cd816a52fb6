// SPDX-License-Identifier: MPL-2.0

// devcon opens dev containers from the terminal.
package main

import "github.com/devcon/devcon/cmd/devcon"

func main() {
	cmd.Execute()
}

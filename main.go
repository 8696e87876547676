// SPDX-License-Identifier: MPL-2.0

// Command hotswap runs a server process with hot module replacement.
package main

import cmd "github.com/invowk/hotswap/cmd/hotswap"

func main() {
	cmd.Execute()
}

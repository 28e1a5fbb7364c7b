// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/schemafwd/migrate/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}

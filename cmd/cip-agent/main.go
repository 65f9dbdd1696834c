// Command cip-agent investigates a failing test in a target repository,
// plans and applies a fix under transactional, gate-checked control,
// and emits a cumulative unified diff.
package main

import (
	"fmt"
	"os"

	"github.com/daydemir/cip-agent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Command claimledger runs the insurance claim registry CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/claimledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

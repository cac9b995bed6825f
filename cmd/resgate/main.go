// Command resgate compiles CUE resource definitions and calls their
// interfaces against a SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/resgate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// Command lapor stores disaster reports locally and syncs them when the
// device is online.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/lapor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

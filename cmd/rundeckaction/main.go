// The rundeckaction command runs a single rundeck action and prints its result.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// These variables are populated via the Go linker.
var (
	version string
	commit  string
)

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, errExecutionFailed) {
			// The result was already printed.
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command amti creates, reviews and collects batches of Mechanical Turk
// HITs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/amti/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := &cli.RootOptions{}
	err := cli.Execute(context.Background(), cli.NewRootCommandWith(opts), opts)
	if err == nil {
		return cli.ExitSuccess
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		// Already reported by the command.
		return exitErr.Code
	}

	// Flag and argument errors from cobra itself.
	fmt.Fprintln(os.Stderr, "Error:", err)
	return cli.ExitCommandError
}

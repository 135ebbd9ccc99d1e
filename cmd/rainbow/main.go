package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err != nil && !errors.Is(err, rainbow.ErrNotFound) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, rainbow.ErrNotFound):
		return 1
	case errors.Is(err, rainbow.ErrValidation):
		return 2
	case errors.Is(err, rainbow.ErrResource):
		return 3
	case errors.Is(err, rainbow.ErrTimeout):
		return 4
	case errors.Is(err, rainbow.ErrWorkerFailure):
		return 5
	default:
		return 6
	}
}

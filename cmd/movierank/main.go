package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/movierank-dev/movierank/internal/cli"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(movierank.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(movierank.ExitCodeForError(err))
	}
}

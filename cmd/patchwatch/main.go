package main

import (
	"fmt"
	"io"
	"os"

	apperrors "patchwatch/internal/errors"
)

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	os.Exit(exitCode(a.execute(os.Args[1:]), os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if apperrors.IsCode(err, apperrors.CodeAlreadyRunning) {
		fmt.Fprintf(stderr, "patchwatch is already running: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

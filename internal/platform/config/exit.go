package config

import (
	"fmt"
	"io"
	"os"
)

// stderr is swapped by tests that exercise Fprintf without exiting.
var stderr io.Writer = os.Stderr

// Exitf writes a formatted error message to stderr and exits with code 1.
// Entry points call it when configuration cannot be loaded.
func Exitf(format string, args ...any) {
	fmt.Fprintf(stderr, format+"\n", args...)
	os.Exit(1)
}

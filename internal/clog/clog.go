// Package clog provides the colourized print helpers. The CLI shell uses all
// of them; the downloader core reports failures as returned *errs.Error
// values and calls only Warnf, for non-fatal conditions (the multi-segment
// fallback in internal/job, size mismatches in internal/merge).
package clog

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	stdout io.Writer = colorable.NewColorableStdout()
	stderr io.Writer = colorable.NewColorableStderr()

	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	doneColor  = color.New(color.FgGreen, color.Bold)
)

// ColorEnabled reports whether stdout is a terminal, same gate the teacher
// applies to its progress bar before enabling colourized output.
func ColorEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// Printf writes an informational line.
func Printf(format string, args ...any) {
	fmt.Fprint(stdout, infoColor.Sprintf(format, args...))
}

// Warnf writes a warning line to stderr.
func Warnf(format string, args ...any) {
	fmt.Fprint(stderr, warnColor.Sprintf(format, args...))
}

// Errorf writes an error line to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprint(stderr, errColor.Sprintf(format, args...))
}

// Donef writes a success line to stdout.
func Donef(format string, args ...any) {
	fmt.Fprint(stdout, doneColor.Sprintf(format, args...))
}

// Fatalf prints an error line carrying the given exit code and exits the
// process. Only the CLI shell calls this; library code returns errors.
func Fatalf(exitCode int, format string, args ...any) {
	Errorf("error (%d): "+format, append([]any{exitCode}, args...)...)
	os.Exit(exitCode)
}

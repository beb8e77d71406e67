// Package color renders cxlctl's terminal output markers, with ANSI escapes
// when stdout is a terminal.
package color

import (
	"fmt"
	"os"
)

const (
	reset = "\033[0m"
	green = "\033[32m"
	cyan  = "\033[36m"
	bold  = "\033[1m"
	dim   = "\033[2m"
)

var enabled = stdoutIsTerminal() && os.Getenv("NO_COLOR") == ""

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Disable turns off ANSI escapes for piped or redirected output.
func Disable() { enabled = false }

func wrap(c, s string) string {
	if !enabled {
		return s
	}
	return c + s + reset
}

// OK marks a completed operation.
func OK(msg string) string { return wrap(green, "ok: "+msg) }

// Okf is OK with printf formatting.
func Okf(format string, a ...any) string { return OK(fmt.Sprintf(format, a...)) }

// Header renders a section title.
func Header(s string) string { return wrap(bold+cyan, "== "+s+" ==") }

// Bold emphasizes inline text.
func Bold(s string) string { return wrap(bold, s) }

// Dim de-emphasizes inline text.
func Dim(s string) string { return wrap(dim, s) }

package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

// Out receives every message printed by this package.
var Out io.Writer = color.Output

var (
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
	success = color.New(color.FgGreen)
	info    = color.New(color.FgBlue)
	banner  = color.New(color.FgCyan)
)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	warning.Fprintln(Out, "\nWarning:")
	warning.Fprintln(Out, message)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	failure.Fprintf(Out, "\nError: %s\n", message)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	success.Fprintf(Out, "\n%s\n", message)
}

func PrintInfo(message string) {
	info.Fprintln(Out, message)
}

// PrintList prints a green title followed by one dashed line per item.
func PrintList(title string, items []string) {
	success.Fprintf(Out, "\n%s\n", title)
	for _, item := range items {
		success.Fprintf(Out, "- %s\n", item)
	}
}

func PrintBanner(words ...string) {
	for _, w := range words {
		banner.Fprintln(Out, figure.NewFigure(w, "isometric1", true).String())
	}
	fmt.Fprintln(Out)
}

// PrintPanic reports a recovered panic on the terminal.
func PrintPanic(r any, location string) {
	lines := []string{
		fmt.Sprintf("PANIC: %v", r),
		fmt.Sprintf("Location: %s", location),
		"Please check the input and try again.",
		"Exiting...",
	}
	failure.Fprintf(Out, "\n%s\n", strings.Join(lines, "\n"))
}

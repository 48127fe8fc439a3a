package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous, noColor := Out, color.NoColor
	Out, color.NoColor = &buf, true
	t.Cleanup(func() { Out, color.NoColor = previous, noColor })
	return &buf
}

func TestPrintMessages(t *testing.T) {
	buf := capture(t)

	PrintWarning("radar window has few scenes")
	PrintError("no optical scene")
	PrintSuccess("done")
	PrintInfo("loading")

	assert.Equal(t, "\nWarning:\nradar window has few scenes\n\nError: no optical scene\n\ndone\nloading\n", buf.String())
}

func TestPrintList(t *testing.T) {
	buf := capture(t)

	PrintList("Classes:", []string{"forest", "water"})
	assert.Equal(t, "\nClasses:\n- forest\n- water\n", buf.String())
}

func TestPrintBanner(t *testing.T) {
	buf := capture(t)

	PrintBanner("LC")
	assert.NotEmpty(t, buf.String())
	assert.Contains(t, buf.String(), "/")
}

func TestPrintPanic(t *testing.T) {
	buf := capture(t)

	PrintPanic("boom", "main.go:10")
	assert.Contains(t, buf.String(), "PANIC: boom")
	assert.Contains(t, buf.String(), "Location: main.go:10")
}

package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"flakecast/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// SupportsColor reports whether stdout is a terminal that takes ANSI colors.
func SupportsColor() bool {
	return supportsColor
}

// ShowHeader displays a formatted header
func ShowHeader(w io.Writer, title string) {
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(w, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(w, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Fprintln(w, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError prints the user-facing message of err with any suggestions
// dimmed underneath.
func ShowError(w io.Writer, err error) {
	lines := strings.Split(errors.UserMessage(err), "\n")
	fmt.Fprintf(w, "%s %s\n", ColorError("ERROR:"), lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "  %s\n", ColorDim(strings.TrimSpace(line)))
	}
	if code := errors.GetErrorCode(err); code != errors.ErrCodeInternal {
		fmt.Fprintf(w, "  %s\n", ColorDim("code "+string(code)))
	}
}

func ShowSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

func ShowWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

func ShowInfo(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorInfo("INFO:"), message)
}

// PrintSection prints a section header
func PrintSection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s %s\n", ColorBold(">"), ColorBold(title))
	fmt.Fprintln(w, strings.Repeat("-", 50))
}

// PrintKeyValue prints a key-value pair in a formatted way
func PrintKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "  %-20s %s\n", ColorDim(key+":"), value)
}

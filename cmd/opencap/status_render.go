package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// statusLine formats one check result as "  label:   [OK] detail", coloured
// green or red when colorize is set.
func statusLine(label string, passed bool, detail string, colorize bool) string {
	status, colors := "[OK]", text.Colors{text.FgGreen}
	if !passed {
		status, colors = "[ERROR]", text.Colors{text.FgRed}
	}
	if detail != "" {
		status += " " + detail
	}
	line := fmt.Sprintf("  %-20s %s", label+":", status)
	if !colorize {
		return line
	}
	return colors.Sprint(line)
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the relite banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"            _ _ _       ", "#818cf8"},
		{"  _ __ ___| (_) |_ ___ ", "#a78bfa"},
		{" | '__/ _ \\ | | __/ _ \\", "#c084fc"},
		{" | | |  __/ | | ||  __/", "#e879f9"},
		{" |_|  \\___|_|_|\\__\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

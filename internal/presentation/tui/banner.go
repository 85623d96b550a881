package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{`  ____            _            `, "#38bdf8"},
	{` |  _ \ __ _ _ __| | ___ _   _ `, "#22d3ee"},
	{` | |_) / _' | '__| |/ _ \ | | |`, "#2dd4bf"},
	{` |  __/ (_| | |  | |  __/ |_| |`, "#34d399"},
	{` |_|   \__,_|_|  |_|\___|\__, |`, "#4ade80"},
	{`                         |___/ `, "#a3e635"},
}

// PrintBanner writes the Parley banner and version to w, colored when the
// terminal supports it.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}

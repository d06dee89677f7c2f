package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	minChartWidth       = 10
	chartLabelWidth     = len("T1 ")
	chartValueWidth     = len(" 000.00s")
	chartAxis           = "│"
	barFill             = "█"
	erMarker            = "┃"
	colorReset          = "\x1b[0m"
	colorSlow           = "\x1b[33m"
	colorFast           = "\x1b[32m"
	terminalWidthBackup = 80
)

// RenderFatigueChart draws one horizontal bar per table with the ER level
// marked on every bar. Bars slower than ER are drawn in the slow color.
func RenderFatigueChart(w io.Writer, durations []float64, er float64, width int, forceColor bool) error {
	if len(durations) == 0 {
		return nil
	}
	if width <= 0 {
		width = ChartWidthFor(terminalWidth())
	}
	if width < minChartWidth {
		width = minChartWidth
	}
	useColor := shouldUseColor(w, forceColor)

	maxVal := er
	for _, d := range durations {
		if d > maxVal {
			maxVal = d
		}
	}
	if maxVal <= 0 {
		maxVal = 1
	}
	marker := scaleToWidth(er, maxVal, width) - 1

	if _, err := fmt.Fprintln(w, "Fatigue curve (seconds per table)"); err != nil {
		return err
	}
	for i, d := range durations {
		bar := renderBar(scaleToWidth(d, maxVal, width), width, marker)
		if useColor {
			color := colorFast
			if d > er {
				color = colorSlow
			}
			bar = color + bar + colorReset
		}
		if _, err := fmt.Fprintf(w, "T%d %s%s %6.2fs\n", i+1, chartAxis, bar, d); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s ER %.2fs\n", erMarker, er)
	return err
}

// ChartWidthFor returns the bar width that fits a terminal of totalWidth columns.
func ChartWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minChartWidth
	}
	width := totalWidth - chartLabelWidth - utf8.RuneCountInString(chartAxis) - chartValueWidth
	if width < minChartWidth {
		width = minChartWidth
	}
	return width
}

func scaleToWidth(v, maxVal float64, width int) int {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	n := int(math.Round(v / maxVal * float64(width)))
	if n > width {
		n = width
	}
	return n
}

func renderBar(filled, width, marker int) string {
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == marker:
			b.WriteString(erMarker)
		case i < filled:
			b.WriteString(barFill)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

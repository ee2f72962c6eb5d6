package stats

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/verte-zerg/ruletype/internal/model"
)

const (
	minTrendWidth       = 10
	terminalWidthBackup = 80
	colorReset          = "\x1b[0m"
)

// Series represents a named data series for a trend line.
type Series struct {
	Name   string
	Values []float64
}

var trendColors = []string{"\x1b[36m", "\x1b[35m", "\x1b[33m"}

// RenderTrends prints smoothed sparklines of text time, gauge time and reveal
// rate. width <= 0 sizes the lines to the terminal behind w.
func RenderTrends(w io.Writer, batches []model.BatchRecord, window, width int) error {
	if len(batches) == 0 {
		return nil
	}
	text := make([]float64, len(batches))
	gauge := make([]float64, len(batches))
	rate := make([]float64, len(batches))
	for i, b := range batches {
		text[i] = float64(b.TextMs) / 1000
		gauge[i] = float64(b.GaugeMs) / 1000
		rate[i], _ = BatchMetrics(b)
	}
	return renderSeries(w, "Trends", []Series{
		{Name: "Text s", Values: MovingAverage(text, window)},
		{Name: "Gauge s", Values: MovingAverage(gauge, window)},
		{Name: "Chars/s", Values: MovingAverage(rate, window)},
	}, width)
}

func renderSeries(w io.Writer, title string, series []Series, width int) error {
	labelWidth := 0
	for _, s := range series {
		if n := displayWidth(s.Name); n > labelWidth {
			labelWidth = n
		}
	}
	if width <= 0 {
		width = writerWidth(w)
	}
	// Label, a space, the line, then " min-max".
	lineWidth := width - labelWidth - 1 - 16
	if lineWidth < minTrendWidth {
		lineWidth = minTrendWidth
	}
	useColor := shouldUseColor(w)

	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		line := Sparkline(downsample(s.Values, lineWidth))
		if useColor {
			line = trendColors[i%len(trendColors)] + line + colorReset
		}
		lo, hi := minMax(s.Values)
		if _, err := fmt.Fprintf(w, "%s %s %.1f-%.1f\n", padCell(s.Name, labelWidth, false), line, lo, hi); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// downsample averages values into at most width buckets.
func downsample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		if end <= start {
			end = start + 1
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func writerWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok {
		return terminalWidthBackup
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

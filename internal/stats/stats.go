// Package stats contains batch history calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/ruletype/internal/model"
)

const sparkChars = " .:-=+*#%@"

// BatchMetrics computes the reveal rate in characters per second and the
// share of characters that had a typo excursion.
func BatchMetrics(rec model.BatchRecord) (charsPerSec, typoRate float64) {
	if rec.TextMs > 0 {
		charsPerSec = float64(rec.Chars) / (float64(rec.TextMs) / 1000.0)
	}
	if rec.Chars > 0 {
		typoRate = float64(rec.Typos) / float64(rec.Chars)
	}
	return charsPerSec, typoRate
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints a summary of finished batches.
func RenderSummary(w io.Writer, batches []model.BatchRecord) error {
	if len(batches) == 0 {
		_, err := fmt.Fprintln(w, "No batches found.")
		return err
	}
	var totalText, totalGauge, totalRate float64
	chars, typos, textFirst, maxRule := 0, 0, 0, 0
	for _, b := range batches {
		rate, _ := BatchMetrics(b)
		totalRate += rate
		totalText += float64(b.TextMs)
		totalGauge += float64(b.GaugeMs)
		chars += b.Chars
		typos += b.Typos
		if b.TextFirst {
			textFirst++
		}
		if b.SettledRule > maxRule {
			maxRule = b.SettledRule
		}
	}
	count := float64(len(batches))
	lines := []string{
		"Summary",
		fmt.Sprintf("Batches: %d", len(batches)),
		fmt.Sprintf("Furthest rule: #%d", maxRule),
		fmt.Sprintf("Characters: %d (%d typos)", chars, typos),
		fmt.Sprintf("Avg text time: %.1fs", totalText/count/1000),
		fmt.Sprintf("Avg gauge time: %.1fs", totalGauge/count/1000),
		fmt.Sprintf("Avg rate: %.2f chars/s", totalRate/count),
		fmt.Sprintf("Text before cap: %.0f%%", float64(textFirst)/count*100),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderBatchTable prints one row per batch.
func RenderBatchTable(w io.Writer, batches []model.BatchRecord) error {
	if len(batches) == 0 {
		return nil
	}
	headers := []string{"Ended", "Segments", "Rules", "Chars", "Typos", "Text (s)", "Gauge (s)", "First"}
	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		first := "gauge"
		if b.TextFirst {
			first = "text"
		}
		rows = append(rows, []string{
			b.EndedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d-%d", b.FromIndex, b.ToIndex),
			ruleSpan(b),
			fmt.Sprintf("%d", b.Chars),
			fmt.Sprintf("%d", b.Typos),
			fmt.Sprintf("%.1f", float64(b.TextMs)/1000),
			fmt.Sprintf("%.1f", float64(b.GaugeMs)/1000),
			first,
		})
	}
	rightAlign := map[int]bool{3: true, 4: true, 5: true, 6: true}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

// RenderRuns prints one row per process run.
func RenderRuns(w io.Writer, runs []model.RunAggregate) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	headers := []string{"Run", "Started", "Batches", "Chars", "Typos", "Furthest"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.RunID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", r.Batches),
			fmt.Sprintf("%d", r.Chars),
			fmt.Sprintf("%d", r.Typos),
			fmt.Sprintf("#%d", r.MaxRule),
		})
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true, 5: true}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

func ruleSpan(b model.BatchRecord) string {
	if b.SettledRule == 0 || b.SettledRule == b.FirstRule {
		return fmt.Sprintf("#%d", b.FirstRule)
	}
	return fmt.Sprintf("#%d-#%d", b.FirstRule, b.SettledRule)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/schulte/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates indices over a set of sessions.
type Summary struct {
	Sessions     int
	Subjects     int
	AvgER        float64
	AvgBP        float64
	AvgIN        float64
	BestER       float64
	WorstER      float64
	AvgErrors    float64
	AvgTotalTime float64
}

// Summarize computes averages and ER extremes. Lower ER is better.
func Summarize(records []model.SessionRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	subjects := make(map[string]struct{}, len(records))
	sum := Summary{
		Sessions: len(records),
		BestER:   math.Inf(1),
		WorstER:  math.Inf(-1),
	}
	var errs int
	for _, rec := range records {
		subjects[rec.SubjectID] = struct{}{}
		sum.AvgER += rec.Result.EfficiencyRate
		sum.AvgBP += rec.Result.WorkabilityIndex
		sum.AvgIN += rec.Result.StabilityIndex
		sum.AvgTotalTime += rec.Result.TotalTime
		errs += rec.Result.TotalErrors
		sum.BestER = math.Min(sum.BestER, rec.Result.EfficiencyRate)
		sum.WorstER = math.Max(sum.WorstER, rec.Result.EfficiencyRate)
	}
	n := float64(len(records))
	sum.Subjects = len(subjects)
	sum.AvgER /= n
	sum.AvgBP /= n
	sum.AvgIN /= n
	sum.AvgTotalTime /= n
	sum.AvgErrors = float64(errs) / n
	return sum
}

// ComparisonRow is one session in a comparison.
type ComparisonRow struct {
	ID        string
	StartedAt time.Time
	ER        float64
	BP        float64
	IN        float64
	Errors    int
}

// Comparison lines up several sessions. Best, Worst and Spread are only
// meaningful when HasRange is set.
type Comparison struct {
	Rows     []ComparisonRow
	HasRange bool
	Best     int
	Worst    int
	Spread   float64
}

// Compare builds per-session rows and marks the best and worst ER.
func Compare(records []model.SessionRecord) Comparison {
	cmp := Comparison{Rows: make([]ComparisonRow, 0, len(records)), Best: -1, Worst: -1}
	for i, rec := range records {
		cmp.Rows = append(cmp.Rows, ComparisonRow{
			ID:        rec.ID,
			StartedAt: rec.StartedAt,
			ER:        rec.Result.EfficiencyRate,
			BP:        rec.Result.WorkabilityIndex,
			IN:        rec.Result.StabilityIndex,
			Errors:    rec.Result.TotalErrors,
		})
		if cmp.Best < 0 || rec.Result.EfficiencyRate < records[cmp.Best].Result.EfficiencyRate {
			cmp.Best = i
		}
		if cmp.Worst < 0 || rec.Result.EfficiencyRate > records[cmp.Worst].Result.EfficiencyRate {
			cmp.Worst = i
		}
	}
	if len(records) < 2 {
		cmp.Best, cmp.Worst = -1, -1
		return cmp
	}
	cmp.HasRange = true
	cmp.Spread = cmp.Rows[cmp.Worst].ER - cmp.Rows[cmp.Best].ER
	return cmp
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
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// ERTrend returns the ER of each session smoothed over window sessions.
func ERTrend(records []model.SessionRecord, window int) []float64 {
	ers := make([]float64, len(records))
	for i, rec := range records {
		ers[i] = rec.Result.EfficiencyRate
	}
	return MovingAverage(ers, window)
}

// RenderSummary prints the summary block and the ER trend.
func RenderSummary(w io.Writer, records []model.SessionRecord, window int) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	sum := Summarize(records)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", sum.Sessions),
		fmt.Sprintf("Subjects: %d", sum.Subjects),
		fmt.Sprintf("Avg ER: %.2fs", sum.AvgER),
		fmt.Sprintf("Best ER: %.2fs", sum.BestER),
		fmt.Sprintf("Worst ER: %.2fs", sum.WorstER),
		fmt.Sprintf("Avg BP: %.2f", sum.AvgBP),
		fmt.Sprintf("Avg IN: %.2f", sum.AvgIN),
		fmt.Sprintf("Avg errors: %.1f", sum.AvgErrors),
		fmt.Sprintf("Avg total time: %.1fs", sum.AvgTotalTime),
	}
	if len(records) > 1 {
		lines = append(lines, fmt.Sprintf("ER trend: %s (lower is better)", Sparkline(ERTrend(records, window))))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderComparison prints the sessions side by side.
func RenderComparison(w io.Writer, records []model.SessionRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No sessions to compare.")
		return err
	}
	cmp := Compare(records)
	if _, err := fmt.Fprintln(w, "Comparison"); err != nil {
		return err
	}
	headers := []string{"Session", "Started", "ER", "BP", "IN", "Errors", ""}
	rows := make([][]string, 0, len(cmp.Rows))
	for i, r := range cmp.Rows {
		mark := ""
		switch {
		case cmp.HasRange && i == cmp.Best:
			mark = "best"
		case cmp.HasRange && i == cmp.Worst:
			mark = "worst"
		}
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", r.ER),
			fmt.Sprintf("%.2f", r.BP),
			fmt.Sprintf("%.2f", r.IN),
			fmt.Sprintf("%d", r.Errors),
			mark,
		})
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true, 5: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	if cmp.HasRange {
		if _, err := fmt.Fprintf(w, "ER spread: %.2fs\n", cmp.Spread); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// shortID trims a UUID to its first group for compact tables.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

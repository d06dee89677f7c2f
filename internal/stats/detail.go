package stats

import (
	"fmt"
	"io"

	"github.com/verte-zerg/schulte/internal/model"
	"github.com/verte-zerg/schulte/internal/scoring"
)

// RenderSessionDetail prints one session: per-table rows, indices,
// interpretation and the fatigue chart.
func RenderSessionDetail(w io.Writer, rec model.SessionRecord, subjectName string, width int, forceColor bool) error {
	if subjectName == "" {
		subjectName = rec.SubjectID
	}
	shuffle := "no"
	if rec.Config.ShuffleAfterEachStep {
		shuffle = "yes"
	}
	header := []string{
		fmt.Sprintf("Session %s", rec.ID),
		fmt.Sprintf("Subject: %s", subjectName),
		fmt.Sprintf("Started: %s", rec.StartedAt.Local().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Table: %dx%d, %s, shuffle %s", rec.Config.TableSize, rec.Config.TableSize, rec.Config.SequenceType, shuffle),
		"",
	}
	for _, line := range header {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	rows := make([][]string, 0, len(rec.Durations))
	for i, d := range rec.Durations {
		errs := 0
		if i < len(rec.ErrorCounts) {
			errs = rec.ErrorCounts[i]
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", d),
			fmt.Sprintf("%d", errs),
		})
	}
	for _, line := range formatTable([]string{"Table", "Time (s)", "Errors"}, rows, map[int]bool{0: true, 1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	r := rec.Result
	indices := []string{
		"",
		fmt.Sprintf("ER (efficiency): %.2fs", r.EfficiencyRate),
		fmt.Sprintf("BP (workability): %.2f", r.WorkabilityIndex),
		fmt.Sprintf("IN (stability): %.2f", r.StabilityIndex),
		fmt.Sprintf("Total time: %.2fs, errors: %d", r.TotalTime, r.TotalErrors),
		scoring.Interpret(r).String(),
		"",
	}
	for _, line := range indices {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return RenderFatigueChart(w, rec.Durations, r.EfficiencyRate, width, forceColor)
}

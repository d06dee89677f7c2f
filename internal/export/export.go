// Package export writes session history for spreadsheets and other tools.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/schulte/internal/model"
)

// Separator is the CSV field delimiter.
const Separator = ';'

const (
	csvDateLayout  = "02.01.2006 15:04"
	unknownSubject = "Unknown"
	detailedTitle  = "Detailed test report"
)

var sessionHeader = func() []string {
	h := []string{"Date", "Subject", "Age", "Table size", "Sequence", "ER", "BP", "IN", "Total time", "Errors"}
	for i := 1; i <= model.TableCount; i++ {
		h = append(h, fmt.Sprintf("Table %d time", i))
	}
	for i := 1; i <= model.TableCount; i++ {
		h = append(h, fmt.Sprintf("Table %d errors", i))
	}
	return h
}()

// WriteSessionsCSV writes one row per session. Subjects are looked up by id;
// a missing subject is written as Unknown with age 0.
func WriteSessionsCSV(w io.Writer, records []model.SessionRecord, subjects map[string]model.Subject) error {
	cw := newWriter(w)
	if err := cw.Write(sessionHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range records {
		name, age := unknownSubject, "0"
		if subj, ok := subjects[rec.SubjectID]; ok {
			name = subj.Name
			age = strconv.Itoa(subj.Age)
		}
		row := []string{
			rec.StartedAt.Local().Format(csvDateLayout),
			name,
			age,
			strconv.Itoa(rec.Config.TableSize),
			string(rec.Config.SequenceType),
			formatFloat(rec.Result.EfficiencyRate),
			formatFloat(rec.Result.WorkabilityIndex),
			formatFloat(rec.Result.StabilityIndex),
			formatFloat(rec.Result.TotalTime),
			strconv.Itoa(rec.Result.TotalErrors),
		}
		row = append(row, tableTimes(rec)...)
		row = append(row, tableErrors(rec)...)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write session %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDetailedCSV writes a single-session report: a short header block,
// the indices and one row per table.
func WriteDetailedCSV(w io.Writer, rec model.SessionRecord, subj model.Subject) error {
	name := subj.Name
	if name == "" {
		name = unknownSubject
	}
	r := rec.Result
	rows := [][]string{
		{detailedTitle},
		{"Subject", name},
		{"Date", rec.StartedAt.Local().Format(csvDateLayout)},
		{"Table size", strconv.Itoa(rec.Config.TableSize)},
		{"Sequence", string(rec.Config.SequenceType)},
		{},
		{"Index", "Value"},
		{"ER (efficiency)", formatFloat(r.EfficiencyRate)},
		{"BP (workability)", formatFloat(r.WorkabilityIndex)},
		{"IN (stability)", formatFloat(r.StabilityIndex)},
		{"Total time", formatFloat(r.TotalTime)},
		{"Total errors", strconv.Itoa(r.TotalErrors)},
		{},
		{"Table", "Time (s)", "Errors"},
	}
	times, errs := tableTimes(rec), tableErrors(rec)
	for i := 0; i < model.TableCount; i++ {
		rows = append(rows, []string{strconv.Itoa(i + 1), times[i], errs[i]})
	}

	cw := newWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write detailed report: %w", err)
	}
	return nil
}

// yamlSession is the exported shape of one session.
type yamlSession struct {
	ID        string      `yaml:"id"`
	SubjectID string      `yaml:"subject_id"`
	StartedAt time.Time   `yaml:"started_at"`
	EndedAt   time.Time   `yaml:"ended_at"`
	Config    yamlConfig  `yaml:"config"`
	Tables    []yamlTable `yaml:"tables"`
	Result    yamlResult  `yaml:"result"`
}

type yamlConfig struct {
	TableSize int    `yaml:"table_size"`
	Sequence  string `yaml:"sequence"`
	Shuffle   bool   `yaml:"shuffle"`
}

type yamlTable struct {
	Index    int     `yaml:"index"`
	Duration float64 `yaml:"duration_s"`
	Errors   int     `yaml:"errors"`
}

type yamlResult struct {
	ER          float64 `yaml:"er"`
	BP          float64 `yaml:"bp"`
	IN          float64 `yaml:"in"`
	TotalTime   float64 `yaml:"total_time_s"`
	TotalErrors int     `yaml:"total_errors"`
}

type yamlDocument struct {
	Sessions []yamlSession `yaml:"sessions"`
}

// WriteYAML writes the sessions as a YAML document.
func WriteYAML(w io.Writer, records []model.SessionRecord) error {
	doc := yamlDocument{Sessions: make([]yamlSession, 0, len(records))}
	for _, rec := range records {
		s := yamlSession{
			ID:        rec.ID,
			SubjectID: rec.SubjectID,
			StartedAt: rec.StartedAt.UTC(),
			EndedAt:   rec.EndedAt.UTC(),
			Config: yamlConfig{
				TableSize: rec.Config.TableSize,
				Sequence:  string(rec.Config.SequenceType),
				Shuffle:   rec.Config.ShuffleAfterEachStep,
			},
			Result: yamlResult{
				ER:          rec.Result.EfficiencyRate,
				BP:          rec.Result.WorkabilityIndex,
				IN:          rec.Result.StabilityIndex,
				TotalTime:   rec.Result.TotalTime,
				TotalErrors: rec.Result.TotalErrors,
			},
		}
		for i, d := range rec.Durations {
			t := yamlTable{Index: i + 1, Duration: d}
			if i < len(rec.ErrorCounts) {
				t.Errors = rec.ErrorCounts[i]
			}
			s.Tables = append(s.Tables, t)
		}
		doc.Sessions = append(doc.Sessions, s)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	return cw
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func tableTimes(rec model.SessionRecord) []string {
	out := make([]string, model.TableCount)
	for i := range out {
		out[i] = "0"
		if i < len(rec.Durations) {
			out[i] = formatFloat(rec.Durations[i])
		}
	}
	return out
}

func tableErrors(rec model.SessionRecord) []string {
	out := make([]string, model.TableCount)
	for i := range out {
		out[i] = "0"
		if i < len(rec.ErrorCounts) {
			out[i] = strconv.Itoa(rec.ErrorCounts[i])
		}
	}
	return out
}

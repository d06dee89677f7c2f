package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/schulte/internal/model"
)

type memoryStore struct {
	records []model.SessionRecord
}

func (s *memoryStore) ListSessions(_ context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error) {
	var out []model.SessionRecord
	for _, rec := range s.records {
		if cfg.SubjectID != "" && rec.SubjectID != cfg.SubjectID {
			continue
		}
		if cfg.Since != nil && rec.StartedAt.Before(*cfg.Since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *memoryStore) DeleteSession(_ context.Context, id string) error {
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func session(id, subject string, day int, er float64) model.SessionRecord {
	return model.SessionRecord{
		ID:          id,
		SubjectID:   subject,
		StartedAt:   time.Date(2026, 3, day, 10, 0, 0, 0, time.Local),
		Config:      model.DefaultConfiguration(),
		Durations:   []float64{er, er, er, er, er},
		ErrorCounts: []int{0, 0, 0, 0, 0},
		Result:      model.TestResult{EfficiencyRate: er, WorkabilityIndex: 1, StabilityIndex: 1, TotalTime: er * 5},
	}
}

func newTestModel() (*Model, *memoryStore) {
	st := &memoryStore{records: []model.SessionRecord{
		session("s1", "ann", 1, 6),
		session("s2", "bob", 2, 5),
		session("s3", "ann", 3, 4),
	}}
	subjects := []model.Subject{{ID: "ann", Name: "Ann"}, {ID: "bob", Name: "Bob"}}
	m := NewModel(st, model.StatsConfig{CurveWindow: 2}, subjects)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, st
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestOverviewShowsSummary(t *testing.T) {
	m, _ := newTestModel()
	view := m.View()
	for _, want := range []string{"Overview", "Sessions", "Avg ER", "5.00s", "ER trend"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestSessionsNewestFirstAndOpenDetail(t *testing.T) {
	m, _ := newTestModel()
	m.Update(keyRunes("l"))
	if m.activeTab != tabSessions {
		t.Fatalf("expected sessions tab, got %d", m.activeTab)
	}
	if m.selectedID() != "s3" {
		t.Fatalf("expected newest session first, got %s", m.selectedID())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.activeTab != tabDetail || m.detailID != "s2" {
		t.Fatalf("expected detail of s2, got tab %d id %s", m.activeTab, m.detailID)
	}
	if !strings.Contains(m.View(), "Subject: Bob") {
		t.Fatalf("expected subject name in detail:\n%s", m.View())
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	m, st := newTestModel()
	m.Update(keyRunes("l"))
	m.Update(keyRunes("d"))
	if m.pendingDelete != "s3" {
		t.Fatalf("expected pending delete of s3, got %q", m.pendingDelete)
	}
	m.Update(keyRunes("n"))
	if len(st.records) != 3 || m.notice != "Delete cancelled." {
		t.Fatalf("delete should be cancelled")
	}

	m.Update(keyRunes("d"))
	m.Update(keyRunes("y"))
	if len(st.records) != 2 || len(m.report.Sessions) != 2 {
		t.Fatalf("expected session deleted and report refreshed")
	}
	if m.selectedID() != "s2" {
		t.Fatalf("expected cursor on s2 after delete, got %s", m.selectedID())
	}
}

func TestFilterBySubjectName(t *testing.T) {
	m, _ := newTestModel()
	m.Update(keyRunes("/"))
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	m.filterInputs[filterSubject].SetValue("ann")
	m.filterInputs[filterLast].SetValue("1")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterMode {
		t.Fatalf("filter should be applied: %s", m.filterError)
	}
	if m.cfg.SubjectID != "ann" || m.cfg.Last != 1 {
		t.Fatalf("unexpected config: %+v", m.cfg)
	}
	if len(m.report.Sessions) != 1 || m.report.Sessions[0].ID != "s3" {
		t.Fatalf("unexpected filtered sessions: %+v", m.report.Sessions)
	}
}

func TestFilterRejectsBadInput(t *testing.T) {
	m, _ := newTestModel()
	m.Update(keyRunes("/"))
	m.filterInputs[filterSubject].SetValue("nobody")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.filterMode || !strings.Contains(m.filterError, "unknown subject") {
		t.Fatalf("expected unknown subject error, got %q", m.filterError)
	}
	m.filterInputs[filterSubject].SetValue("")
	m.filterInputs[filterSince].SetValue("March")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.filterError, "since") {
		t.Fatalf("expected since error, got %q", m.filterError)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.filterMode {
		t.Fatalf("esc should leave filter mode")
	}
}

func TestFitLines(t *testing.T) {
	out := fitLines("ab\ncdef\ngh", 4, 2)
	if out != "ab  \ncdef" {
		t.Fatalf("unexpected fit: %q", out)
	}
	if got := truncateLine("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncate: %q", got)
	}
}

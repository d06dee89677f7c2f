package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/schulte/internal/engine"
	"github.com/verte-zerg/schulte/internal/generator"
	"github.com/verte-zerg/schulte/internal/model"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

type memorySaver struct {
	records []model.SessionRecord
	err     error
}

func (s *memorySaver) SaveSession(_ context.Context, rec model.SessionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func newTestModel(t *testing.T, saver SessionSaver) (*Model, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	eng := engine.New(generator.NewWithSeed(1), engine.WithClock(clock.now))
	cfg := model.TestConfiguration{TableSize: 3, SequenceType: model.SequenceAscending}
	m, err := NewModel(eng, saver, cfg, model.Subject{ID: "subj-1", Name: "Ann"})
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	return m, clock
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func typeNumber(m *Model, n int) {
	for _, r := range strconv.Itoa(n) {
		m.Update(runes(string(r)))
	}
	m.Update(key(tea.KeyEnter))
}

func playSession(t *testing.T, m *Model, clock *fakeClock) {
	t.Helper()
	for table := 1; table <= model.TableCount; table++ {
		for n := 1; n <= 9; n++ {
			if n == 9 {
				clock.t = clock.t.Add(2 * time.Second)
			}
			typeNumber(m, n)
		}
		if m.engine.State() != engine.StateTableComplete {
			t.Fatalf("table %d: expected table complete, got %s", table, m.engine.State())
		}
		m.Update(key(tea.KeyEnter))
	}
}

func TestTypedNumbersCompleteSessionAndSave(t *testing.T) {
	saver := &memorySaver{}
	m, clock := newTestModel(t, saver)
	playSession(t, m, clock)

	if m.engine.State() != engine.StateSessionComplete {
		t.Fatalf("expected session complete, got %s", m.engine.State())
	}
	if len(saver.records) != 1 {
		t.Fatalf("expected one saved record, got %d", len(saver.records))
	}
	rec := saver.records[0]
	if rec.SubjectID != "subj-1" || rec.Result.EfficiencyRate != 2 || rec.Result.TotalErrors != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	view := m.View()
	for _, want := range []string{"Session complete", "ER (efficiency):  2.00s", "Saved.", "Fatigue curve", "r new session"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in results view:\n%s", want, view)
		}
	}
}

func TestRestartAfterResults(t *testing.T) {
	saver := &memorySaver{}
	m, clock := newTestModel(t, saver)
	playSession(t, m, clock)
	m.Update(runes("r"))
	if m.engine.State() != engine.StateTableInProgress || m.engine.TableIndex() != 1 {
		t.Fatalf("expected fresh session, got %s table %d", m.engine.State(), m.engine.TableIndex())
	}
	if m.saved {
		t.Fatalf("saved flag should reset on restart")
	}
}

func TestSaveFailureIsReported(t *testing.T) {
	saver := &memorySaver{err: errors.New("disk full")}
	m, clock := newTestModel(t, saver)
	playSession(t, m, clock)
	if m.Err() == nil || !strings.Contains(m.Err().Error(), "disk full") {
		t.Fatalf("expected save error, got %v", m.Err())
	}
	if !strings.Contains(m.View(), "Not saved: disk full") {
		t.Fatalf("expected save failure in view")
	}
}

func TestCursorPicksAndWrongSelection(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m.Update(key(tea.KeyEnter))
	m.Update(runes("l"))
	m.Update(key(tea.KeySpace))
	if m.engine.Expected() != 3 {
		t.Fatalf("expected 3 next, got %d", m.engine.Expected())
	}

	// Up from the top row wraps to the bottom row: cell 8.
	m.Update(runes("k"))
	if m.cursor != 7 {
		t.Fatalf("expected cursor 7, got %d", m.cursor)
	}
	m.Update(key(tea.KeyEnter))
	if m.engine.TableErrors() != 1 || m.last.Correct {
		t.Fatalf("expected one error, got %d (%+v)", m.engine.TableErrors(), m.last)
	}
	if !strings.Contains(m.View(), "8 is wrong, looking for 3") {
		t.Fatalf("expected flash in view:\n%s", m.View())
	}

	m.Update(key(tea.KeyDown))
	m.Update(key(tea.KeyRight))
	if m.cursor != 2 {
		t.Fatalf("expected cursor to wrap to 2, got %d", m.cursor)
	}
}

func TestDigitsEscAndLimit(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m.Update(runes("123"))
	if string(m.digits) != "1" {
		t.Fatalf("expected one digit for a 3x3 table, got %q", string(m.digits))
	}
	m.Update(key(tea.KeyEsc))
	if len(m.digits) != 0 {
		t.Fatalf("expected digits cleared")
	}
	m.Update(runes("1"))
	m.Update(key(tea.KeyBackspace))
	if len(m.digits) != 0 {
		t.Fatalf("expected backspace to drop digit")
	}
}

func TestTickClearsExpiredFlash(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m.setFlash("oops")
	_, cmd := m.Update(tickMsg(time.Now()))
	if m.flash != "oops" || cmd == nil {
		t.Fatalf("flash should survive a tick before expiry")
	}
	m.Update(tickMsg(m.flashUntil.Add(time.Millisecond)))
	if m.flash != "" {
		t.Fatalf("expected flash cleared")
	}
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel(t, nil)
	if _, cmd := m.Update(runes("q")); cmd == nil {
		t.Fatalf("expected quit command for q")
	}
	if _, cmd := m.Update(key(tea.KeyCtrlC)); cmd == nil {
		t.Fatalf("expected quit command for ctrl+c")
	}
}

func TestGridMarksAllNumbers(t *testing.T) {
	m, _ := newTestModel(t, nil)
	grid := m.renderGrid()
	lines := strings.Split(grid, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(lines))
	}
	for n := 1; n <= 9; n++ {
		if !strings.Contains(grid, strconv.Itoa(n)) {
			t.Fatalf("grid missing %d:\n%s", n, grid)
		}
	}
}

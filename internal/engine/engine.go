// Package engine drives a five-table Schulte test session.
//
// An Engine is a synchronous state machine. The host forwards discrete events
// (Start, Submit, Advance) and reads state back; the engine never renders,
// blocks or spawns goroutines. Callers must serialize access.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/schulte/internal/generator"
	"github.com/verte-zerg/schulte/internal/model"
	"github.com/verte-zerg/schulte/internal/scoring"
)

// State is the position of a session in its lifecycle.
type State int

// Session states.
const (
	StateNotStarted State = iota
	StateTableInProgress
	StateTableComplete
	StateSessionComplete
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateTableInProgress:
		return "table in progress"
	case StateTableComplete:
		return "table complete"
	case StateSessionComplete:
		return "session complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Selection describes the outcome of one submitted number.
type Selection struct {
	Number   int
	Expected int
	Correct  bool

	// Set when the selection completed the current table.
	TableComplete bool
	TableDuration float64
	TableErrors   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for table timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine owns the state of exactly one test session.
type Engine struct {
	gen *generator.Generator
	now func() time.Time

	state State
	cfg   model.TestConfiguration

	sessionID      string
	startedAt      time.Time
	endedAt        time.Time
	tableIndex     int
	table          []int
	expected       int
	tableErrors    int
	tableStartedAt time.Time

	durations   []float64
	errorCounts []int
	result      *model.TestResult
}

// New constructs an Engine using gen for table layouts.
func New(gen *generator.Generator, opts ...Option) *Engine {
	e := &Engine{
		gen: gen,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start validates cfg, resets the session and begins table 1.
// Calling Start on a used engine abandons the previous session.
func (e *Engine) Start(cfg model.TestConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	table, err := e.gen.Generate(cfg.TableSize, cfg.SequenceType)
	if err != nil {
		return err
	}
	now := e.now()
	e.cfg = cfg
	e.sessionID = uuid.NewString()
	e.startedAt = now
	e.endedAt = time.Time{}
	e.durations = make([]float64, 0, model.TableCount)
	e.errorCounts = make([]int, 0, model.TableCount)
	e.result = nil
	e.beginTable(1, table, now)
	return nil
}

// Submit compares number with the next expected number of the current table.
// A wrong number is not an error: it is reported through Selection.Correct.
func (e *Engine) Submit(number int) (Selection, error) {
	if e.state != StateTableInProgress {
		return Selection{}, fmt.Errorf("%w: cannot submit a selection when %s", model.ErrInvalidState, e.state)
	}
	sel := Selection{Number: number, Expected: e.expected}
	if number != e.expected {
		e.tableErrors++
		return sel, nil
	}

	// Reshuffle first so a failure leaves the table untouched.
	complete := e.expected+1 > e.cfg.Cells()
	if e.cfg.ShuffleAfterEachStep && !complete {
		table, err := e.gen.ReshuffleRemaining(e.table, number)
		if err != nil {
			return Selection{}, err
		}
		e.table = table
	}
	sel.Correct = true
	e.expected++
	if !complete {
		return sel, nil
	}

	elapsed := e.now().Sub(e.tableStartedAt).Seconds()
	e.durations = append(e.durations, elapsed)
	e.errorCounts = append(e.errorCounts, e.tableErrors)
	e.state = StateTableComplete

	sel.TableComplete = true
	sel.TableDuration = elapsed
	sel.TableErrors = e.tableErrors
	return sel, nil
}

// Advance moves from a completed table to the next one, or scores the
// session after the last table. It reports whether the session is complete.
func (e *Engine) Advance() (bool, error) {
	if e.state != StateTableComplete {
		return false, fmt.Errorf("%w: cannot advance when %s", model.ErrInvalidState, e.state)
	}
	if e.tableIndex < model.TableCount {
		table, err := e.gen.Generate(e.cfg.TableSize, e.cfg.SequenceType)
		if err != nil {
			return false, err
		}
		e.beginTable(e.tableIndex+1, table, e.now())
		return false, nil
	}

	result, err := scoring.ComputeResults(e.durations, e.errorCounts)
	if err != nil {
		return false, err
	}
	e.result = &result
	e.endedAt = e.now()
	e.state = StateSessionComplete
	return true, nil
}

func (e *Engine) beginTable(index int, table []int, now time.Time) {
	e.tableIndex = index
	e.table = table
	e.expected = 1
	e.tableErrors = 0
	e.tableStartedAt = now
	e.state = StateTableInProgress
}

// Elapsed returns the running time of the current table. After a table
// completes it returns that table's recorded duration.
func (e *Engine) Elapsed() time.Duration {
	switch e.state {
	case StateTableInProgress:
		return e.now().Sub(e.tableStartedAt)
	case StateTableComplete:
		return secondsToDuration(e.durations[len(e.durations)-1])
	default:
		return 0
	}
}

// State returns the current session state.
func (e *Engine) State() State {
	return e.state
}

// Config returns the configuration of the running session.
func (e *Engine) Config() model.TestConfiguration {
	return e.cfg
}

// TableIndex returns the 1-based index of the current table, or 0 before Start.
func (e *Engine) TableIndex() int {
	return e.tableIndex
}

// Table returns a copy of the numbers currently displayed, in grid order.
func (e *Engine) Table() []int {
	return append([]int(nil), e.table...)
}

// Expected returns the next number the subject must find.
func (e *Engine) Expected() int {
	return e.expected
}

// TableErrors returns the error count of the current table.
func (e *Engine) TableErrors() int {
	return e.tableErrors
}

// Durations returns the completed table durations in seconds.
func (e *Engine) Durations() []float64 {
	return append([]float64(nil), e.durations...)
}

// ErrorCounts returns the error counts of the completed tables.
func (e *Engine) ErrorCounts() []int {
	return append([]int(nil), e.errorCounts...)
}

// Results returns the session result once all five tables are complete.
func (e *Engine) Results() (model.TestResult, bool) {
	if e.result == nil {
		return model.TestResult{}, false
	}
	return *e.result, true
}

// Record builds the persisted form of a completed session.
func (e *Engine) Record(subjectID string) (model.SessionRecord, error) {
	if e.state != StateSessionComplete {
		return model.SessionRecord{}, fmt.Errorf("%w: session is not complete (%s)", model.ErrInvalidState, e.state)
	}
	return model.SessionRecord{
		ID:          e.sessionID,
		SubjectID:   subjectID,
		StartedAt:   e.startedAt,
		EndedAt:     e.endedAt,
		Config:      e.cfg,
		Durations:   e.Durations(),
		ErrorCounts: e.ErrorCounts(),
		Result:      *e.result,
	}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

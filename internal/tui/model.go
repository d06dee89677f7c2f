// Package tui provides the Bubble Tea test runner.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/schulte/internal/engine"
	"github.com/verte-zerg/schulte/internal/model"
	"github.com/verte-zerg/schulte/internal/scoring"
	"github.com/verte-zerg/schulte/internal/stats"
)

const (
	tickInterval  = 100 * time.Millisecond
	flashDuration = time.Second
	chartWidth    = 30
)

// SessionSaver persists completed sessions.
type SessionSaver interface {
	SaveSession(ctx context.Context, rec model.SessionRecord) error
}

type tickMsg time.Time

// Model implements the Bubble Tea test UI.
type Model struct {
	engine  *engine.Engine
	saver   SessionSaver
	config  model.TestConfiguration
	subject model.Subject

	width  int
	height int

	cursor int
	digits []rune

	flash      string
	flashUntil time.Time
	last       engine.Selection

	saved   bool
	saveErr error
}

var (
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	foundStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Reverse(true)
	flashStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	typedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Underline(true)
)

// NewModel starts a session on eng and returns the UI hosting it.
func NewModel(eng *engine.Engine, saver SessionSaver, cfg model.TestConfiguration, subject model.Subject) (*Model, error) {
	if err := eng.Start(cfg); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &Model{
		engine:  eng,
		saver:   saver,
		config:  cfg,
		subject: subject,
	}, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.flash != "" && time.Time(msg).After(m.flashUntil) {
			m.flash = ""
		}
		return m, tick()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.engine.State() {
		case engine.StateTableInProgress:
			return m.updateTable(msg)
		case engine.StateTableComplete:
			return m.updateTableComplete(msg)
		case engine.StateSessionComplete:
			return m.updateResults(msg)
		}
	}
	return m, nil
}

func (m *Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	size := m.engine.Config().TableSize
	switch msg.Type {
	case tea.KeyUp:
		m.moveCursor(0, -1, size)
	case tea.KeyDown:
		m.moveCursor(0, 1, size)
	case tea.KeyLeft:
		m.moveCursor(-1, 0, size)
	case tea.KeyRight:
		m.moveCursor(1, 0, size)
	case tea.KeyEsc:
		m.digits = nil
	case tea.KeyBackspace, tea.KeyDelete:
		if len(m.digits) > 0 {
			m.digits = m.digits[:len(m.digits)-1]
		}
	case tea.KeySpace:
		m.pickCursor()
	case tea.KeyEnter:
		if len(m.digits) > 0 {
			m.pickTyped()
		} else {
			m.pickCursor()
		}
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			switch {
			case r >= '0' && r <= '9':
				if len(m.digits) < len(strconv.Itoa(m.engine.Config().Cells())) {
					m.digits = append(m.digits, r)
				}
			case r == 'h':
				m.moveCursor(-1, 0, size)
			case r == 'l':
				m.moveCursor(1, 0, size)
			case r == 'k':
				m.moveCursor(0, -1, size)
			case r == 'j':
				m.moveCursor(0, 1, size)
			case r == 'q':
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m *Model) updateTableComplete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEnter || msg.Type == tea.KeySpace:
		done, err := m.engine.Advance()
		if err != nil {
			m.setFlash(err.Error())
			return m, nil
		}
		m.cursor = 0
		if done {
			m.saveSession()
		}
	case isRune(msg, 'q'):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case isRune(msg, 'r'):
		if err := m.engine.Start(m.config); err != nil {
			m.setFlash(err.Error())
			return m, nil
		}
		m.cursor = 0
		m.digits = nil
		m.saved = false
		m.saveErr = nil
		m.flash = ""
	case isRune(msg, 'q'), msg.Type == tea.KeyEsc:
		return m, tea.Quit
	}
	return m, nil
}

func isRune(msg tea.KeyMsg, r rune) bool {
	return msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && msg.Runes[0] == r
}

func (m *Model) moveCursor(dx, dy, size int) {
	row, col := m.cursor/size, m.cursor%size
	row = (row + dy + size) % size
	col = (col + dx + size) % size
	m.cursor = row*size + col
}

func (m *Model) pickCursor() {
	table := m.engine.Table()
	if m.cursor < 0 || m.cursor >= len(table) {
		return
	}
	m.submit(table[m.cursor])
}

func (m *Model) pickTyped() {
	n, err := strconv.Atoi(string(m.digits))
	m.digits = nil
	if err != nil {
		return
	}
	m.submit(n)
}

func (m *Model) submit(n int) {
	sel, err := m.engine.Submit(n)
	if err != nil {
		m.setFlash(err.Error())
		return
	}
	m.last = sel
	if !sel.Correct {
		m.setFlash(fmt.Sprintf("%d is wrong, looking for %d", sel.Number, sel.Expected))
		return
	}
	m.flash = ""
}

func (m *Model) setFlash(text string) {
	m.flash = text
	m.flashUntil = time.Now().Add(flashDuration)
}

func (m *Model) saveSession() {
	if m.saver == nil {
		return
	}
	rec, err := m.engine.Record(m.subject.ID)
	if err == nil {
		err = m.saver.SaveSession(context.Background(), rec)
	}
	if err != nil {
		m.saveErr = err
		logErrf("failed to save session: %v\n", err)
		return
	}
	m.saved = true
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.engine.State() {
	case engine.StateTableInProgress:
		content = m.renderStatus() + "\n\n" + m.renderGrid() + "\n\n" + m.renderInput()
	case engine.StateTableComplete:
		content = m.renderTableComplete()
	case engine.StateSessionComplete:
		content = m.renderResults()
	default:
		return ""
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderStatus() string {
	segments := []string{
		fmt.Sprintf("Table %d/%d", m.engine.TableIndex(), model.TableCount),
		fmt.Sprintf("Next %d", m.engine.Expected()),
		fmt.Sprintf("Errors %d", m.engine.TableErrors()),
		fmt.Sprintf("Time %.1fs", m.engine.Elapsed().Seconds()),
	}
	return statusStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) renderGrid() string {
	cfg := m.engine.Config()
	table := m.engine.Table()
	expected := m.engine.Expected()
	width := runewidth.StringWidth(strconv.Itoa(cfg.Cells())) + 2

	rows := make([]string, 0, cfg.TableSize)
	for r := 0; r < cfg.TableSize; r++ {
		cells := make([]string, 0, cfg.TableSize)
		for c := 0; c < cfg.TableSize; c++ {
			i := r*cfg.TableSize + c
			text := centerCell(strconv.Itoa(table[i]), width)
			style := cellStyle
			switch {
			case i == m.cursor:
				style = cursorStyle
			case table[i] < expected:
				style = foundStyle
			}
			cells = append(cells, style.Render(text))
		}
		rows = append(rows, strings.Join(cells, " "))
	}
	return strings.Join(rows, "\n")
}

func centerCell(text string, width int) string {
	pad := width - runewidth.StringWidth(text)
	if pad <= 0 {
		return text
	}
	left := pad / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", pad-left)
}

func (m *Model) renderInput() string {
	if m.flash != "" {
		return flashStyle.Render(m.flash)
	}
	if len(m.digits) > 0 {
		return "Number: " + typedStyle.Render(string(m.digits))
	}
	return " "
}

func (m *Model) renderTableComplete() string {
	index := m.engine.TableIndex()
	next := "Press enter for the next table."
	if index == model.TableCount {
		next = "Press enter to see the results."
	}
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Table %d/%d complete", index, model.TableCount)),
		"",
		fmt.Sprintf("Time: %.2fs", m.last.TableDuration),
		fmt.Sprintf("Errors: %d", m.last.TableErrors),
		"",
		next,
	}
	if m.flash != "" {
		lines = append(lines, flashStyle.Render(m.flash))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderResults() string {
	result, ok := m.engine.Results()
	if !ok {
		return ""
	}
	lines := []string{
		titleStyle.Render("Session complete"),
		"",
		fmt.Sprintf("ER (efficiency):  %.2fs", result.EfficiencyRate),
		fmt.Sprintf("BP (workability): %.2f", result.WorkabilityIndex),
		fmt.Sprintf("IN (stability):   %.2f", result.StabilityIndex),
		fmt.Sprintf("Total time: %.2fs, errors: %d", result.TotalTime, result.TotalErrors),
		"",
		scoring.Interpret(result).String(),
		"",
	}
	var chart strings.Builder
	if err := stats.RenderFatigueChart(&chart, m.engine.Durations(), result.EfficiencyRate, chartWidth, false); err == nil {
		lines = append(lines, strings.TrimRight(chart.String(), "\n"))
	}
	switch {
	case m.saveErr != nil:
		lines = append(lines, "", flashStyle.Render("Not saved: "+m.saveErr.Error()))
	case m.saved:
		lines = append(lines, "", statusStyle.Render("Saved."))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	var hint string
	switch m.engine.State() {
	case engine.StateTableInProgress:
		hint = "arrows/hjkl move · enter/space pick · type a number + enter · esc clear · q quit"
	case engine.StateTableComplete:
		hint = "enter continue · q quit"
	case engine.StateSessionComplete:
		hint = "r new session · q quit"
	}
	if m.subject.Name != "" {
		hint = m.subject.Name + "  " + hint
	}
	return footerStyle.Render(hint)
}

// Err reports a failure to save the last session, if any.
func (m *Model) Err() error {
	if m.saveErr == nil {
		return nil
	}
	return errors.Join(errors.New("session was not saved"), m.saveErr)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

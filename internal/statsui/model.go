// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/schulte/internal/model"
	"github.com/verte-zerg/schulte/internal/stats"
)

const (
	tabOverview = iota
	tabSessions
	tabDetail
)

const (
	filterSubject = iota
	filterSince
	filterLast
	filterWindow
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Store is the persistence the browser reads from and deletes through.
type Store interface {
	stats.SessionLister
	DeleteSession(ctx context.Context, id string) error
}

// Model implements the Bubble Tea stats UI.
type Model struct {
	store    Store
	cfg      model.StatsConfig
	subjects []model.Subject

	report stats.Report
	errMsg string
	notice string

	tabs          []string
	activeTab     int
	viewports     []viewport.Model
	sessionTable  table.Model
	rowIDs        []string
	detailID      string
	pendingDelete string

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a stats UI model.
func NewModel(st Store, cfg model.StatsConfig, subjects []model.Subject) *Model {
	m := &Model{
		store:    st,
		cfg:      cfg,
		subjects: subjects,
		tabs:     []string{"Overview", "Sessions", "Detail"},
	}
	m.initInputs()
	m.initViewports()
	m.sessionTable = table.New(
		table.WithColumns(sessionColumns()),
		table.WithHeight(1),
		table.WithStyles(sessionTableStyles()),
	)
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.pendingDelete != "" {
			return m.confirmDelete(msg)
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
		m.notice = ""
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "/":
			return m.startFilter()
		case "enter":
			if m.activeTab == tabSessions {
				if id := m.selectedID(); id != "" {
					m.detailID = id
					m.renderTabContents()
					m.setTab(tabDetail)
				}
			}
			return m, nil
		case "d":
			if m.activeTab == tabSessions || m.activeTab == tabDetail {
				m.pendingDelete = m.targetID()
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabSessions {
				m.sessionTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSessions {
				m.sessionTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabSessions {
				var cmd tea.Cmd
				m.sessionTable, cmd = m.sessionTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Subject (name or id): "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[filterSubject].SetValue(m.subjectName(m.cfg.SubjectID))
	if m.cfg.Since != nil {
		m.filterInputs[filterSince].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[filterSince].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[filterLast].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[filterLast].SetValue("")
	}
	m.filterInputs[filterWindow].SetValue(strconv.Itoa(m.cfg.CurveWindow))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && (m.errMsg != "" || m.notice != "" || m.pendingDelete != "") {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.sessionTable.SetWidth(m.width)
	m.sessionTable.SetHeight(max(1, vpHeight-1))
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = max(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.setTab((m.activeTab + delta + count) % count)
}

func (m *Model) setTab(tab int) {
	m.activeTab = tab
	if m.activeTab == tabSessions {
		m.sessionTable.Focus()
	} else {
		m.sessionTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	subject := "any"
	if m.cfg.SubjectID != "" {
		subject = m.subjectName(m.cfg.SubjectID)
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Settings: subject=%s  since=%s  last=%s  window=%d", subject, since, last, m.cfg.CurveWindow)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Quit: q"
	if m.activeTab == tabSessions {
		help = "Nav: left/right  Select: up/down  Open: enter  Delete: d  Settings: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	switch {
	case m.pendingDelete != "":
		return m.renderHelp() + "\n" + errorStyle.Render(fmt.Sprintf("Delete session %s? y to confirm, any other key to cancel", m.pendingDelete))
	case m.errMsg != "":
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	case m.notice != "":
		return m.renderHelp() + "\n" + headerStyle.Render(m.notice)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabSessions {
		if len(m.report.Sessions) == 0 {
			return fitLines("No sessions found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.sessionTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load stats.")
		}
		return
	}
	m.errMsg = ""
	m.report = report
	m.fillSessionTable()
	if m.detailID == "" || !m.hasSession(m.detailID) {
		m.detailID = m.selectedID()
	}
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 || m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(m.renderOverview(width))
	m.viewports[tabDetail].SetContent(m.renderDetail(width))
}

func (m *Model) renderOverview(width int) string {
	sessions := m.report.Sessions
	if len(sessions) == 0 {
		return "No sessions found."
	}
	sum := m.report.Summary
	cards := []string{
		metricCard("Sessions", strconv.Itoa(sum.Sessions)),
		metricCard("Subjects", strconv.Itoa(sum.Subjects)),
		metricCard("Avg ER", fmt.Sprintf("%.2fs", sum.AvgER)),
		metricCard("Best ER", fmt.Sprintf("%.2fs", sum.BestER)),
		metricCard("Avg BP", fmt.Sprintf("%.2f", sum.AvgBP)),
		metricCard("Avg IN", fmt.Sprintf("%.2f", sum.AvgIN)),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4], cards[5])
		summary = lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}
	lines := []string{summary, ""}
	if len(m.report.Trend) > 1 {
		lines = append(lines,
			fmt.Sprintf("ER trend (window %d, lower is better)", m.cfg.CurveWindow),
			stats.Sparkline(m.report.Trend),
		)
	}
	var buf bytes.Buffer
	if err := stats.RenderComparison(&buf, lastN(sessions, 5)); err == nil {
		lines = append(lines, "", strings.TrimRight(buf.String(), "\n"))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderDetail(width int) string {
	for _, rec := range m.report.Sessions {
		if rec.ID != m.detailID {
			continue
		}
		var buf bytes.Buffer
		if err := stats.RenderSessionDetail(&buf, rec, m.subjectName(rec.SubjectID), stats.ChartWidthFor(width), true); err != nil {
			return fmt.Sprintf("Failed to render session: %v", err)
		}
		return strings.TrimRight(buf.String(), "\n")
	}
	return "Select a session on the Sessions tab."
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "Date", Width: 16},
		{Title: "Subject", Width: 14},
		{Title: "Size", Width: 4},
		{Title: "Sequence", Width: 10},
		{Title: "ER", Width: 6},
		{Title: "BP", Width: 5},
		{Title: "IN", Width: 5},
		{Title: "Errors", Width: 6},
	}
}

// fillSessionTable lists sessions newest first.
func (m *Model) fillSessionTable() {
	sessions := m.report.Sessions
	rows := make([]table.Row, 0, len(sessions))
	m.rowIDs = m.rowIDs[:0]
	for i := len(sessions) - 1; i >= 0; i-- {
		rec := sessions[i]
		rows = append(rows, table.Row{
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			truncateLine(m.subjectName(rec.SubjectID), 14),
			fmt.Sprintf("%dx%d", rec.Config.TableSize, rec.Config.TableSize),
			string(rec.Config.SequenceType),
			fmt.Sprintf("%.2f", rec.Result.EfficiencyRate),
			fmt.Sprintf("%.2f", rec.Result.WorkabilityIndex),
			fmt.Sprintf("%.2f", rec.Result.StabilityIndex),
			strconv.Itoa(rec.Result.TotalErrors),
		})
		m.rowIDs = append(m.rowIDs, rec.ID)
	}
	m.sessionTable.SetRows(rows)
	if m.sessionTable.Cursor() >= len(rows) {
		m.sessionTable.SetCursor(max(0, len(rows)-1))
	}
}

func sessionTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) selectedID() string {
	i := m.sessionTable.Cursor()
	if i < 0 || i >= len(m.rowIDs) {
		return ""
	}
	return m.rowIDs[i]
}

func (m *Model) targetID() string {
	if m.activeTab == tabDetail {
		return m.detailID
	}
	return m.selectedID()
}

func (m *Model) hasSession(id string) bool {
	for _, rec := range m.report.Sessions {
		if rec.ID == id {
			return true
		}
	}
	return false
}

func (m *Model) confirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.pendingDelete
	m.pendingDelete = ""
	if msg.String() != "y" {
		m.notice = "Delete cancelled."
		return m, nil
	}
	if err := m.store.DeleteSession(context.Background(), id); err != nil {
		m.errMsg = fmt.Sprintf("failed to delete session: %v", err)
		return m, nil
	}
	if m.detailID == id {
		m.detailID = ""
	}
	m.refreshReport()
	m.notice = fmt.Sprintf("Deleted session %s.", id)
	return m, nil
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	subjectID := ""
	if input := strings.TrimSpace(m.filterInputs[filterSubject].Value()); input != "" {
		id, ok := m.resolveSubject(input)
		if !ok {
			return fmt.Errorf("unknown subject %q", input)
		}
		subjectID = id
	}

	sinceInput := strings.TrimSpace(m.filterInputs[filterSince].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	lastInput := strings.TrimSpace(m.filterInputs[filterLast].Value())
	last := 0
	if lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}

	windowInput := strings.TrimSpace(m.filterInputs[filterWindow].Value())
	window := 0
	if windowInput != "" {
		parsed, err := strconv.Atoi(windowInput)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		window = parsed
	}

	m.cfg = model.StatsConfig{
		SubjectID:   subjectID,
		Since:       since,
		Last:        last,
		CurveWindow: window,
	}
	return nil
}

func (m *Model) resolveSubject(input string) (string, bool) {
	for _, s := range m.subjects {
		if s.ID == input || strings.EqualFold(s.Name, input) {
			return s.ID, true
		}
	}
	return "", false
}

func (m *Model) subjectName(id string) string {
	for _, s := range m.subjects {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}

func lastN(records []model.SessionRecord, n int) []model.SessionRecord {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

func nextCurveWindow(n int) int {
	if n < 1 {
		return 1
	}
	return n + 1
}

func prevCurveWindow(n int) int {
	if n <= 1 {
		return 1
	}
	return n - 1
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

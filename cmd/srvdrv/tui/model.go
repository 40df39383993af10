// Package tui is the interactive terminal front end of srvdrv
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/axondata/go-srvdrv"
	"github.com/axondata/go-srvdrv/internal/procinfo"
)

// Rows used by everything except the unit table
const chromeHeight = 7

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	staleStyle    = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	onStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	statusStyles = map[srvdrv.Status]lipgloss.Style{
		srvdrv.StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		srvdrv.StatusStopped: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		srvdrv.StatusPaused:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

// unitsMsg delivers the visible units after the one-time enumeration
type unitsMsg struct {
	units []*srvdrv.Unit
	err   error
}

// resultMsg delivers the outcome of a dispatched transition
type resultMsg struct {
	result srvdrv.Result
	ok     bool
}

// refreshedMsg follows a manual refresh of the selected unit
type refreshedMsg struct {
	err error
}

// noticeMsg replaces the status line notice
type noticeMsg string

// Model is the bubbletea model of the control panel
type Model struct {
	ctx        context.Context
	session    *srvdrv.Session
	dispatcher *srvdrv.Dispatcher
	keys       KeyMap
	help       help.Model

	search    textinput.Model
	searching bool
	spinner   spinner.Model

	units  []*srvdrv.Unit
	cursor int
	loaded bool
	notice string

	width  int
	height int
}

// New creates the model. When the session's catalog has already been
// enumerated the units are shown immediately.
func New(ctx context.Context, session *srvdrv.Session, dispatcher *srvdrv.Dispatcher) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name or display name"
	search.SetValue(session.Criteria().SearchText)

	h := help.New()
	h.Styles.ShortKey = helpStyle.Bold(true)
	h.Styles.ShortDesc = helpStyle
	h.Styles.ShortSeparator = helpStyle

	m := Model{
		ctx:        ctx,
		session:    session,
		dispatcher: dispatcher,
		keys:       DefaultKeyMap,
		help:       h,
		search:     search,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}

	if session.Catalog().Loaded() {
		units, err := session.Visible(ctx)
		m = m.withUnits(units, err)
	}
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	if m.loaded {
		return m.spinner.Tick
	}
	return tea.Batch(m.loadUnits(), m.spinner.Tick)
}

func (m Model) loadUnits() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		units, err := session.Visible(ctx)
		return unitsMsg{units: units, err: err}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.search.Width = max(msg.Width-4, 10)
		m.help.Width = msg.Width
		return m, nil

	case unitsMsg:
		return m.withUnits(msg.units, msg.err), nil

	case resultMsg:
		if msg.ok {
			m.notice = msg.result.Notice()
		}
		return m.applyFilter(), nil

	case refreshedMsg:
		if msg.err != nil {
			m.notice = "Error: " + msg.err.Error()
		}
		return m.applyFilter(), nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.SearchClear):
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.session.SetSearchText("")
		return m.applyFilter(), nil

	case key.Matches(msg, m.keys.SearchConfirm):
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.session.SetSearchText(m.search.Value())
	return m.applyFilter(), cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		return m.moveTo(m.cursor - 1), nil
	case key.Matches(msg, m.keys.Down):
		return m.moveTo(m.cursor + 1), nil
	case key.Matches(msg, m.keys.Home):
		return m.moveTo(0), nil
	case key.Matches(msg, m.keys.End):
		return m.moveTo(len(m.units) - 1), nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.ToggleServices):
		m.session.SetShowServices(!m.session.Criteria().ShowServices)
		return m.applyFilter(), nil
	case key.Matches(msg, m.keys.ToggleDrivers):
		m.session.SetShowDrivers(!m.session.Criteria().ShowDrivers)
		return m.applyFilter(), nil

	case key.Matches(msg, m.keys.Start):
		return m.dispatch(srvdrv.CmdStart)
	case key.Matches(msg, m.keys.Stop):
		return m.dispatch(srvdrv.CmdStop)
	case key.Matches(msg, m.keys.PauseContinue):
		return m.dispatch(srvdrv.CmdPauseContinue)

	case key.Matches(msg, m.keys.Refresh):
		if m.session.Busy() || m.session.Selected() == nil {
			return m, nil
		}
		ctx, session := m.ctx, m.session
		return m, func() tea.Msg {
			return refreshedMsg{err: session.Refresh(ctx)}
		}

	case key.Matches(msg, m.keys.ImageFolder):
		u := m.session.Selected()
		if u == nil {
			return m, nil
		}
		dir, err := u.ImageDir()
		if err != nil {
			m.notice = "Error: " + err.Error()
		} else {
			m.notice = "Image folder: " + dir
		}
		return m, nil

	case key.Matches(msg, m.keys.Process):
		u := m.session.Selected()
		if u == nil {
			return m, nil
		}
		ctx, pid := m.ctx, u.Snapshot().PID
		return m, func() tea.Msg {
			info, err := procinfo.Lookup(ctx, pid)
			if err != nil {
				return noticeMsg("Error: " + err.Error())
			}
			return noticeMsg(info.Summary())
		}
	}

	return m, nil
}

// dispatch hands cmd to the worker. Disabled commands are ignored, as a
// disabled button would be.
func (m Model) dispatch(cmd srvdrv.Command) (tea.Model, tea.Cmd) {
	if !m.session.Enabled(cmd) {
		return m, nil
	}

	results, err := m.dispatcher.Dispatch(cmd)
	if err != nil {
		m.notice = "Error: " + err.Error()
		return m, nil
	}

	m.notice = ""
	return m, func() tea.Msg {
		res, ok := <-results
		return resultMsg{result: res, ok: ok}
	}
}

func (m Model) withUnits(units []*srvdrv.Unit, err error) Model {
	m.loaded = true
	if err != nil {
		m.notice = "Error: " + err.Error()
		return m
	}
	m.units = units
	return m.restoreSelection()
}

// applyFilter recomputes the visible units from the cached catalog
func (m Model) applyFilter() Model {
	if !m.loaded {
		return m
	}
	units, err := m.session.Visible(m.ctx)
	return m.withUnits(units, err)
}

// restoreSelection keeps the cursor on the selected unit when it is still
// visible and otherwise selects the unit now under the cursor
func (m Model) restoreSelection() Model {
	if sel := m.session.Selected(); sel != nil {
		for i, u := range m.units {
			if u == sel {
				m.cursor = i
				return m
			}
		}
	}
	return m.moveTo(m.cursor)
}

func (m Model) moveTo(i int) Model {
	if len(m.units) == 0 {
		m.cursor = 0
		m.session.Select(nil)
		return m
	}
	m.cursor = min(max(i, 0), len(m.units)-1)
	m.session.Select(m.units[m.cursor])
	return m
}

// View implements tea.Model
func (m Model) View() string {
	if m.width == 0 || !m.loaded {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderTable())
	b.WriteString(m.renderDetail())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.help.ShortHelpView(m.keys.searchHelp()))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) renderHeader() string {
	c := m.session.Criteria()
	toggle := func(label string, on bool) string {
		if on {
			return onStyle.Render("[x] " + label)
		}
		return offStyle.Render("[ ] " + label)
	}
	return fmt.Sprintf("%s  %s  %s  %d shown",
		titleStyle.Render("Services & Drivers"),
		toggle("services", c.ShowServices),
		toggle("drivers", c.ShowDrivers),
		len(m.units))
}

func (m Model) renderTable() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-24s %-8s %-17s %s", "NAME", "KIND", "STATUS", "DISPLAY NAME")))
	b.WriteString("\n")

	if len(m.units) == 0 {
		b.WriteString("No units match the filter\n")
		return b.String()
	}

	rows := max(m.height-chromeHeight, 1)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(m.units))

	for i := start; i < end; i++ {
		u := m.units[i]
		d := u.Snapshot()
		status := fmt.Sprintf("%-17s", d.Status)
		if st, ok := statusStyles[d.Status]; ok && i != m.cursor {
			status = st.Render(status)
		}
		row := fmt.Sprintf("%-24s %-8s %s %s", truncate(d.Name, 24), d.Kind(), status, d.DisplayName)
		switch {
		case i == m.cursor:
			row = selectedStyle.Render(row)
		case u.Stale():
			row = staleStyle.Render(row)
		}
		b.WriteString(truncate(row, max(m.width, 20)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderDetail() string {
	u := m.session.Selected()
	if u == nil {
		return ""
	}
	d := u.Snapshot()
	cmds := m.session.Commands()

	var enabled []string
	for _, c := range []srvdrv.Command{srvdrv.CmdStart, srvdrv.CmdStop, srvdrv.CmdPause, srvdrv.CmdContinue} {
		if cmds.Enabled(c) {
			enabled = append(enabled, c.String())
		}
	}
	if len(enabled) == 0 {
		enabled = append(enabled, "none")
	}

	detail := fmt.Sprintf("%s: %s, start %s, pid %d, commands: %s",
		d.Name, d.Status, d.StartMode, d.PID, strings.Join(enabled, " "))
	if u.Stale() {
		detail = d.Name + ": no longer installed"
	}
	return truncate(detail, max(m.width, 20))
}

func (m Model) renderStatus() string {
	var parts []string
	if m.session.Busy() {
		parts = append(parts, m.spinner.View()+" working")
	}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

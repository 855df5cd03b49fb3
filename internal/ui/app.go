// Package ui renders the classifier session as a full-screen terminal program:
// a header with the run status, a panel with the current guess and frame
// source, and a scrollback pane holding the console lines.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/yildizm/glimpse/internal/console"
	"github.com/yildizm/glimpse/internal/loop"
	"github.com/yildizm/glimpse/internal/monitor"
)

type status int

const (
	statusLoading status = iota
	statusRunning
	statusStopped
	statusFailed
)

func (s status) String() string {
	switch s {
	case statusLoading:
		return "loading"
	case statusRunning:
		return "running"
	case statusStopped:
		return "stopped"
	case statusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// chrome is the number of rows used by everything but the scrollback pane.
const chrome = 8

// statsInterval is how often loop timings are refreshed in the footer.
const statsInterval = time.Second

type statsTickMsg time.Time

func statsTick() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

// Options configures a Model
type Options struct {
	Capacity  int
	ModelName string
	Source    string
	Theme     Theme
	Color     bool
	// Monitor supplies the timings shown in the footer (optional)
	Monitor *monitor.Monitor
	// Cancel stops the capture loop when the user quits.
	Cancel context.CancelFunc
}

// Model is the bubbletea model of a classifier session
type Model struct {
	state     console.State
	modelName string
	source    string
	cancel    context.CancelFunc
	monitor   *monitor.Monitor
	stats     string

	styles   *styles
	viewport viewport.Model
	spinner  spinner.Model

	width    int
	height   int
	ready    bool
	loading  bool
	done     bool
	err      error
	quitting bool
}

// New creates a session model
func New(opts Options) *Model {
	st := newStyles(opts.Theme, opts.Color)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = st.statusStyle(statusLoading)

	return &Model{
		state:     console.New(opts.Capacity),
		modelName: opts.ModelName,
		source:    opts.Source,
		cancel:    opts.Cancel,
		monitor:   opts.Monitor,
		styles:    st,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		loading:   true,
	}
}

// Init starts the spinner on the alternate screen
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.EnterAltScreen, m.spinner.Tick}
	if m.monitor != nil {
		cmds = append(cmds, statsTick())
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case EventsMsg:
		m.apply(msg.Events)
		return m, nil

	case DoneMsg:
		m.done = true
		m.loading = false
		m.err = msg.Err
		return m, nil

	case statsTickMsg:
		if m.monitor == nil || m.done {
			return m, nil
		}
		m.stats = m.monitor.Snapshot().Summary()
		return m, statsTick()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) apply(events []console.Event) {
	for _, ev := range events {
		if w, ok := ev.(console.WriteLine); ok {
			if w.Line == loop.LineLoaded || console.IsError(w.Line) {
				m.loading = false
			}
		}
	}
	m.state = console.Apply(m.state, events...)

	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderLines())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize() {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.viewport.SetContent(m.renderLines())
	m.viewport.GotoBottom()
}

// State returns the current console state
func (m *Model) State() console.State {
	return m.state
}

// Err returns the error the loop finished with, if any
func (m *Model) Err() error {
	return m.err
}

func (m *Model) status() status {
	switch {
	case m.err != nil:
		return statusFailed
	case m.done:
		return statusStopped
	case m.loading:
		return statusLoading
	default:
		return statusRunning
	}
}

// View renders the model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	if !m.ready {
		loading := m.styles.title.Render("Initializing glimpse...")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, loading)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderPanel(),
		m.styles.pane.Render(m.viewport.View()),
		m.renderFooter(),
	)
}

func (m *Model) renderHeader() string {
	st := m.status()
	indicator := st.String()
	if st == statusLoading {
		indicator = m.spinner.View() + " " + indicator
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.title.Render("glimpse"),
		m.styles.muted.Render(" · "),
		m.styles.statusStyle(st).Render(indicator),
	)
}

func (m *Model) renderPanel() string {
	guess := m.styles.muted.Render("waiting for first frame")
	if m.state.Guess != "" {
		guess = m.styles.guess.Render(m.state.Guess)
	}

	source := m.source
	if source == "" {
		source = "none"
	}
	details := m.styles.label.Render("Model: ") + m.styles.value.Render(m.modelName) +
		m.styles.muted.Render("   ") +
		m.styles.label.Render("Source: ") + m.styles.value.Render(source)

	body := m.styles.label.Render("Guess: ") + guess + "\n" + details

	width := m.width - 2
	if width < 20 {
		width = 20
	}
	return m.styles.panel.Width(width).Render(body)
}

func (m *Model) renderFooter() string {
	help := "q quit · ↑/↓ scroll"
	if m.stats != "" {
		help += " · " + m.stats
	}
	if m.state.Discarded > 0 {
		help += fmt.Sprintf(" · %d discarded", m.state.Discarded)
	}
	return m.styles.muted.Render(help)
}

// renderLines renders each retained line prefixed with its stable key
func (m *Model) renderLines() string {
	if m.state.Len() == 0 {
		return ""
	}

	rendered := make([]string, 0, m.state.Len())
	for i, line := range m.state.Lines {
		key := m.styles.muted.Render(fmt.Sprintf("%5d", m.state.Key(i)))
		style := m.styles.line
		if console.IsError(line) {
			style = m.styles.errLine
		}
		rendered = append(rendered, key+" "+style.Render(line))
	}
	return strings.Join(rendered, "\n")
}

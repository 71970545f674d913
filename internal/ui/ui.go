// Package ui provides the terminal user interface using Bubble Tea.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-drive/internal/logging"
	"github.com/litescript/ls-drive/internal/session"
	"github.com/litescript/ls-drive/internal/version"
)

const (
	// Frames longer than this (e.g. after a terminal suspend) are capped so
	// the vehicle does not jump.
	maxFrameElapsed = time.Second

	headerLines = 1
	footerLines = 1
)

// Msg types for Bubble Tea
type (
	// FrameMsg drives playback and camera animation.
	FrameMsg time.Time

	// completionMsg carries a finished session task.
	completionMsg struct {
		done session.Completion
	}
)

// Options holds UI settings.
type Options struct {
	FrameInterval time.Duration
	SpeedStepKmh  float64
}

// DefaultOptions returns the default UI settings.
func DefaultOptions() Options {
	return Options{
		FrameInterval: 33 * time.Millisecond,
		SpeedStepKmh:  10,
	}
}

// Model is the root Bubble Tea model.
type Model struct {
	// Dependencies
	ctx     context.Context
	ctrl    *session.Controller
	mapView *MapView
	log     *logging.Logger
	opts    Options

	// UI state
	width     int
	height    int
	ready     bool
	lastFrame time.Time
	inflight  int // Tasks running off the UI loop
	animTick  int
}

// New creates the root UI model. The controller must draw on mapView.
func New(ctx context.Context, ctrl *session.Controller, mapView *MapView, opts Options, log *logging.Logger) Model {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultOptions().FrameInterval
	}
	if opts.SpeedStepKmh <= 0 {
		opts.SpeedStepKmh = DefaultOptions().SpeedStepKmh
	}
	if log == nil {
		log = logging.Discard()
	}
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		mapView: mapView,
		log:     log,
		opts:    opts,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return frameCmd(m.opts.FrameInterval)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg)...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.mapView.SetSize(m.mapWidth(), m.contentHeight())

	case FrameMsg:
		now := time.Time(msg)
		elapsed := time.Duration(0)
		if !m.lastFrame.IsZero() {
			elapsed = now.Sub(m.lastFrame)
		}
		if elapsed > maxFrameElapsed {
			elapsed = maxFrameElapsed
		}
		m.lastFrame = now
		m.animTick++

		if m.mapView.Animating() {
			m.mapView.Step(now)
		}
		cmds = append(cmds, m.run(m.ctrl.Advance(elapsed))...)
		cmds = append(cmds, frameCmd(m.opts.FrameInterval))

	case completionMsg:
		m.inflight--
		cmds = append(cmds, m.run(m.ctrl.Complete(msg.done))...)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		m.mapView.MoveCursor(0, -1)
	case "down", "j":
		m.mapView.MoveCursor(0, 1)
	case "left", "h":
		m.mapView.MoveCursor(-1, 0)
	case "right", "l":
		m.mapView.MoveCursor(1, 0)
	case "K", "J", "H", "L":
		m.panQuarter(msg.String())

	case "enter", " ":
		cmds = append(cmds, m.run(m.ctrl.Click(m.mapView.Cursor()))...)

	case "s":
		if m.ctrl.View().Running {
			m.ctrl.Stop()
		} else {
			m.ctrl.Start()
		}
	case "c":
		m.ctrl.Clear()
	case "f":
		m.ctrl.ToggleFollow()

	case "+", "=":
		m.ctrl.SetSpeed(m.ctrl.Speed() + m.opts.SpeedStepKmh)
	case "-", "_":
		m.ctrl.SetSpeed(m.ctrl.Speed() - m.opts.SpeedStepKmh)

	case "]":
		m.mapView.ZoomBy(1)
	case "[":
		m.mapView.ZoomBy(-1)
	}

	return m, tea.Batch(cmds...)
}

// panQuarter pans by a quarter of the map view in the vim direction key.
func (m Model) panQuarter(key string) {
	w, h := m.mapView.Size()
	switch key {
	case "K":
		m.mapView.Pan(0, -h/4)
	case "J":
		m.mapView.Pan(0, h/4)
	case "H":
		m.mapView.Pan(-w/4, 0)
	case "L":
		m.mapView.Pan(w/4, 0)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) []tea.Cmd {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.mapView.ZoomBy(1)
	case tea.MouseButtonWheelDown:
		m.mapView.ZoomBy(-1)
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress {
			return nil
		}
		if !m.mapView.SetCursorCell(msg.X, msg.Y-headerLines) {
			return nil
		}
		return m.run(m.ctrl.Click(m.mapView.Cursor()))
	}
	return nil
}

// run turns session tasks into commands that report back as completionMsg.
func (m *Model) run(tasks []session.Task) []tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(tasks))
	ctx := m.ctx
	for _, t := range tasks {
		m.inflight++
		cmds = append(cmds, func() tea.Msg {
			return completionMsg{done: t(ctx)}
		})
	}
	return cmds
}

func (m Model) mapWidth() int {
	if m.width >= hudWidth+40 {
		return m.width - hudWidth
	}
	return m.width
}

func (m Model) contentHeight() int {
	h := m.height - headerLines - footerLines
	if h < 0 {
		return 0
	}
	return h
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	v := m.ctrl.View()
	content := m.mapView.View()
	if m.mapWidth() < m.width {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, renderHUD(v, m.ctrl.Store().RecentEvents(hudMaxEvents), m.contentHeight()))
	}

	return m.renderHeader(v) + "\n" + content + "\n" + m.renderFooter()
}

func (m Model) renderHeader(v session.View) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9D4EDD"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	cursor := m.mapView.Cursor()
	parts := []string{
		titleStyle.Render("ls-drive") + dimStyle.Render(" v"+version.Version),
		dimStyle.Render(fmt.Sprintf("z%d", m.mapView.Zoom())),
		dimStyle.Render("+ " + cursor.String()),
	}
	if v.SessionID != "" {
		parts = append(parts, dimStyle.Render("session "+v.SessionID[:8]))
	}
	if m.mapWidth() == m.width {
		// No room for the HUD panel; show the essentials inline.
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%.0f km/h", v.SpeedKmh)))
		if v.HUD.ETA != "" {
			parts = append(parts, dimStyle.Render("ETA "+v.HUD.ETA))
		}
	}
	return " " + strings.Join(parts, dimStyle.Render(" | "))
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7B2CBF"))

	status := ""
	if m.inflight > 0 {
		// Animated spinner frames
		spinnerFrames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		status = accentStyle.Render(spinnerFrames[m.animTick%len(spinnerFrames)]) + "  "
	}

	help := dimStyle.Render("arrows/hjkl: move | HJKL: pan | enter: pick | s: stop/start | c: clear | f: follow | +/-: speed | [/]: zoom | q: quit")
	return " " + status + help
}

func frameCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

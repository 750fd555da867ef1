// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pitchosc/internal/audio"
	"pitchosc/internal/events"
	"pitchosc/internal/pitch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true).
			Width(8)

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0533D"))
)

const (
	defaultRefresh = 50 * time.Millisecond
	meterWidth     = 41 // odd, so the centre slot marks 0 cents
	chromeHeight   = 6
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	MonitorScreen ScreenType = iota
	DeviceScreen
)

// StatusSource publishes tracker status, typically an *audio.Snapshot.
type StatusSource interface {
	Load() audio.Status
}

// PlayerControl is the part of player.Player the monitor drives.
type PlayerControl interface {
	Files() []string
	Open(index int) error
	SetLooping(loop bool)
	Looping() bool
	Playing() (string, bool)
}

// Options wires the monitor to the running tracker. Only Status is
// required.
type Options struct {
	Status  StatusSource
	Player  PlayerControl
	Loop    *events.Loop
	Devices func() ([]audio.Device, error)
	Refresh time.Duration

	InputDevice  int
	OutputDevice int
	FileIndex    int
}

type tickMsg time.Time

// Model is the Bubble Tea model of the tracker monitor.
type Model struct {
	opts Options

	status     audio.Status
	note       pitch.Note
	hasNote    bool
	loopStats  events.Stats
	fileIndex  int
	playerErr  error
	periodic   progress.Model
	help       help.Model
	activeView ScreenType

	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
}

func NewModel(opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = defaultRefresh
	}
	return Model{
		opts:      opts,
		fileIndex: opts.FileIndex,
		periodic:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(meterWidth), progress.WithoutPercentage()),
		help:      help.New(),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker and the first device scan.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.fetchDevices())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.viewport.SetContent(m.renderDevices())

	case tickMsg:
		m.refresh()
		cmds = append(cmds, m.tick())

	case devicesMsg:
		m.devices = msg.devices
		m.selectedIndex = min(m.selectedIndex, max(len(m.devices)-1, 0))
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Screen):
			m.activeView = (m.activeView + 1) % 2
		case m.activeView == MonitorScreen:
			m.handlePlayerKey(msg)
		case m.activeView == DeviceScreen:
			cmds = append(cmds, m.handleDeviceKey(msg))
		}
	}

	if m.activeView == DeviceScreen {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) refresh() {
	m.status = m.opts.Status.Load()
	m.note, m.hasNote = pitch.NearestNote(m.status.Frequency)
	if m.opts.Loop != nil {
		m.loopStats = m.opts.Loop.Stats()
	}
}

func (m *Model) handlePlayerKey(msg tea.KeyMsg) {
	p := m.opts.Player
	if p == nil {
		return
	}
	n := len(p.Files())
	if n == 0 {
		return
	}

	switch {
	case key.Matches(msg, keys.Next):
		m.fileIndex = (m.fileIndex + 1) % n
		m.playerErr = p.Open(m.fileIndex)
	case key.Matches(msg, keys.Prev):
		m.fileIndex = (m.fileIndex - 1 + n) % n
		m.playerErr = p.Open(m.fileIndex)
	case key.Matches(msg, keys.Loop):
		p.SetLooping(!p.Looping())
	}
}

func (m *Model) handleDeviceKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Up):
		if m.selectedIndex > 0 {
			m.selectedIndex--
			m.viewport.SetContent(m.renderDevices())
		}
	case key.Matches(msg, keys.Down):
		if m.selectedIndex < len(m.devices)-1 {
			m.selectedIndex++
			m.viewport.SetContent(m.renderDevices())
		}
	case key.Matches(msg, keys.Refresh):
		return m.fetchDevices()
	}
	return nil
}

// View renders the UI
func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, body string
	switch m.activeView {
	case DeviceScreen:
		title = titleStyle.Render("Audio Devices")
		if m.ready {
			body = m.viewport.View()
		} else {
			body = m.renderDevices()
		}
	default:
		title = titleStyle.Render("Pitch Tracker")
		body = m.renderMonitor()
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, m.help.View(keys))
}

func (m Model) renderMonitor() string {
	var sb strings.Builder
	st := m.status

	if m.hasNote {
		fmt.Fprintf(&sb, "%s %s Hz\n", noteStyle.Render(m.note.Label()),
			infoStyle.Render(fmt.Sprintf("%8.2f", st.Frequency)))
		fmt.Fprintf(&sb, "%s %+3.0f cents\n", centsMeter(m.note.Cents), m.note.Cents)
	} else {
		sb.WriteString(dimStyle.Render("waiting for a periodic signal") + "\n\n")
	}

	fmt.Fprintf(&sb, "\n%s periodicity %.2f\n", m.periodic.ViewAs(clamp01(st.Periodicity)), st.Periodicity)

	gate := dimStyle.Render("closed")
	if st.GateOpen {
		gate = highlightStyle.Render("open")
	}
	fmt.Fprintf(&sb, "gate %s   detections %d   blocks %d\n", gate, st.Detections, st.Blocks)

	if m.opts.Loop != nil {
		ls := m.loopStats
		fmt.Fprintf(&sb, "events %d   forwarded %d", ls.Handled, ls.Forwarded)
		if ls.SendErrors > 0 {
			sb.WriteString(errorStyle.Render(fmt.Sprintf("   send errors %d", ls.SendErrors)))
		}
		sb.WriteString("\n")
	}

	if p := m.opts.Player; p != nil {
		name, playing := p.Playing()
		state := "stopped"
		if playing {
			state = filepath.Base(name)
		}
		loop := "once"
		if p.Looping() {
			loop = "loop"
		}
		fmt.Fprintf(&sb, "player %s (%s)\n", state, loop)
		if m.playerErr != nil {
			sb.WriteString(errorStyle.Render(m.playerErr.Error()) + "\n")
		}
	}
	return sb.String()
}

// centsMeter draws a marker for cents in [-50, 50] over a fixed-width bar.
func centsMeter(cents float64) string {
	pos := int(math.Round((cents + 50) / 100 * (meterWidth - 1)))
	pos = max(0, min(meterWidth-1, pos))

	bar := []rune(strings.Repeat("─", meterWidth))
	bar[meterWidth/2] = '┼'
	bar[pos] = '●'

	style := highlightStyle
	if math.Abs(cents) > 15 {
		style = errorStyle
	}
	return style.Render(string(bar))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}

// Run launches the monitor and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

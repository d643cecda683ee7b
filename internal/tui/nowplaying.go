// Package tui renders the now-playing view: a compact terminal
// controller for one playback bridge.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justchokingaround/vidbridge/internal/clipboard"
	"github.com/justchokingaround/vidbridge/internal/playback"
	"github.com/justchokingaround/vidbridge/internal/tui/styles"
	"github.com/justchokingaround/vidbridge/internal/tui/utils"
)

// refreshInterval drives the view refresh. The bridge polls the
// engine on its own cadence; this only controls how often the screen
// redraws.
const refreshInterval = 100 * time.Millisecond

// noticeDuration is how long transient notices stay on screen.
const noticeDuration = 2 * time.Second

// KeyMap defines the now-playing key bindings
type KeyMap struct {
	TogglePlay key.Binding
	SeekBack   key.Binding
	SeekFwd    key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Stop       key.Binding
	CopyURL    key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		TogglePlay: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		SeekBack: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "seek back"),
		),
		SeekFwd: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "seek forward"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "volume down"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		CopyURL: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy url"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type refreshMsg time.Time

// Model is the now-playing view
type Model struct {
	bridge *playback.Bridge
	clip   clipboard.Service
	keys   KeyMap

	seekStep   float64
	volumeStep float64

	progressBar progress.Model
	width       int

	notice   string
	noticeAt time.Time

	quitting bool
}

// New creates the now-playing model for a bridge.
func New(bridge *playback.Bridge, clip clipboard.Service, seekStep float64) Model {
	prog := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	if seekStep <= 0 {
		seekStep = 10
	}

	return Model{
		bridge:      bridge,
		clip:        clip,
		keys:        DefaultKeyMap(),
		seekStep:    seekStep,
		volumeStep:  0.05,
		progressBar: prog,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshTick(), m.progressBar.Init())
}

func (m Model) refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		barWidth := msg.Width - 12
		if barWidth < 10 {
			barWidth = 10
		}
		if barWidth > 60 {
			barWidth = 60
		}
		m.progressBar.Width = barWidth
		return m, nil

	case refreshMsg:
		if m.quitting {
			return m, nil
		}
		return m, m.refreshTick()

	case clipboard.WrittenMsg:
		if msg.Err != nil {
			m.setNotice("copy failed")
		} else {
			m.setNotice("copied source URL")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.TogglePlay):
		if m.bridge.IsPlaying(ctx) {
			_ = m.bridge.Pause(ctx)
		} else {
			_ = m.bridge.Play(ctx)
		}

	case key.Matches(msg, m.keys.SeekBack):
		_ = m.bridge.SeekBackward(ctx, m.seekStep)

	case key.Matches(msg, m.keys.SeekFwd):
		_ = m.bridge.SeekForward(ctx, m.seekStep)

	case key.Matches(msg, m.keys.VolumeUp):
		_ = m.bridge.SetVolume(ctx, clampVolume(m.bridge.Info().Volume+m.volumeStep))

	case key.Matches(msg, m.keys.VolumeDown):
		_ = m.bridge.SetVolume(ctx, clampVolume(m.bridge.Info().Volume-m.volumeStep))

	case key.Matches(msg, m.keys.Stop):
		_ = m.bridge.Stop(ctx)

	case key.Matches(msg, m.keys.CopyURL):
		if src := m.bridge.Source(); src != nil {
			return m, m.clip.Write(src.URI)
		}
		m.setNotice("nothing loaded")
	}

	return m, nil
}

func (m *Model) setNotice(text string) {
	m.notice = text
	m.noticeAt = time.Now()
}

// View renders the now-playing screen
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	info := m.bridge.Info()

	title := "no media"
	if src := m.bridge.Source(); src != nil {
		title = src.Title
		if title == "" {
			title = src.URI
		}
	}
	titleWidth := m.width - 8
	if titleWidth < 20 {
		titleWidth = 20
	}
	titleBar := styles.TitleStyle.Render(utils.Truncate(title, titleWidth))

	duration := 0.0
	if vi := m.bridge.VideoInfo(); vi != nil {
		duration = vi.Duration
	}

	clock := fmt.Sprintf("%s / %s",
		utils.FormatClock(info.Position),
		utils.FormatClock(duration),
	)
	volume := fmt.Sprintf("vol %3.0f%%", info.Volume*100)

	statusLine := lipgloss.JoinHorizontal(lipgloss.Center,
		statusBadge(info.Status),
		styles.MetadataStyle.Render("  "+clock+"  "),
		styles.MetadataStyle.Render(volume),
	)

	bar := m.progressBar.ViewAs(info.PositionFraction)

	lines := []string{
		titleBar,
		"",
		statusLine,
		bar,
	}

	if info.Err != "" {
		lines = append(lines, styles.ErrorStyle.Render(utils.Truncate("error: "+info.Err, m.contentWidth())))
	}
	if m.notice != "" && time.Since(m.noticeAt) < noticeDuration {
		lines = append(lines, styles.NoticeStyle.Render(m.notice))
	}

	lines = append(lines, "",
		styles.HelpStyle.Render("space play/pause • ←/→ seek • ↑/↓ volume • s stop • c copy url • q quit"),
	)

	return styles.AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) contentWidth() int {
	w := m.width - 8
	if w < 20 {
		return 20
	}
	return w
}

func statusBadge(status playback.Status) string {
	switch status {
	case playback.StatusPlaying:
		return styles.StatusPlayingStyle.Render("▶ playing")
	case playback.StatusPaused:
		return styles.StatusPausedStyle.Render("⏸ paused")
	default:
		return styles.StatusStoppedStyle.Render("■ stopped")
	}
}

// clampVolume keeps volume adjustments inside the engine's range.
func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package clipboard copies text to the system clipboard, with
// platform-specific fallbacks for environments where the primary
// clipboard package fails (headless X11, WSL, Wayland).
package clipboard

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// Service provides clipboard write access for the TUI.
type Service interface {
	// Write copies text to the system clipboard. The returned tea.Cmd
	// performs any fallback work off the update loop.
	Write(text string) tea.Cmd
}

// Logger is the subset of slog used by the clipboard service.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

type clipboardService struct {
	logger  Logger
	command string
}

// Option configures the clipboard service.
type Option func(*clipboardService)

// WithCommand overrides platform tool detection with a user-provided
// command. The text to copy is piped to its stdin.
func WithCommand(command string) Option {
	return func(s *clipboardService) { s.command = command }
}

// NewService creates a clipboard service.
func NewService(logger Logger, opts ...Option) Service {
	s := &clipboardService{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WrittenMsg reports a completed clipboard write.
type WrittenMsg struct {
	Text string
	Err  error
}

func (s *clipboardService) Write(text string) tea.Cmd {
	if err := clipboard.WriteAll(text); err == nil {
		s.logger.Debug("copied to clipboard", "text_length", len(text))
		return func() tea.Msg { return WrittenMsg{Text: text} }
	}

	// The clipboard package needs a display server on Linux; fall back
	// to whatever tool the platform offers.
	return func() tea.Msg {
		err := s.copyWithSystemTool(text)
		if err != nil {
			s.logger.Error("failed to copy to clipboard", "error", err, "text_length", len(text))
		}
		return WrittenMsg{Text: text, Err: err}
	}
}

func (s *clipboardService) copyWithSystemTool(text string) error {
	var cmd *exec.Cmd

	if s.command != "" {
		parts := parseCommand(s.command)
		if len(parts) == 0 {
			return fmt.Errorf("invalid clipboard command: %q", s.command)
		}
		cmd = exec.Command(parts[0], parts[1:]...)
		cmd.Stdin = strings.NewReader(text)
		return cmd.Run()
	}

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("clip.exe")
	case "darwin":
		cmd = exec.Command("pbcopy")
	default:
		if isWSL() {
			cmd = exec.Command("clip.exe")
		} else if commandExists("wl-copy") {
			cmd = exec.Command("wl-copy")
		} else if commandExists("xclip") {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else {
			cmd = exec.Command("xsel", "--clipboard", "--input")
		}
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// isWSL checks if we are running in Windows Subsystem for Linux.
func isWSL() bool {
	version, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	v := strings.ToLower(string(version))
	return strings.Contains(v, "microsoft") || strings.Contains(v, "wsl")
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// parseCommand splits a command string into argv, respecting single
// and double quotes.
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var inQuotes bool
	var quoteChar rune

	for _, char := range command {
		switch {
		case char == '\'' || char == '"':
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
			} else {
				current.WriteRune(char)
			}
		case char == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

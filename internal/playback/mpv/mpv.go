// Package mpv adapts mpv into the playback.NativePlayer contract.
// Each load spawns an mpv process bound to a private IPC endpoint and
// drives it over mpv's JSON IPC protocol via gopv. Engine events
// (ready, ended, errors) are synthesized from property observation
// and delivered through the registered handlers.
package mpv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/diniamo/gopv"

	"github.com/justchokingaround/vidbridge/internal/playback"
)

const (
	// monitorInterval is how often the event monitor inspects mpv
	// properties to synthesize ready/ended events.
	monitorInterval = 200 * time.Millisecond

	// ipcTimeout bounds how long a spawned mpv gets to expose its IPC
	// endpoint. Named pipes are slower to appear than unix sockets.
	ipcTimeout     = 5 * time.Second
	ipcPipeTimeout = 10 * time.Second
)

// Options configures the mpv adapter.
type Options struct {
	// Debug keeps mpv's normal message verbosity instead of warn-only.
	Debug bool

	// LoadUserConfig lets mpv read the user's own mpv.conf. Off by
	// default so user settings cannot interfere with IPC control.
	LoadUserConfig bool

	// ExtraArgs are appended to every mpv invocation, after the args
	// derived from the video source.
	ExtraArgs []string
}

// Player drives one mpv process. It implements playback.NativePlayer.
type Player struct {
	mu sync.Mutex

	opts     Options
	platform Platform
	logger   *slog.Logger

	handlers playback.EventHandlers

	client       *gopv.Client
	cmd          *exec.Cmd
	ipcConfig    *IPCConfig
	monitorStop  context.CancelFunc
	clientClosed bool
	disposed     bool
}

// NewPlayer creates an mpv-backed native player. It fails when no mpv
// binary can be found for the platform.
func NewPlayer(opts Options, logger *slog.Logger) (*Player, error) {
	platform := DetectPlatform()
	if _, err := FindExecutable(platform); err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Player{
		opts:     opts,
		platform: platform,
		logger:   logger,
	}, nil
}

// SetHandlers registers the inbound event callbacks.
func (p *Player) SetHandlers(h playback.EventHandlers) {
	p.mu.Lock()
	p.handlers = h
	p.mu.Unlock()
}

func (p *Player) handlersSnapshot() playback.EventHandlers {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers
}

// Load spawns a fresh mpv instance for src and connects to its IPC
// endpoint. mpv starts paused; Play begins playback. Any previous
// instance is torn down first.
func (p *Player) Load(ctx context.Context, src playback.VideoSource) error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return playback.ErrDisposed
	}
	p.teardownLocked()

	mpvExec := Executable(p.platform)
	if _, err := exec.LookPath(mpvExec); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("mpv executable not found in PATH (%s): %w", mpvExec, err)
	}

	ipcConfig, err := NewIPCConfig(p.platform)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to generate IPC config: %w", err)
	}
	p.ipcConfig = ipcConfig

	args := p.buildArgs(ipcConfig, src)

	cmd := exec.Command(mpvExec, args...)
	// Fully detach mpv from the terminal: it must not steal stdin or
	// corrupt the controlling TUI with its output.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		p.cleanupIPCLocked()
		p.mu.Unlock()
		return fmt.Errorf("failed to start %s: %w", mpvExec, err)
	}
	p.cmd = cmd
	p.mu.Unlock()

	if err := p.waitForIPC(ctx, ipcConfig); err != nil {
		p.killProcess(cmd)
		p.mu.Lock()
		p.cleanupIPCLocked()
		p.cmd = nil
		p.mu.Unlock()
		return fmt.Errorf("timeout waiting for mpv IPC at %s: %w", ipcConfig.Address, err)
	}

	client, err := gopv.Connect(ipcConfig.ConnectionString(), func(err error) {
		if h := p.handlersSnapshot(); h.OnError != nil {
			h.OnError(err.Error())
		}
	})
	if err != nil {
		p.killProcess(cmd)
		p.mu.Lock()
		p.cleanupIPCLocked()
		p.cmd = nil
		p.mu.Unlock()
		return fmt.Errorf("failed to connect to mpv IPC at %s: %w", ipcConfig.Address, err)
	}

	monitorCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.client = client
	p.clientClosed = false
	p.monitorStop = cancel
	p.mu.Unlock()

	go p.monitorEvents(monitorCtx, client)
	go p.watchProcess(cmd)

	p.logger.Debug("mpv instance started", "uri", src.URI, "ipc", ipcConfig.Address)
	return nil
}

// Play resumes playback by clearing mpv's pause property.
func (p *Player) Play(ctx context.Context) error {
	client, err := p.requireClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "pause", false); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}
	return nil
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	client, err := p.requireClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "pause", true); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	return nil
}

// Stop pauses and rewinds to the start. The media stays loaded so a
// subsequent Play restarts from the beginning without a reload.
func (p *Player) Stop(ctx context.Context) error {
	client, err := p.requireClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "pause", true); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	if _, err := client.Request("set_property", "time-pos", 0.0); err != nil {
		return fmt.Errorf("failed to rewind: %w", err)
	}
	return nil
}

// IsPlaying reports whether mpv is actively playing.
func (p *Player) IsPlaying(ctx context.Context) (bool, error) {
	client, err := p.requireClient()
	if err != nil {
		return false, err
	}
	result, err := client.Request("get_property", "pause")
	if err != nil {
		return false, fmt.Errorf("failed to query pause state: %w", err)
	}
	paused, ok := result.(bool)
	if !ok {
		return false, nil
	}
	return !paused, nil
}

// SeekTo moves the playback cursor to an absolute position in seconds.
func (p *Player) SeekTo(ctx context.Context, seconds float64) error {
	client, err := p.requireClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "time-pos", seconds); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// SetVolume sets the playback volume. The bridge's [0,1] domain maps
// to mpv's 0..100 scale.
func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	client, err := p.requireClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "volume", volume*100); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

// VideoInfo fetches the loaded media's intrinsic properties.
func (p *Player) VideoInfo(ctx context.Context) (*playback.VideoInfo, error) {
	client, err := p.requireClient()
	if err != nil {
		return nil, err
	}

	duration, err := getFloat(client, "duration")
	if err != nil {
		return nil, fmt.Errorf("failed to query duration: %w", err)
	}

	info := &playback.VideoInfo{Duration: duration}
	// Width/height/title are best effort; audio-only or still-loading
	// media legitimately lacks them.
	if w, err := getFloat(client, "width"); err == nil {
		info.Width = int(w)
	}
	if h, err := getFloat(client, "height"); err == nil {
		info.Height = int(h)
	}
	if title, err := getString(client, "media-title"); err == nil {
		info.Title = title
	}
	return info, nil
}

// Position returns the current playback cursor in seconds.
func (p *Player) Position(ctx context.Context) (float64, error) {
	client, err := p.requireClient()
	if err != nil {
		return 0, err
	}
	pos, err := getFloat(client, "time-pos")
	if err != nil {
		return 0, fmt.Errorf("failed to query position: %w", err)
	}
	return pos, nil
}

// Dispose quits mpv and releases the IPC endpoint. Idempotent.
func (p *Player) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return nil
	}
	p.disposed = true
	p.teardownLocked()
	return nil
}

// teardownLocked shuts down the current mpv instance. Must be called
// with p.mu held.
func (p *Player) teardownLocked() {
	if p.monitorStop != nil {
		p.monitorStop()
		p.monitorStop = nil
	}

	if p.client != nil && !p.clientClosed {
		p.clientClosed = true
		client := p.client
		p.client = nil
		// Ask mpv to quit, but never wait long: the kill below cleans
		// up regardless. gopv closes itself on EOF from the dead
		// process, so Close is not called here to avoid a double close.
		go func() {
			done := make(chan struct{})
			go func() {
				_, _ = client.Request("quit")
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
			}
		}()
	}

	if p.cmd != nil {
		p.killProcess(p.cmd)
		p.cmd = nil
	}

	p.cleanupIPCLocked()
}

func (p *Player) killProcess(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// cleanupIPCLocked removes the unix socket file, if any. Must be
// called with p.mu held.
func (p *Player) cleanupIPCLocked() {
	if p.ipcConfig != nil && p.ipcConfig.IsSocket {
		_ = os.Remove(p.ipcConfig.Address)
	}
	p.ipcConfig = nil
}

func (p *Player) requireClient() (*gopv.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return nil, playback.ErrDisposed
	}
	if p.client == nil {
		return nil, fmt.Errorf("no media loaded")
	}
	return p.client, nil
}

// buildArgs assembles the mpv command line for a source. mpv starts
// paused and idle so loading never auto-plays and reaching the end of
// the file keeps the process alive for a restart.
func (p *Player) buildArgs(ipcConfig *IPCConfig, src playback.VideoSource) []string {
	args := []string{
		ipcConfig.IPCArgument(),
		"--idle=yes",
		"--pause",
		"--keep-open=yes",
		"--no-ytdl",
	}

	if !p.opts.LoadUserConfig {
		args = append(args, "--no-config")
	}
	if !p.opts.Debug {
		args = append(args, "--msg-level=all=warn")
	}

	if src.StartAt > 0 {
		args = append(args, fmt.Sprintf("--start=%f", src.StartAt))
	}
	if src.Fullscreen {
		args = append(args, "--fullscreen")
	}
	if src.UserAgent != "" {
		args = append(args, fmt.Sprintf("--user-agent=%s", src.UserAgent))
	}
	if src.Referer != "" {
		args = append(args, fmt.Sprintf("--referrer=%s", src.Referer))
	}

	headers := make([]string, 0, len(src.Headers))
	for key, value := range src.Headers {
		if key == "User-Agent" || key == "Referer" {
			continue
		}
		headers = append(headers, fmt.Sprintf("%s: %s", key, value))
	}
	if len(headers) > 0 {
		args = append(args, fmt.Sprintf("--http-header-fields=%s", strings.Join(headers, ",")))
	}

	if src.Title != "" {
		args = append(args, fmt.Sprintf("--force-media-title=%s", src.Title))
	}

	args = append(args, p.opts.ExtraArgs...)
	args = append(args, src.ExtraArgs...)

	// URI must be last.
	args = append(args, src.URI)
	return args
}

// waitForIPC blocks until the spawned mpv exposes its IPC endpoint.
func (p *Player) waitForIPC(ctx context.Context, ipcConfig *IPCConfig) error {
	timeoutDuration := ipcTimeout
	if ipcConfig.Type == IPCNamedPipe || ipcConfig.Type == IPCTCP {
		timeoutDuration = ipcPipeTimeout
	}

	timeout := time.After(timeoutDuration)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("no IPC endpoint after %v", timeoutDuration)
		case <-ticker.C:
			if ipcConfig.IsSocket {
				if _, err := os.Stat(ipcConfig.Address); err == nil {
					// The socket exists; give mpv a moment to accept.
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			} else if ipcConfig.Type == IPCNamedPipe {
				if pipeReady(ipcConfig.Address) {
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			}
		}
	}
}

// monitorEvents synthesizes ready and ended events from mpv
// properties: ready once the duration becomes known, ended when
// eof-reached turns true. A rewind re-arms the ended detection.
func (p *Player) monitorEvents(ctx context.Context, client *gopv.Client) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	var readyFired, endedFired bool

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !readyFired {
				if duration, err := getFloat(client, "duration"); err == nil && duration > 0 {
					readyFired = true
					if h := p.handlersSnapshot(); h.OnReady != nil {
						h.OnReady()
					}
				}
				continue
			}

			eof, err := getBool(client, "eof-reached")
			if err != nil {
				continue
			}
			if eof && !endedFired {
				endedFired = true
				if h := p.handlersSnapshot(); h.OnEnded != nil {
					h.OnEnded()
				}
			} else if !eof {
				endedFired = false
			}
		}
	}
}

// watchProcess reports an unexpected mpv exit through the error
// handler. A teardown-initiated kill is not reported.
func (p *Player) watchProcess(cmd *exec.Cmd) {
	err := cmd.Wait()

	p.mu.Lock()
	stillCurrent := p.cmd == cmd
	p.mu.Unlock()

	if err != nil && stillCurrent {
		if h := p.handlersSnapshot(); h.OnError != nil {
			h.OnError(fmt.Sprintf("mpv exited unexpectedly: %v", err))
		}
	}
}

func getFloat(client *gopv.Client, property string) (float64, error) {
	result, err := client.Request("get_property", property)
	if err != nil {
		return 0, err
	}
	val, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("property %s is not a number", property)
	}
	return val, nil
}

func getBool(client *gopv.Client, property string) (bool, error) {
	result, err := client.Request("get_property", property)
	if err != nil {
		return false, err
	}
	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not a boolean", property)
	}
	return val, nil
}

func getString(client *gopv.Client, property string) (string, error) {
	result, err := client.Request("get_property", property)
	if err != nil {
		return "", err
	}
	val, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("property %s is not a string", property)
	}
	return val, nil
}

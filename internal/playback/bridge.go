package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justchokingaround/vidbridge/internal/observable"
)

// DefaultPollInterval is how often a playing bridge polls the engine
// for the playback position.
const DefaultPollInterval = 100 * time.Millisecond

// Bridge is the single point of command dispatch and event ingestion
// for one native player instance. Commands are expected to come from
// one owning goroutine; engine events may arrive from any goroutine
// and are folded into the same observable cells.
//
// Every command returns an explicit error. Failures are additionally
// recorded in the shared error observable, which keeps the last
// message until overwritten or cleared.
type Bridge struct {
	viewID       string
	native       NativePlayer
	logger       *slog.Logger
	pollInterval time.Duration

	status   *observable.Value[Status]
	position *observable.Value[float64]
	lastErr  *observable.Value[string]
	ready    *observable.Signal
	ended    *observable.Signal

	mu       sync.Mutex
	source   *VideoSource
	info     *VideoInfo
	volume   float64
	pollStop chan struct{}
	disposed bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for command failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPollInterval overrides the position poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// WithVolume sets the initial cached volume.
func WithVolume(v float64) Option {
	return func(b *Bridge) {
		b.volume = v
	}
}

// New creates a bridge bound to the given native player and registers
// the inbound event callbacks with it. The bridge is usable as soon as
// New returns.
func New(native NativePlayer, opts ...Option) *Bridge {
	b := &Bridge{
		viewID:       uuid.NewString(),
		native:       native,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		status:       observable.NewValue(StatusStopped),
		position:     observable.NewValue(0.0),
		lastErr:      observable.NewValue(""),
		ready:        observable.NewSignal(),
		ended:        observable.NewSignal(),
		volume:       1.0,
	}

	for _, opt := range opts {
		opt(b)
	}

	native.SetHandlers(EventHandlers{
		OnReady: b.handleReady,
		OnEnded: b.handleEnded,
		OnError: b.handleError,
	})

	return b
}

// ViewID returns the identifier correlating this bridge to its native
// player instance.
func (b *Bridge) ViewID() string {
	return b.viewID
}

// LoadSource stops current playback and instructs the engine to load
// src. On success src becomes the current source and any previous
// VideoInfo is discarded until the engine reports ready again.
func (b *Bridge) LoadSource(ctx context.Context, src VideoSource) error {
	if err := b.guard(); err != nil {
		return err
	}

	if b.status.Get() != StatusStopped {
		if err := b.Stop(ctx); err != nil {
			return err
		}
	}

	if err := b.native.Load(ctx, src); err != nil {
		return b.report("load", err)
	}

	b.mu.Lock()
	b.source = &src
	b.info = nil
	b.mu.Unlock()

	b.logger.Debug("source loaded", "view_id", b.viewID, "uri", src.URI)
	return nil
}

// Play starts or resumes playback. On success the status becomes
// playing and the position poll ticker starts. At most one ticker is
// ever active; calling Play while already playing keeps the existing
// one.
func (b *Bridge) Play(ctx context.Context) error {
	if err := b.guard(); err != nil {
		return err
	}

	if err := b.native.Play(ctx); err != nil {
		return b.report("play", err)
	}

	b.status.Set(StatusPlaying)
	b.startPolling()
	return nil
}

// Pause pauses playback. On success the status becomes paused and the
// poll ticker stops.
func (b *Bridge) Pause(ctx context.Context) error {
	if err := b.guard(); err != nil {
		return err
	}

	if err := b.native.Pause(ctx); err != nil {
		return b.report("pause", err)
	}

	b.stopPolling()
	b.status.Set(StatusPaused)
	return nil
}

// Stop halts playback. On success the status becomes stopped, the poll
// ticker stops, and the observed position resets to 0.
func (b *Bridge) Stop(ctx context.Context) error {
	if err := b.guard(); err != nil {
		return err
	}
	return b.stop(ctx)
}

func (b *Bridge) stop(ctx context.Context) error {
	if err := b.native.Stop(ctx); err != nil {
		return b.report("stop", err)
	}

	b.stopPolling()
	b.status.Set(StatusStopped)
	b.position.Set(0)
	return nil
}

// IsPlaying queries the engine directly. It returns false when the
// query fails or the bridge is disposed; failures are recorded.
func (b *Bridge) IsPlaying(ctx context.Context) bool {
	if err := b.guard(); err != nil {
		return false
	}

	playing, err := b.native.IsPlaying(ctx)
	if err != nil {
		_ = b.report("is_playing", err)
		return false
	}
	return playing
}

// SeekTo moves the playback cursor to an absolute position in seconds,
// clamped to [0, duration]. The duration defaults to 0 while no
// VideoInfo is available.
func (b *Bridge) SeekTo(ctx context.Context, seconds float64) error {
	if err := b.guard(); err != nil {
		return err
	}

	target := clamp(seconds, 0, b.duration())
	if err := b.native.SeekTo(ctx, target); err != nil {
		return b.report("seek", err)
	}

	b.position.Set(target)
	return nil
}

// SeekForward advances the cursor by delta seconds, capped at the
// duration. delta <= 0 is a no-op.
func (b *Bridge) SeekForward(ctx context.Context, delta float64) error {
	if delta <= 0 {
		return nil
	}
	target := b.position.Get() + delta
	if d := b.duration(); target > d {
		target = d
	}
	return b.SeekTo(ctx, target)
}

// SeekBackward rewinds the cursor by delta seconds, floored at 0.
// delta <= 0 is a no-op.
func (b *Bridge) SeekBackward(ctx context.Context, delta float64) error {
	if delta <= 0 {
		return nil
	}
	target := b.position.Get() - delta
	if target < 0 {
		target = 0
	}
	return b.SeekTo(ctx, target)
}

// SetVolume forwards the volume to the engine and caches it on
// success. The cached value is re-applied when a source becomes ready,
// so a volume set during loading takes effect.
func (b *Bridge) SetVolume(ctx context.Context, volume float64) error {
	if err := b.guard(); err != nil {
		return err
	}

	if err := b.native.SetVolume(ctx, volume); err != nil {
		return b.report("set_volume", err)
	}

	b.mu.Lock()
	b.volume = volume
	b.mu.Unlock()
	return nil
}

// Info returns a point-in-time snapshot of the observable values.
func (b *Bridge) Info() PlaybackInfo {
	b.mu.Lock()
	info := b.info
	volume := b.volume
	b.mu.Unlock()

	pos := b.position.Get()
	var fraction float64
	if info != nil && info.Duration > 0 {
		fraction = clamp(pos/info.Duration, 0, 1)
	}

	return PlaybackInfo{
		Status:           b.status.Get(),
		Position:         pos,
		PositionFraction: fraction,
		Volume:           volume,
		Err:              b.lastErr.Get(),
	}
}

// Source returns the current video source, or nil before the first
// successful load.
func (b *Bridge) Source() *VideoSource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source
}

// VideoInfo returns the metadata of the current source, or nil until
// the engine has reported ready.
func (b *Bridge) VideoInfo() *VideoInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info
}

// Status returns the current mirrored status.
func (b *Bridge) Status() Status {
	return b.status.Get()
}

// Position returns the last observed playback position in seconds.
func (b *Bridge) Position() float64 {
	return b.position.Get()
}

// LastError returns the most recent failure message, empty if none.
func (b *Bridge) LastError() string {
	return b.lastErr.Get()
}

// ClearError resets the error observable. Errors are never cleared
// automatically.
func (b *Bridge) ClearError() {
	b.lastErr.Set("")
}

// SubscribeStatus watches status changes.
func (b *Bridge) SubscribeStatus() (<-chan Status, func()) {
	return b.status.Subscribe()
}

// SubscribePosition watches position updates published by the poll
// ticker and by seeks.
func (b *Bridge) SubscribePosition() (<-chan float64, func()) {
	return b.position.Subscribe()
}

// SubscribeError watches failure messages.
func (b *Bridge) SubscribeError() (<-chan string, func()) {
	return b.lastErr.Subscribe()
}

// SubscribeReady delivers a notification each time a source becomes
// ready.
func (b *Bridge) SubscribeReady() (<-chan struct{}, func()) {
	return b.ready.Subscribe()
}

// SubscribeEnded delivers a notification each time playback reaches
// the end of the media.
func (b *Bridge) SubscribeEnded() (<-chan struct{}, func()) {
	return b.ended.Subscribe()
}

// Dispose cancels the poll ticker, detaches the event handlers, and
// releases the native handle. Safe to call more than once; commands
// after Dispose return ErrDisposed. No position update can be observed
// once Dispose has returned.
func (b *Bridge) Dispose() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	b.stopPollingLocked()
	b.mu.Unlock()

	// Detach handlers first so a late engine event cannot publish.
	b.native.SetHandlers(EventHandlers{})
	return b.native.Dispose()
}

// handleReady runs on the engine's ready event: fetch fresh VideoInfo,
// re-apply the cached volume, then notify ready observers.
func (b *Bridge) handleReady() {
	if b.guard() != nil {
		return
	}

	ctx := context.Background()

	info, err := b.native.VideoInfo(ctx)
	if err != nil {
		_ = b.report("video_info", err)
	} else {
		b.mu.Lock()
		b.info = info
		b.mu.Unlock()
	}

	b.mu.Lock()
	volume := b.volume
	b.mu.Unlock()
	if err := b.native.SetVolume(ctx, volume); err != nil {
		_ = b.report("set_volume", err)
	}

	b.ready.Notify()
}

// handleEnded mirrors an explicit Stop, then notifies ended observers.
func (b *Bridge) handleEnded() {
	if b.guard() != nil {
		return
	}

	_ = b.stop(context.Background())
	b.ended.Notify()
}

// handleError records an engine-reported failure.
func (b *Bridge) handleError(message string) {
	b.lastErr.Set(message)
	b.logger.Warn("engine error", "view_id", b.viewID, "error", message)
}

func (b *Bridge) guard() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return ErrDisposed
	}
	return nil
}

// report stores the failure in the error observable, logs it, and
// returns the wrapped error for the caller.
func (b *Bridge) report(op string, err error) error {
	b.lastErr.Set(err.Error())
	b.logger.Error("playback command failed", "op", op, "view_id", b.viewID, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

func (b *Bridge) duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return 0
	}
	return b.info.Duration
}

// startPolling launches the position poll ticker if none is running.
func (b *Bridge) startPolling() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pollStop != nil || b.disposed {
		return
	}
	stop := make(chan struct{})
	b.pollStop = stop
	go b.pollLoop(stop)
}

func (b *Bridge) stopPolling() {
	b.mu.Lock()
	b.stopPollingLocked()
	b.mu.Unlock()
}

func (b *Bridge) stopPollingLocked() {
	if b.pollStop != nil {
		close(b.pollStop)
		b.pollStop = nil
	}
}

func (b *Bridge) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			pos, err := b.native.Position(context.Background())
			if err != nil {
				continue
			}
			// Publishing is serialized with ticker teardown: once the
			// ticker is cancelled no position may be observed, even if
			// a query was already in flight.
			b.mu.Lock()
			if b.pollStop != stop {
				b.mu.Unlock()
				return
			}
			b.position.Set(pos)
			b.mu.Unlock()
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

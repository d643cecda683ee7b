// Package playback bridges applications to native video playback
// engines. A Bridge owns one native player handle, forwards commands
// to it, and converts the engine's asynchronous events into observable
// state. The heavy lifting (decode, render, streaming) stays inside
// the engine; this package only mirrors its state.
package playback

import (
	"context"
	"errors"
)

// VideoSource describes the video to load. Immutable once passed to
// LoadSource.
type VideoSource struct {
	// URI is the location of the video: an http(s) URL or a local path.
	URI string `json:"uri"`

	// Title is shown by the engine and used for session records.
	Title string `json:"title,omitempty"`

	// StartAt is the initial playback offset in seconds.
	StartAt float64 `json:"start_at,omitempty"`

	Fullscreen bool `json:"fullscreen"`

	// HTTP options forwarded to the engine for remote sources.
	Headers   map[string]string `json:"headers,omitempty"`
	Referer   string            `json:"referer,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`

	// ExtraArgs are engine-specific arguments passed through verbatim.
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// VideoInfo carries the intrinsic properties of a loaded source,
// fetched from the engine once it reports ready.
type VideoInfo struct {
	Duration float64 `json:"duration"` // seconds
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Title    string  `json:"title,omitempty"`
}

// Status is the mirrored playback state of a bridge.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// PlaybackInfo is a read-only snapshot combining the bridge's
// observable values, recomputed on demand.
type PlaybackInfo struct {
	Status   Status  `json:"status"`
	Position float64 `json:"position"` // seconds

	// PositionFraction is Position/Duration, or 0 when no VideoInfo
	// is available or the duration is unknown.
	PositionFraction float64 `json:"position_fraction"`

	Volume float64 `json:"volume"`

	// Err is the last reported error message, empty if none.
	Err string `json:"error,omitempty"`
}

// EventHandlers are the inbound callback channels a bridge registers
// with the native layer at construction. Handlers may be invoked from
// arbitrary goroutines.
type EventHandlers struct {
	// OnReady fires once a loaded source is playable and its metadata
	// can be fetched.
	OnReady func()

	// OnEnded fires when playback reaches the end of the media.
	OnEnded func()

	// OnError reports an engine failure message.
	OnError func(message string)
}

// NativePlayer is the outbound command surface of a native playback
// engine. Implementations wrap a concrete engine (mpv over JSON IPC,
// a platform view channel, ...) and synthesize the EventHandlers
// callbacks from whatever event mechanism the engine offers.
//
// All calls settle before returning; there is no queuing or timeout
// logic at this level beyond what ctx carries.
type NativePlayer interface {
	// SetHandlers registers the inbound event callbacks. Called once,
	// during bridge construction, before any command.
	SetHandlers(h EventHandlers)

	Load(ctx context.Context, src VideoSource) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	IsPlaying(ctx context.Context) (bool, error)

	// SeekTo moves the playback cursor to an absolute position in
	// seconds. The bridge clamps before delegating.
	SeekTo(ctx context.Context, seconds float64) error

	// SetVolume sets the engine volume; the bridge passes values in
	// [0,1] semantics without clamping.
	SetVolume(ctx context.Context, volume float64) error

	// VideoInfo fetches metadata for the loaded source.
	VideoInfo(ctx context.Context) (*VideoInfo, error)

	// Position returns the current playback cursor in seconds.
	Position(ctx context.Context) (float64, error)

	// Dispose releases the engine handle. After Dispose no command is
	// valid and no event may be delivered.
	Dispose() error
}

// ErrDisposed is returned by bridge commands after Dispose.
var ErrDisposed = errors.New("playback: bridge disposed")

package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is an in-memory NativePlayer for bridge tests. Failures
// can be injected per operation.
type fakeEngine struct {
	mu       sync.Mutex
	handlers EventHandlers
	failures map[string]error

	source   *VideoSource
	info     *VideoInfo
	playing  bool
	pos      float64
	disposed bool

	loadCalls   int
	stopCalls   int
	seekCalls   []float64
	volumeCalls []float64
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{failures: make(map[string]error)}
}

func (f *fakeEngine) failOn(op string, err error) {
	f.mu.Lock()
	f.failures[op] = err
	f.mu.Unlock()
}

func (f *fakeEngine) fail(op string) error {
	return f.failures[op]
}

func (f *fakeEngine) SetHandlers(h EventHandlers) {
	f.mu.Lock()
	f.handlers = h
	f.mu.Unlock()
}

func (f *fakeEngine) Load(ctx context.Context, src VideoSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("load"); err != nil {
		return err
	}
	f.loadCalls++
	f.source = &src
	f.pos = 0
	return nil
}

func (f *fakeEngine) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("play"); err != nil {
		return err
	}
	f.playing = true
	return nil
}

func (f *fakeEngine) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("pause"); err != nil {
		return err
	}
	f.playing = false
	return nil
}

func (f *fakeEngine) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("stop"); err != nil {
		return err
	}
	f.stopCalls++
	f.playing = false
	f.pos = 0
	return nil
}

func (f *fakeEngine) IsPlaying(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("is_playing"); err != nil {
		return false, err
	}
	return f.playing, nil
}

func (f *fakeEngine) SeekTo(ctx context.Context, seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("seek"); err != nil {
		return err
	}
	f.seekCalls = append(f.seekCalls, seconds)
	f.pos = seconds
	return nil
}

func (f *fakeEngine) SetVolume(ctx context.Context, volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("set_volume"); err != nil {
		return err
	}
	f.volumeCalls = append(f.volumeCalls, volume)
	return nil
}

func (f *fakeEngine) VideoInfo(ctx context.Context) (*VideoInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("video_info"); err != nil {
		return nil, err
	}
	return f.info, nil
}

func (f *fakeEngine) Position(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("position"); err != nil {
		return 0, err
	}
	return f.pos, nil
}

func (f *fakeEngine) Dispose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed = true
	return nil
}

func (f *fakeEngine) setPosition(pos float64) {
	f.mu.Lock()
	f.pos = pos
	f.mu.Unlock()
}

func (f *fakeEngine) fireReady() {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	if h.OnReady != nil {
		h.OnReady()
	}
}

func (f *fakeEngine) fireEnded() {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	if h.OnEnded != nil {
		h.OnEnded()
	}
}

func (f *fakeEngine) fireError(msg string) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	if h.OnError != nil {
		h.OnError(msg)
	}
}

// loadReady loads a source and simulates the engine's ready event so
// the bridge has VideoInfo with the given duration.
func loadReady(t *testing.T, b *Bridge, engine *fakeEngine, duration float64) {
	t.Helper()
	engine.info = &VideoInfo{Duration: duration, Title: "test"}
	require.NoError(t, b.LoadSource(context.Background(), VideoSource{URI: "https://example.com/v.mp4"}))
	engine.fireReady()
	require.NotNil(t, b.VideoInfo())
}

func TestNew(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine)

	assert.NotEmpty(t, b.ViewID())
	assert.Equal(t, StatusStopped, b.Status())
	assert.Nil(t, b.Source())
	assert.Nil(t, b.VideoInfo())
	assert.NotNil(t, engine.handlers.OnReady, "handlers must be registered at construction")
	assert.NotNil(t, engine.handlers.OnEnded)
	assert.NotNil(t, engine.handlers.OnError)
}

func TestLoadSource(t *testing.T) {
	t.Run("records source on success", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)

		src := VideoSource{URI: "https://example.com/a.mp4", Title: "A"}
		require.NoError(t, b.LoadSource(context.Background(), src))

		require.NotNil(t, b.Source())
		assert.Equal(t, src.URI, b.Source().URI)
		assert.Equal(t, 1, engine.loadCalls)
	})

	t.Run("keeps previous source on failure", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)
		require.NoError(t, b.LoadSource(context.Background(), VideoSource{URI: "first"}))

		engine.failOn("load", errors.New("load exploded"))
		err := b.LoadSource(context.Background(), VideoSource{URI: "second"})
		require.Error(t, err)

		assert.Equal(t, "first", b.Source().URI)
		assert.Contains(t, b.LastError(), "load exploded")
	})

	t.Run("stops active playback before loading", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine, WithPollInterval(5*time.Millisecond))
		loadReady(t, b, engine, 100)
		require.NoError(t, b.Play(context.Background()))

		require.NoError(t, b.LoadSource(context.Background(), VideoSource{URI: "next"}))

		assert.Equal(t, StatusStopped, b.Status())
		assert.Equal(t, 1, engine.stopCalls)
		assert.Nil(t, b.VideoInfo(), "metadata is replaced wholesale on load")
	})
}

func TestSeekToClamps(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		input    float64
		want     float64
	}{
		{"negative clamps to zero", 120, -5, 0},
		{"beyond duration clamps to duration", 120, 500, 120},
		{"within bounds passes through", 120, 42.5, 42.5},
		{"exactly duration", 120, 120, 120},
		{"zero", 120, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			b := New(engine)
			loadReady(t, b, engine, tt.duration)

			require.NoError(t, b.SeekTo(context.Background(), tt.input))

			require.Len(t, engine.seekCalls, 1)
			assert.Equal(t, tt.want, engine.seekCalls[0])
		})
	}

	t.Run("duration defaults to zero without metadata", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)

		require.NoError(t, b.SeekTo(context.Background(), 30))

		require.Len(t, engine.seekCalls, 1)
		assert.Equal(t, float64(0), engine.seekCalls[0])
	})
}

func TestSeekForward(t *testing.T) {
	t.Run("no-op for non-positive delta", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)
		loadReady(t, b, engine, 100)

		require.NoError(t, b.SeekForward(context.Background(), 0))
		require.NoError(t, b.SeekForward(context.Background(), -3))
		assert.Empty(t, engine.seekCalls)
	})

	t.Run("advances and caps at duration", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)
		loadReady(t, b, engine, 100)
		require.NoError(t, b.SeekTo(context.Background(), 90))

		require.NoError(t, b.SeekForward(context.Background(), 30))

		require.Len(t, engine.seekCalls, 2)
		assert.Equal(t, float64(100), engine.seekCalls[1])
	})
}

func TestSeekBackward(t *testing.T) {
	t.Run("no-op for non-positive delta", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)
		loadReady(t, b, engine, 100)

		require.NoError(t, b.SeekBackward(context.Background(), 0))
		assert.Empty(t, engine.seekCalls)
	})

	t.Run("rewinds and floors at zero", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)
		loadReady(t, b, engine, 100)
		require.NoError(t, b.SeekTo(context.Background(), 10))

		require.NoError(t, b.SeekBackward(context.Background(), 30))

		require.Len(t, engine.seekCalls, 2)
		assert.Equal(t, float64(0), engine.seekCalls[1])
	})
}

func TestPositionFraction(t *testing.T) {
	t.Run("zero without metadata", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)

		assert.Equal(t, float64(0), b.Info().PositionFraction)
	})

	t.Run("position over duration", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)
		loadReady(t, b, engine, 200)
		require.NoError(t, b.SeekTo(context.Background(), 50))

		info := b.Info()
		assert.InDelta(t, 0.25, info.PositionFraction, 1e-9)
		assert.GreaterOrEqual(t, info.PositionFraction, float64(0))
		assert.LessOrEqual(t, info.PositionFraction, float64(1))
	})
}

func TestPlayStartsSinglePollTicker(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine, WithPollInterval(5*time.Millisecond))
	loadReady(t, b, engine, 100)

	require.NoError(t, b.Play(context.Background()))
	assert.Equal(t, StatusPlaying, b.Status())

	b.mu.Lock()
	first := b.pollStop
	b.mu.Unlock()
	require.NotNil(t, first)

	// A second Play must keep the existing ticker.
	require.NoError(t, b.Play(context.Background()))
	b.mu.Lock()
	second := b.pollStop
	b.mu.Unlock()
	assert.True(t, first == second, "second Play must not replace the poll ticker")

	// The ticker republishes engine positions.
	engine.setPosition(12.5)
	require.Eventually(t, func() bool {
		return b.Position() == 12.5
	}, time.Second, 2*time.Millisecond)

	require.NoError(t, b.Dispose())
}

func TestPauseStopsPolling(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine, WithPollInterval(5*time.Millisecond))
	loadReady(t, b, engine, 100)
	require.NoError(t, b.Play(context.Background()))

	require.NoError(t, b.Pause(context.Background()))

	assert.Equal(t, StatusPaused, b.Status())
	b.mu.Lock()
	assert.Nil(t, b.pollStop)
	b.mu.Unlock()

	// Positions reported by the engine are no longer observed.
	engine.setPosition(77)
	time.Sleep(30 * time.Millisecond)
	assert.NotEqual(t, float64(77), b.Position())
}

func TestStopResetsPosition(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine, WithPollInterval(5*time.Millisecond))
	loadReady(t, b, engine, 100)
	require.NoError(t, b.Play(context.Background()))
	require.NoError(t, b.SeekTo(context.Background(), 40))

	require.NoError(t, b.Stop(context.Background()))

	assert.Equal(t, StatusStopped, b.Status())
	assert.Equal(t, float64(0), b.Position())
	b.mu.Lock()
	assert.Nil(t, b.pollStop)
	b.mu.Unlock()
}

func TestEndedEvent(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine, WithPollInterval(5*time.Millisecond))
	loadReady(t, b, engine, 100)
	require.NoError(t, b.Play(context.Background()))
	require.NoError(t, b.SeekTo(context.Background(), 99))

	endedCh, cancel := b.SubscribeEnded()
	defer cancel()

	engine.fireEnded()

	// Same observable effects as an explicit Stop.
	assert.Equal(t, StatusStopped, b.Status())
	assert.Equal(t, float64(0), b.Position())
	assert.Equal(t, 1, engine.stopCalls)

	select {
	case <-endedCh:
	case <-time.After(time.Second):
		t.Fatal("ended notification not delivered")
	}
}

func TestReadyEvent(t *testing.T) {
	t.Run("fetches metadata and re-applies cached volume", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)

		// Volume set before any source is ready.
		require.NoError(t, b.SetVolume(context.Background(), 0.5))

		readyCh, cancel := b.SubscribeReady()
		defer cancel()

		engine.info = &VideoInfo{Duration: 300, Title: "movie"}
		require.NoError(t, b.LoadSource(context.Background(), VideoSource{URI: "https://example.com/m.mp4"}))
		engine.fireReady()

		require.NotNil(t, b.VideoInfo())
		assert.Equal(t, float64(300), b.VideoInfo().Duration)

		// One call from SetVolume, one re-applied after ready.
		require.Len(t, engine.volumeCalls, 2)
		assert.Equal(t, 0.5, engine.volumeCalls[1])

		select {
		case <-readyCh:
		case <-time.After(time.Second):
			t.Fatal("ready notification not delivered")
		}
	})

	t.Run("volume cache unchanged when the call fails", func(t *testing.T) {
		engine := newFakeEngine()
		b := New(engine)

		engine.failOn("set_volume", errors.New("volume rejected"))
		require.Error(t, b.SetVolume(context.Background(), 0.3))

		assert.Equal(t, 1.0, b.Info().Volume)
		assert.Contains(t, b.LastError(), "volume rejected")
	})
}

func TestCommandFailuresLeaveStateUntouched(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine)
	loadReady(t, b, engine, 100)

	engine.failOn("play", errors.New("engine busy"))
	err := b.Play(context.Background())
	require.Error(t, err)

	assert.Equal(t, StatusStopped, b.Status(), "status unchanged on failure")
	b.mu.Lock()
	assert.Nil(t, b.pollStop, "no ticker on failed play")
	b.mu.Unlock()
	assert.Contains(t, b.LastError(), "engine busy")
}

func TestIsPlaying(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine)
	loadReady(t, b, engine, 100)

	assert.False(t, b.IsPlaying(context.Background()))

	require.NoError(t, b.Play(context.Background()))
	assert.True(t, b.IsPlaying(context.Background()))

	engine.failOn("is_playing", errors.New("ipc dead"))
	assert.False(t, b.IsPlaying(context.Background()), "defaults to false on failure")
	assert.Contains(t, b.LastError(), "ipc dead")

	require.NoError(t, b.Dispose())
}

func TestErrorObservable(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine)

	errCh, cancel := b.SubscribeError()
	defer cancel()

	engine.fireError("decode failed")
	assert.Equal(t, "decode failed", b.LastError())

	select {
	case got := <-errCh:
		assert.Equal(t, "decode failed", got)
	case <-time.After(time.Second):
		t.Fatal("error update not delivered")
	}

	// The message stays visible until overwritten or cleared.
	require.NoError(t, b.LoadSource(context.Background(), VideoSource{URI: "ok"}))
	assert.Equal(t, "decode failed", b.LastError())

	b.ClearError()
	assert.Equal(t, "", b.LastError())
}

func TestDispose(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine, WithPollInterval(5*time.Millisecond))
	loadReady(t, b, engine, 100)
	require.NoError(t, b.Play(context.Background()))

	require.NoError(t, b.Dispose())
	require.NoError(t, b.Dispose(), "dispose is idempotent")

	assert.True(t, engine.disposed)
	assert.ErrorIs(t, b.Play(context.Background()), ErrDisposed)
	assert.ErrorIs(t, b.LoadSource(context.Background(), VideoSource{URI: "x"}), ErrDisposed)
	assert.ErrorIs(t, b.SeekTo(context.Background(), 5), ErrDisposed)

	// A stray engine position can no longer be observed.
	before := b.Position()
	engine.setPosition(55)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, b.Position())

	// Detached handlers swallow late events.
	engine.fireEnded()
	engine.fireReady()
	assert.Equal(t, before, b.Position())
}

func TestStatusTransitions(t *testing.T) {
	engine := newFakeEngine()
	b := New(engine, WithPollInterval(5*time.Millisecond))
	loadReady(t, b, engine, 100)

	statusCh, cancel := b.SubscribeStatus()
	defer cancel()

	require.NoError(t, b.Play(context.Background()))
	require.NoError(t, b.Pause(context.Background()))
	require.NoError(t, b.Play(context.Background()))
	require.NoError(t, b.Stop(context.Background()))

	assert.Equal(t, StatusStopped, b.Status())

	// The watcher observes the final status (intermediate values may be
	// coalesced, last-write-wins).
	select {
	case got := <-statusCh:
		assert.Equal(t, StatusStopped, got)
	case <-time.After(time.Second):
		t.Fatal("status update not delivered")
	}
}

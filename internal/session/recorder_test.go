package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/vidbridge/internal/playback"
)

// stubPlayer is a minimal native player for recorder tests.
type stubPlayer struct {
	mu       sync.Mutex
	handlers playback.EventHandlers
	position float64
	duration float64
}

func (s *stubPlayer) SetHandlers(h playback.EventHandlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

func (s *stubPlayer) Load(ctx context.Context, src playback.VideoSource) error { return nil }
func (s *stubPlayer) Play(ctx context.Context) error                           { return nil }
func (s *stubPlayer) Pause(ctx context.Context) error                          { return nil }
func (s *stubPlayer) Stop(ctx context.Context) error                           { return nil }
func (s *stubPlayer) IsPlaying(ctx context.Context) (bool, error)              { return false, nil }
func (s *stubPlayer) SeekTo(ctx context.Context, seconds float64) error        { return nil }
func (s *stubPlayer) SetVolume(ctx context.Context, volume float64) error      { return nil }
func (s *stubPlayer) Dispose() error                                           { return nil }

func (s *stubPlayer) Position(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

func (s *stubPlayer) VideoInfo(ctx context.Context) (*playback.VideoInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &playback.VideoInfo{Duration: s.duration, Title: "Stub Video"}, nil
}

func (s *stubPlayer) fireReady() {
	s.mu.Lock()
	h := s.handlers
	s.mu.Unlock()
	if h.OnReady != nil {
		h.OnReady()
	}
}

func (s *stubPlayer) fireEnded() {
	s.mu.Lock()
	h := s.handlers
	s.mu.Unlock()
	if h.OnEnded != nil {
		h.OnEnded()
	}
}

func playingBridge(t *testing.T, engine *stubPlayer) *playback.Bridge {
	t.Helper()
	bridge := playback.New(engine)
	t.Cleanup(func() { _ = bridge.Dispose() })

	ctx := context.Background()
	require.NoError(t, bridge.LoadSource(ctx, playback.VideoSource{
		URI:   "https://example.com/video.mp4",
		Title: "Stub Video",
	}))
	engine.fireReady()
	require.NoError(t, bridge.Play(ctx))
	return bridge
}

func TestRecorderSavesProgressPeriodically(t *testing.T) {
	svc, _ := newTestService(t)
	engine := &stubPlayer{position: 120, duration: 600}
	bridge := playingBridge(t, engine)

	rec := NewRecorder(svc, bridge, 20*time.Millisecond, nil)
	rec.Start()
	defer rec.Stop()

	assert.Eventually(t, func() bool {
		sess, err := svc.Resume("https://example.com/video.mp4")
		return err == nil && sess != nil && sess.PositionSeconds > 0
	}, time.Second, 10*time.Millisecond)
}

func TestRecorderMarksFinishedOnEnded(t *testing.T) {
	svc, _ := newTestService(t)
	engine := &stubPlayer{position: 300, duration: 600}
	bridge := playingBridge(t, engine)

	rec := NewRecorder(svc, bridge, time.Hour, nil)
	rec.Start()
	defer rec.Stop()

	// Fire ended immediately after Start returns, before the recorder
	// goroutine has necessarily been scheduled. The subscription must
	// already be in place or the event is lost.
	engine.fireEnded()

	assert.Eventually(t, func() bool {
		sess, _ := svc.Resume("https://example.com/video.mp4")
		return sess != nil && sess.Finished
	}, time.Second, 10*time.Millisecond)
}

func TestRecorderStopWritesFinalSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	engine := &stubPlayer{position: 240, duration: 600}

	bridge := playback.New(engine, playback.WithPollInterval(10*time.Millisecond))
	t.Cleanup(func() { _ = bridge.Dispose() })

	ctx := context.Background()
	require.NoError(t, bridge.LoadSource(ctx, playback.VideoSource{
		URI:   "https://example.com/video.mp4",
		Title: "Stub Video",
	}))
	engine.fireReady()
	require.NoError(t, bridge.Play(ctx))

	// Wait for the poller to publish a position before stopping.
	require.Eventually(t, func() bool {
		return bridge.Info().Position > 0
	}, time.Second, 5*time.Millisecond)

	// Interval far in the future, so only the final snapshot on Stop
	// can write anything.
	rec := NewRecorder(svc, bridge, time.Hour, nil)
	rec.Start()
	rec.Stop()

	sess, err := svc.Resume("https://example.com/video.mp4")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 240.0, sess.PositionSeconds)
}

func TestRecorderStopIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	engine := &stubPlayer{duration: 600}
	bridge := playingBridge(t, engine)

	rec := NewRecorder(svc, bridge, time.Hour, nil)
	rec.Start()
	rec.Stop()
	rec.Stop()
}

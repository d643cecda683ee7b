package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/justchokingaround/vidbridge/internal/playback"
)

// Recorder follows a playback bridge and periodically persists its
// progress as a session. It also reacts to the ended event so a
// finished video is marked finished right away.
type Recorder struct {
	svc    *Service
	bridge *playback.Bridge
	logger *slog.Logger

	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewRecorder creates a recorder for a bridge. interval controls how
// often progress is written to the database.
func NewRecorder(svc *Service, bridge *playback.Bridge, interval time.Duration, logger *slog.Logger) *Recorder {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		svc:      svc,
		bridge:   bridge,
		logger:   logger,
		interval: interval,
	}
}

// Start begins tracking. Calling Start on a running recorder is a
// no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	// Subscribe before the goroutine starts so an ended event fired
	// right after Start returns is already captured.
	ended, cancelEnded := r.bridge.SubscribeEnded()
	go r.run(r.stop, r.done, ended, cancelEnded)
}

// Stop halts tracking, writing one final progress snapshot. Idempotent.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
	r.save(false)
}

func (r *Recorder) run(stop, done chan struct{}, ended <-chan struct{}, cancelEnded func()) {
	defer close(done)
	defer cancelEnded()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.save(false)
		case _, ok := <-ended:
			if !ok {
				return
			}
			r.save(true)
		}
	}
}

// save persists the bridge's current progress. When finished is true
// the session is recorded at full duration regardless of the position
// cell, which the ended handling has already reset.
func (r *Recorder) save(finished bool) {
	src := r.bridge.Source()
	if src == nil {
		return
	}

	info := r.bridge.Info()
	duration := 0.0
	if vi := r.bridge.VideoInfo(); vi != nil {
		duration = vi.Duration
	}

	position := info.Position
	if finished {
		position = duration
	} else if info.Status == playback.StatusStopped {
		// Nothing meaningful to record while stopped.
		return
	}

	err := r.svc.SaveProgress(Progress{
		SourceURI: src.URI,
		Title:     src.Title,
		Position:  position,
		Duration:  duration,
		Volume:    info.Volume,
	})
	if err != nil {
		r.logger.Warn("failed to save playback progress", "uri", src.URI, "error", err)
	}
}

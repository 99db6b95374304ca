// Package playtrack owns the per-station play session state machine. It
// decides when a detection opens, survives a short interruption, or
// finalizes, and guarantees every opened detection finalizes exactly once.
package playtrack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"aircheck/internal/events"
	"aircheck/internal/logging"
	"aircheck/internal/resolve"
	"aircheck/internal/store"
)

type stateKind int

const (
	stateIdle stateKind = iota
	statePlaying
	stateInterrupted
)

// Finalization is everything the stats recorder needs to close one play.
type Finalization struct {
	DetectionID int64
	StationID   int64
	TrackID     int64
	ArtistID    int64
	Duration    float64
	Confidence  float64
	Method      store.Method
	PlayedAt    time.Time
}

// Finalizer closes a detection transactionally. Implemented by statsrec.
type Finalizer interface {
	Finalize(ctx context.Context, finalization Finalization) error
}

// Tracker is the state machine for a single station. Its owning worker is
// the only chunk-event caller; the mutex exists for the cleanup sweep, which
// runs on a different goroutine.
type Tracker struct {
	mu sync.Mutex

	stationID int64
	store     *store.Store
	finalizer Finalizer
	bus       *events.Bus
	logger    *slog.Logger

	mergeWindow time.Duration
	maxPlay     time.Duration

	state        stateKind
	track        *store.Track
	detectionID  int64
	confidence   float64
	method       store.Method
	sessionStart time.Time
	lastSeen     time.Time
	accumulated  time.Duration
	silenceStart time.Time
	lastVerified time.Time
}

// New builds an idle tracker.
func New(stationID int64, s *store.Store, finalizer Finalizer, bus *events.Bus, mergeWindow, maxPlay time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if mergeWindow <= 0 {
		mergeWindow = 15 * time.Second
	}
	if maxPlay <= 0 {
		maxPlay = 180 * time.Second
	}
	return &Tracker{
		stationID:   stationID,
		store:       s,
		finalizer:   finalizer,
		bus:         bus,
		logger:      logging.WithStation(logging.WithComponent(logger, "playtrack"), stationID, ""),
		mergeWindow: mergeWindow,
		maxPlay:     maxPlay,
	}
}

// PriorISRC returns the ISRC shortcut for the resolver when a track is
// currently suspected. It returns empty once the max-play cap expires so the
// next chunk is re-resolved from scratch.
func (t *Tracker) PriorISRC(now time.Time) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == stateIdle || t.track == nil {
		return ""
	}
	if t.state == statePlaying && now.Sub(t.lastVerified) >= t.maxPlay {
		return ""
	}
	return t.track.ISRC
}

// ShouldReverify reports whether the current session exceeded the max-play
// cap and the next chunk must be resolved without shortcuts.
func (t *Tracker) ShouldReverify(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == statePlaying && now.Sub(t.lastVerified) >= t.maxPlay
}

// Observe advances the state machine with one chunk's resolver outcome.
// A nil match is a NoTrack event (silence, speech, or no identification).
func (t *Tracker) Observe(ctx context.Context, match *resolve.Match, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateIdle:
		if match == nil {
			return nil
		}
		return t.startSession(ctx, match, now)

	case statePlaying:
		switch {
		case match == nil:
			t.accumulated = now.Sub(t.sessionStart)
			t.silenceStart = now
			t.state = stateInterrupted
			return nil
		case match.Track.ID == t.track.ID:
			t.lastSeen = now
			if match.Confidence > t.confidence {
				t.confidence = match.Confidence
			}
			// ISRC shortcut matches echo our own prior back; only an
			// independent identification counts as verification, or the
			// max-play cap would never expire.
			if match.Method != store.MethodISRC {
				t.lastVerified = now
			}
			return nil
		default:
			if err := t.finalizeLocked(ctx, t.lastSeen.Sub(t.sessionStart)); err != nil {
				return err
			}
			return t.startSession(ctx, match, now)
		}

	default: // stateInterrupted
		switch {
		case match == nil:
			if now.Sub(t.silenceStart) >= t.mergeWindow {
				if err := t.finalizeLocked(ctx, t.accumulated); err != nil {
					return err
				}
				t.reset()
			}
			return nil
		case match.Track.ID == t.track.ID && now.Sub(t.silenceStart) < t.mergeWindow:
			// Resume the same session with the elapsed time preserved.
			t.sessionStart = now.Add(-t.accumulated)
			t.lastSeen = now
			if match.Method != store.MethodISRC {
				t.lastVerified = now
			}
			t.state = statePlaying
			return nil
		default:
			if err := t.finalizeLocked(ctx, t.accumulated); err != nil {
				return err
			}
			return t.startSession(ctx, match, now)
		}
	}
}

// Sweep finalizes a stale interrupted session whose station stopped emitting
// chunks. Called periodically from outside the owning worker.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateInterrupted || now.Sub(t.silenceStart) < t.mergeWindow {
		return nil
	}
	if err := t.finalizeLocked(ctx, t.accumulated); err != nil {
		return err
	}
	t.reset()
	return nil
}

// Flush finalizes any open session with the duration accumulated so far.
// Called on worker shutdown so cancellation leaves no open detections.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case statePlaying:
		if err := t.finalizeLocked(ctx, t.lastSeen.Sub(t.sessionStart)); err != nil {
			return err
		}
	case stateInterrupted:
		if err := t.finalizeLocked(ctx, t.accumulated); err != nil {
			return err
		}
	default:
		return nil
	}
	t.reset()
	return nil
}

func (t *Tracker) startSession(ctx context.Context, match *resolve.Match, now time.Time) error {
	detection, err := t.store.CreateDetection(ctx, t.stationID, match.Track.ID, now, match.Confidence, match.Method)
	if err != nil {
		return err
	}
	t.state = statePlaying
	t.track = match.Track
	t.detectionID = detection.ID
	t.confidence = match.Confidence
	t.method = match.Method
	t.sessionStart = now
	t.lastSeen = now
	t.lastVerified = now
	t.accumulated = 0

	t.logger.Info("play session opened",
		logging.Int64(logging.FieldDetection, detection.ID),
		logging.Int64(logging.FieldTrack, match.Track.ID),
		logging.String("title", match.Track.Title),
		logging.String(logging.FieldMethod, string(match.Method)))
	if t.bus != nil {
		t.bus.Publish(events.TypeDetectionStarted, events.DetectionStarted{
			StationID: t.stationID,
			TrackID:   match.Track.ID,
			Title:     match.Track.Title,
			Artist:    match.Track.ArtistName,
			At:        now,
		})
	}
	return nil
}

func (t *Tracker) finalizeLocked(ctx context.Context, duration time.Duration) error {
	if duration < 0 {
		duration = 0
	}
	finalization := Finalization{
		DetectionID: t.detectionID,
		StationID:   t.stationID,
		TrackID:     t.track.ID,
		ArtistID:    t.track.ArtistID,
		Duration:    duration.Seconds(),
		Confidence:  t.confidence,
		Method:      t.method,
		PlayedAt:    t.sessionStart,
	}
	if err := t.finalizer.Finalize(ctx, finalization); err != nil {
		return err
	}

	t.logger.Info("play session finalized",
		logging.Int64(logging.FieldDetection, t.detectionID),
		logging.Int64(logging.FieldTrack, t.track.ID),
		logging.Float64("duration_seconds", finalization.Duration))
	if t.bus != nil {
		t.bus.Publish(events.TypeDetectionFinalized, events.DetectionFinalized{
			DetectionID: t.detectionID,
			StationID:   t.stationID,
			TrackID:     t.track.ID,
			Title:       t.track.Title,
			Artist:      t.track.ArtistName,
			Duration:    finalization.Duration,
			Confidence:  t.confidence,
			Method:      string(t.method),
			At:          t.sessionStart.Add(duration),
		})
	}
	return nil
}

func (t *Tracker) reset() {
	t.state = stateIdle
	t.track = nil
	t.detectionID = 0
	t.confidence = 0
	t.method = ""
	t.accumulated = 0
}

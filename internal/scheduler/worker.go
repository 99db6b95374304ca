package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aircheck/internal/dsp"
	"aircheck/internal/events"
	"aircheck/internal/fingerprint"
	"aircheck/internal/ingest"
	"aircheck/internal/logging"
	"aircheck/internal/playtrack"
	"aircheck/internal/resolve"
	"aircheck/internal/store"
)

// auddExcerptSeconds bounds the audio sent to content recognition.
const auddExcerptSeconds = 10

// worker runs one station's pipeline. All pipeline state is confined to the
// worker goroutine; the snapshot fields are the only shared surface.
type worker struct {
	sched   *Scheduler
	station *store.Station
	tracker *playtrack.Tracker
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	state     store.StationStatus
	lastChunk time.Time
	errCount  int
}

func newWorker(s *Scheduler, station *store.Station, cancel context.CancelFunc) *worker {
	logger := logging.WithStation(s.logger, station.ID, station.Name)
	tracker := playtrack.New(station.ID, s.store, s.recorder, s.bus,
		s.cfg.MergeWindow(),
		time.Duration(s.cfg.Detection.MaxPlaySeconds)*time.Second,
		logger)
	return &worker{
		sched:   s,
		station: station,
		tracker: tracker,
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   station.Status,
	}
}

// stop cancels the worker and waits for it to flush.
func (w *worker) stop() {
	w.cancel()
	<-w.done
}

func (w *worker) snapshot() StationHealth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return StationHealth{
		StationID:         w.station.ID,
		Name:              w.station.Name,
		State:             w.state,
		LastChunk:         w.lastChunk,
		ConsecutiveErrors: w.errCount,
	}
}

func (w *worker) setState(ctx context.Context, state store.StationStatus) {
	w.mu.Lock()
	changed := w.state != state
	w.state = state
	w.mu.Unlock()
	if !changed {
		return
	}
	if err := w.sched.store.UpdateStationStatus(ctx, w.station.ID, state); err != nil && ctx.Err() == nil {
		w.logger.Warn("station status update failed", logging.Error(err))
	}
}

func (w *worker) noteChunk(at time.Time) {
	w.mu.Lock()
	w.lastChunk = at
	w.errCount = 0
	w.mu.Unlock()
}

func (w *worker) noteFailure() int {
	w.mu.Lock()
	w.errCount++
	count := w.errCount
	w.mu.Unlock()
	return count
}

// run holds a concurrency slot for the life of the station and retries
// failed cycles until the fatal limit deactivates the station.
func (w *worker) run(ctx context.Context) {
	select {
	case w.sched.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-w.sched.slots }()

	for {
		err := w.cycle(ctx)
		if ctx.Err() != nil {
			return
		}
		count := w.noteFailure()
		w.setState(ctx, store.StationDegraded)
		w.publishDegraded(err)
		if count >= fatalLimit {
			w.logger.Error("station deactivated after repeated failures",
				logging.Int("failures", count),
				logging.Error(err))
			w.setState(ctx, store.StationInactive)
			return
		}
		w.logger.Warn("station cycle failed, restarting",
			logging.Int("failures", count),
			logging.Duration("delay", w.sched.retryDelay),
			logging.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.sched.retryDelay):
		}
	}
}

// cycle runs one session lifetime: attach, stream chunks through the
// pipeline, and flush the tracker on the way out. A panic anywhere in the
// pipeline is turned into an error so one bad chunk cannot take the whole
// process down.
func (w *worker) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	source, err := w.sched.open(ctx, w.station.StreamURL, w.sched.cfg, w.logger)
	if err != nil {
		return err
	}
	defer source.Close()
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if flushErr := w.tracker.Flush(flushCtx); flushErr != nil {
			w.logger.Warn("tracker flush failed", logging.Error(flushErr))
		}
	}()

	w.setState(ctx, store.StationActive)
	w.logger.Info("station streaming")

	chunks := make(chan *ingest.Chunk, chunkQueueDepth)
	var sourceErr error
	go func() {
		defer close(chunks)
		for {
			chunk, nextErr := source.NextChunk(ctx)
			if nextErr != nil {
				sourceErr = nextErr
				return
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	for chunk := range chunks {
		if err := w.processChunk(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if sourceErr != nil {
		return sourceErr
	}
	return errors.New("stream ended")
}

// processChunk drives one chunk through classify, identify, and track.
// Identification failures degrade to a NoTrack observation; persistence
// failures abort the cycle.
func (w *worker) processChunk(ctx context.Context, chunk *ingest.Chunk) error {
	w.noteChunk(chunk.At)

	bundle, err := w.sched.extractor.Extract(chunk.PCM, chunk.SampleRate, chunk.Channels)
	if err != nil {
		w.logger.Warn("feature extraction failed", logging.Error(err))
		return w.tracker.Observe(ctx, nil, chunk.At)
	}

	class, confidence := dsp.Classify(bundle)
	if class != dsp.ClassMusic {
		w.logger.Debug("chunk not music",
			logging.String("class", string(class)),
			logging.Float64("confidence", confidence))
		return w.tracker.Observe(ctx, nil, chunk.At)
	}

	pair, err := w.sched.codec.Fingerprint(ctx, bundle, chunk.PCM, chunk.SampleRate, chunk.Channels)
	if err != nil {
		w.logger.Warn("fingerprinting failed", logging.Error(err))
		return w.tracker.Observe(ctx, nil, chunk.At)
	}

	input := resolve.Input{
		StationID:    w.station.ID,
		Bundle:       bundle,
		Pair:         pair,
		Excerpt:      w.excerpt(chunk),
		StreamTitle:  chunk.StreamTitle,
		ChunkSeconds: int(chunk.Duration / time.Second),
	}
	if !w.tracker.ShouldReverify(chunk.At) {
		input.PriorISRC = w.tracker.PriorISRC(chunk.At)
	}

	match, err := w.sched.resolver.Resolve(ctx, input)
	if err != nil {
		return err
	}
	return w.tracker.Observe(ctx, match, chunk.At)
}

// excerpt wraps the head of the chunk in a WAV container for content
// recognition uploads.
func (w *worker) excerpt(chunk *ingest.Chunk) []byte {
	limit := chunk.SampleRate * chunk.Channels * 2 * auddExcerptSeconds
	pcm := chunk.PCM
	if len(pcm) > limit {
		pcm = pcm[:limit]
	}
	return fingerprint.WAVBytes(pcm, chunk.SampleRate, chunk.Channels)
}

func (w *worker) publishDegraded(err error) {
	if w.sched.bus == nil {
		return
	}
	reason := "stream failure"
	if err != nil {
		reason = err.Error()
	}
	w.sched.bus.Publish(events.TypeStationDegraded, events.StationDegraded{
		StationID: w.station.ID,
		Name:      w.station.Name,
		Reason:    reason,
		At:        time.Now().UTC(),
	})
}

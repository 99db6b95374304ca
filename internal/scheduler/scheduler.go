package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"aircheck/internal/config"
	"aircheck/internal/dsp"
	"aircheck/internal/events"
	"aircheck/internal/fingerprint"
	"aircheck/internal/ingest"
	"aircheck/internal/logging"
	"aircheck/internal/resolve"
	"aircheck/internal/statsrec"
	"aircheck/internal/store"
)

const (
	// chunkQueueDepth bounds undigested chunks per station. A full queue
	// blocks the ingest side until the pipeline catches up.
	chunkQueueDepth = 3
	// restartDelay is the pause before a crashed or degraded worker cycle
	// is attempted again.
	restartDelay = 5 * time.Second
	// fatalLimit is how many consecutive failed cycles deactivate a station.
	fatalLimit = 5
	// stopGrace bounds how long Stop waits for workers to drain.
	stopGrace = 30 * time.Second
)

// ChunkSource is the ingest surface a worker consumes. Satisfied by
// *ingest.Session; tests substitute synthetic sources.
type ChunkSource interface {
	NextChunk(ctx context.Context) (*ingest.Chunk, error)
	Close() error
}

// OpenFunc attaches to a station's stream.
type OpenFunc func(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (ChunkSource, error)

func defaultOpen(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (ChunkSource, error) {
	return ingest.Open(ctx, url, cfg, logger)
}

// StationHealth is one station's live snapshot.
type StationHealth struct {
	StationID         int64
	Name              string
	State             store.StationStatus
	LastChunk         time.Time
	ConsecutiveErrors int
}

// Scheduler owns the station workers.
type Scheduler struct {
	cfg      *config.Config
	store    *store.Store
	resolver *resolve.Resolver
	recorder *statsrec.Recorder
	bus      *events.Bus
	logger   *slog.Logger
	open     OpenFunc

	extractor  *dsp.Extractor
	codec      *fingerprint.Codec
	retryDelay time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	runCtx  context.Context
	slots   chan struct{}
	workers map[int64]*worker
}

// Option adjusts scheduler construction.
type Option func(*Scheduler)

// WithOpenFunc substitutes the stream opener. Used in tests.
func WithOpenFunc(open OpenFunc) Option {
	return func(s *Scheduler) { s.open = open }
}

// WithRetryDelay shortens the pause between failed worker cycles. Used in
// tests.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.retryDelay = d }
}

// New builds a scheduler over an already-wired pipeline.
func New(cfg *config.Config, st *store.Store, resolver *resolve.Resolver, bus *events.Bus, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		cfg:        cfg,
		store:      st,
		resolver:   resolver,
		recorder:   statsrec.New(st, logger),
		bus:        bus,
		logger:     logging.WithComponent(logger, "scheduler"),
		open:       defaultOpen,
		extractor:  dsp.NewExtractor(),
		codec:      fingerprint.NewCodec(logger, cfg.FpcalcBinary()),
		retryDelay: restartDelay,
		workers:    make(map[int64]*worker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start spawns one worker per given station plus the cleanup sweep. Stations
// beyond the concurrency bound wait for a free slot.
func (s *Scheduler) Start(ctx context.Context, stations []*store.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	maxStations := s.cfg.Detection.MaxStations
	if maxStations <= 0 {
		maxStations = 5
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	s.running = true
	s.cancel = cancel
	s.group = group
	s.runCtx = groupCtx
	s.slots = make(chan struct{}, maxStations)

	for _, station := range stations {
		s.startWorkerLocked(station)
	}
	group.Go(func() error {
		s.sweepLoop(groupCtx)
		return nil
	})

	s.logger.Info("scheduler started",
		logging.Int("stations", len(stations)),
		logging.Int("max_concurrent", maxStations))
	return nil
}

// Stop cancels all workers and waits for them to flush, bounded by a grace
// period.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	group := s.group
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()
	select {
	case err := <-done:
		s.logger.Info("scheduler stopped")
		return err
	case <-time.After(stopGrace):
		return fmt.Errorf("scheduler stop timed out after %s", stopGrace)
	}
}

// Restart tears one station's worker down and starts a fresh one with the
// station row re-read from the store.
func (s *Scheduler) Restart(ctx context.Context, stationID int64) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("scheduler not running")
	}
	w := s.workers[stationID]
	if w != nil {
		delete(s.workers, stationID)
	}
	s.mu.Unlock()

	if w != nil {
		w.stop()
	}
	station, err := s.store.StationByID(ctx, stationID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return errors.New("scheduler not running")
	}
	s.startWorkerLocked(station)
	return nil
}

// Health snapshots every worker.
func (s *Scheduler) Health() map[int64]StationHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]StationHealth, len(s.workers))
	for id, w := range s.workers {
		out[id] = w.snapshot()
	}
	return out
}

func (s *Scheduler) startWorkerLocked(station *store.Station) {
	workerCtx, cancel := context.WithCancel(s.runCtx)
	w := newWorker(s, station, cancel)
	s.workers[station.ID] = w
	s.group.Go(func() error {
		defer close(w.done)
		w.run(workerCtx)
		return nil
	})
}

// sweepLoop periodically finalizes abandoned interrupted sessions on every
// tracker, so a station that stops emitting chunks still closes its last
// detection. It also restamps last_checked on every worker's station row.
func (s *Scheduler) sweepLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Detection.SweepSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := time.Now().UTC()
		s.mu.Lock()
		workers := make([]*worker, 0, len(s.workers))
		for _, w := range s.workers {
			workers = append(workers, w)
		}
		s.mu.Unlock()
		for _, w := range workers {
			if err := w.tracker.Sweep(ctx, now); err != nil && ctx.Err() == nil {
				s.logger.Warn("sweep failed", logging.Error(err))
			}
			health := w.snapshot()
			if err := s.store.UpdateStationStatus(ctx, health.StationID, health.State); err != nil && ctx.Err() == nil {
				s.logger.Warn("station health stamp failed", logging.Error(err))
			}
		}
	}
}

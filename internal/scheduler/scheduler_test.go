package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"aircheck/internal/config"
	"aircheck/internal/events"
	"aircheck/internal/ingest"
	"aircheck/internal/resolve"
	"aircheck/internal/store"
	"aircheck/internal/testsupport"
)

// stubSource feeds pre-built chunks and then reports a stream failure.
type stubSource struct {
	chunks <-chan *ingest.Chunk
	closed atomic.Bool
}

func (s *stubSource) NextChunk(ctx context.Context) (*ingest.Chunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk, ok := <-s.chunks:
		if !ok {
			return nil, ingest.ErrDegraded
		}
		return chunk, nil
	}
}

func (s *stubSource) Close() error {
	s.closed.Store(true)
	return nil
}

func silenceChunk(cfg *config.Config) *ingest.Chunk {
	samples := testsupport.Silence(cfg.Ingest.SampleRate / 2)
	return &ingest.Chunk{
		PCM:        testsupport.PCM16LE(samples, cfg.Ingest.Channels),
		SampleRate: cfg.Ingest.SampleRate,
		Channels:   cfg.Ingest.Channels,
		Duration:   cfg.ChunkDuration(),
		At:         time.Now().UTC(),
	}
}

func newScheduler(t *testing.T, open OpenFunc) (*Scheduler, *store.Store, *store.Station, *events.Bus) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	station := testsupport.NewStation(t, s, "Test FM", "http://example.com/stream")
	bus := events.NewBus()
	resolver := resolve.New(s, cfg, nil, nil, nil, nil)
	sched := New(cfg, s, resolver, bus, nil,
		WithOpenFunc(open),
		WithRetryDelay(5*time.Millisecond))
	return sched, s, station, bus
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWorkerStreamsChunksThroughPipeline(t *testing.T) {
	chunkCh := make(chan *ingest.Chunk, 8)
	open := func(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (ChunkSource, error) {
		return &stubSource{chunks: chunkCh}, nil
	}
	sched, s, station, _ := newScheduler(t, open)

	if err := sched.Start(context.Background(), []*store.Station{station}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	cfg := testsupport.NewConfig(t)
	for i := 0; i < 3; i++ {
		chunkCh <- silenceChunk(cfg)
	}

	waitFor(t, 5*time.Second, func() bool {
		h, ok := sched.Health()[station.ID]
		return ok && h.State == store.StationActive && !h.LastChunk.IsZero()
	}, "worker never reported an active station with chunks")

	waitFor(t, 5*time.Second, func() bool {
		got, err := s.StationByID(context.Background(), station.ID)
		return err == nil && got.Status == store.StationActive
	}, "station status not persisted as active")

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRepeatedFailuresDeactivateStation(t *testing.T) {
	open := func(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (ChunkSource, error) {
		return nil, ingest.ErrUnreachable
	}
	sched, s, station, bus := newScheduler(t, open)

	ch, cancel := bus.Subscribe()
	defer cancel()

	if err := sched.Start(context.Background(), []*store.Station{station}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	waitFor(t, 5*time.Second, func() bool {
		got, err := s.StationByID(context.Background(), station.ID)
		return err == nil && got.Status == store.StationInactive
	}, "station never deactivated")

	degraded := 0
	for len(ch) > 0 {
		if event := <-ch; event.Type == events.TypeStationDegraded {
			degraded++
		}
	}
	if degraded == 0 {
		t.Fatal("no degraded events published")
	}
	if h := sched.Health()[station.ID]; h.ConsecutiveErrors < fatalLimit {
		t.Fatalf("ConsecutiveErrors = %d, want at least %d", h.ConsecutiveErrors, fatalLimit)
	}
}

func TestRestartReattachesStream(t *testing.T) {
	var opens atomic.Int64
	open := func(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (ChunkSource, error) {
		opens.Add(1)
		ch := make(chan *ingest.Chunk)
		return &stubSource{chunks: ch}, nil
	}
	sched, _, station, _ := newScheduler(t, open)

	if err := sched.Start(context.Background(), []*store.Station{station}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	waitFor(t, 5*time.Second, func() bool { return opens.Load() >= 1 }, "stream never opened")

	if err := sched.Restart(context.Background(), station.ID); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return opens.Load() >= 2 }, "stream not reopened after restart")
}

func TestStartTwiceFails(t *testing.T) {
	open := func(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (ChunkSource, error) {
		return nil, errors.New("unused")
	}
	sched, _, _, _ := newScheduler(t, open)
	if err := sched.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()
	if err := sched.Start(context.Background(), nil); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestPanicInPipelineDoesNotKillProcess(t *testing.T) {
	var opens atomic.Int64
	open := func(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (ChunkSource, error) {
		if opens.Add(1) == 1 {
			ch := make(chan *ingest.Chunk, 1)
			ch <- &ingest.Chunk{PCM: nil, SampleRate: 0, Channels: 0, At: time.Now().UTC()}
			close(ch)
			return &stubSource{chunks: ch}, nil
		}
		return &stubSource{chunks: make(chan *ingest.Chunk)}, nil
	}
	sched, _, station, _ := newScheduler(t, open)

	if err := sched.Start(context.Background(), []*store.Station{station}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	// The malformed chunk either errors or panics inside the pipeline; the
	// worker must survive and attach again.
	waitFor(t, 5*time.Second, func() bool { return opens.Load() >= 2 }, "worker did not recover")
}

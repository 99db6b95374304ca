package playtrack_test

import (
	"context"
	"math"
	"testing"
	"time"

	"aircheck/internal/events"
	. "aircheck/internal/playtrack"
	"aircheck/internal/resolve"
	"aircheck/internal/statsrec"
	"aircheck/internal/store"
	"aircheck/internal/testsupport"
)

type fixture struct {
	store   *store.Store
	tracker *Tracker
	station *store.Station
	bus     *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	station := testsupport.NewStation(t, s, "Test FM", "http://example.com/stream")
	bus := events.NewBus()
	tracker := New(station.ID, s, statsrec.New(s, nil), bus, 15*time.Second, 180*time.Second, nil)
	return &fixture{store: s, tracker: tracker, station: station, bus: bus}
}

func match(track *store.Track) *resolve.Match {
	return &resolve.Match{Track: track, Confidence: 0.9, Method: store.MethodLocalExact}
}

func finalized(t *testing.T, s *store.Store, stationID int64) []*store.Detection {
	t.Helper()
	detections, err := s.RecentDetections(context.Background(), stationID, 10)
	if err != nil {
		t.Fatalf("RecentDetections: %v", err)
	}
	return detections
}

// Scenario: music, a silence gap shorter than the merge window, then the
// same music. One detection must cover the whole play.
func TestInterruptionWithinMergeWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, f.store, "Bamba", "Ali Farka", "")
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	clock := start
	observe := func(m *resolve.Match, advance time.Duration) {
		t.Helper()
		if err := f.tracker.Observe(ctx, m, clock); err != nil {
			t.Fatalf("Observe at %v: %v", clock.Sub(start), err)
		}
		clock = clock.Add(advance)
	}

	// 40 s of the track at 10 s cadence.
	for i := 0; i < 4; i++ {
		observe(match(track), 10*time.Second)
	}
	// 8 s of silence, then the track resumes for 60 s.
	observe(nil, 8*time.Second)
	for i := 0; i < 6; i++ {
		observe(match(track), 10*time.Second)
	}
	if err := f.tracker.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	detections := finalized(t, f.store, f.station.ID)
	if len(detections) != 1 {
		t.Fatalf("detections = %d, want 1 merged play", len(detections))
	}
	// 30 s before the gap, 8 s gap absorbed, 60 s after: about 100 s total,
	// within one chunk of tolerance.
	if d := detections[0].Duration; math.Abs(d-98) > 10 {
		t.Fatalf("duration = %f, want about 100", d)
	}
}

// Scenario: silence longer than the merge window splits the play in two.
func TestInterruptionBeyondMergeWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, f.store, "Bamba", "Ali Farka", "")
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	observe := func(m *resolve.Match, advance time.Duration) {
		t.Helper()
		if err := f.tracker.Observe(ctx, m, clock); err != nil {
			t.Fatalf("Observe: %v", err)
		}
		clock = clock.Add(advance)
	}

	// 30 s music.
	for i := 0; i < 3; i++ {
		observe(match(track), 10*time.Second)
	}
	// 25 s silence crosses the 15 s window on the third NoTrack chunk.
	observe(nil, 10*time.Second)
	observe(nil, 10*time.Second)
	observe(nil, 5*time.Second)
	// Same track again for 40 s.
	for i := 0; i < 4; i++ {
		observe(match(track), 10*time.Second)
	}
	if err := f.tracker.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	detections := finalized(t, f.store, f.station.ID)
	if len(detections) != 2 {
		t.Fatalf("detections = %d, want 2 separate plays", len(detections))
	}
	for _, d := range detections {
		if math.Abs(d.Duration-30) > 10 {
			t.Fatalf("duration = %f, want about 30", d.Duration)
		}
	}
}

// Scenario: track A immediately followed by track B. A finalizes where B
// starts, with no overlap.
func TestTrackChangeMidStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trackA := testsupport.NewTrack(t, f.store, "Track A", "Artist A", "")
	trackB := testsupport.NewTrack(t, f.store, "Track B", "Artist B", "")
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	observe := func(m *resolve.Match, advance time.Duration) {
		t.Helper()
		if err := f.tracker.Observe(ctx, m, clock); err != nil {
			t.Fatalf("Observe: %v", err)
		}
		clock = clock.Add(advance)
	}

	for i := 0; i < 5; i++ {
		observe(match(trackA), 10*time.Second)
	}
	for i := 0; i < 5; i++ {
		observe(match(trackB), 10*time.Second)
	}
	if err := f.tracker.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	detections := finalized(t, f.store, f.station.ID)
	if len(detections) != 2 {
		t.Fatalf("detections = %d, want 2", len(detections))
	}
	// RecentDetections is newest first.
	byTrack := map[int64]*store.Detection{}
	for _, d := range detections {
		byTrack[d.TrackID] = d
	}
	a, b := byTrack[trackA.ID], byTrack[trackB.ID]
	if a == nil || b == nil {
		t.Fatalf("missing detection per track: %+v", byTrack)
	}
	if math.Abs(a.Duration-40) > 10 || math.Abs(b.Duration-40) > 10 {
		t.Fatalf("durations = %f / %f, want about 40 each", a.Duration, b.Duration)
	}
	if b.DetectedAt.Before(a.DetectedAt.Add(time.Duration(a.Duration) * time.Second)) {
		t.Fatal("detections overlap")
	}
}

func TestSweepFinalizesAbandonedInterruption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, f.store, "Bamba", "Ali Farka", "")
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := f.tracker.Observe(ctx, match(track), clock); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	clock = clock.Add(30 * time.Second)
	if err := f.tracker.Observe(ctx, nil, clock); err != nil {
		t.Fatalf("Observe silence: %v", err)
	}

	// The station goes quiet; no more chunks arrive. The sweep picks the
	// session up once the merge window has passed.
	if err := f.tracker.Sweep(ctx, clock.Add(5*time.Second)); err != nil {
		t.Fatalf("early Sweep: %v", err)
	}
	if open, _ := f.store.OpenDetections(ctx, f.station.ID); len(open) != 1 {
		t.Fatal("sweep closed a session inside the merge window")
	}

	if err := f.tracker.Sweep(ctx, clock.Add(20*time.Second)); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if open, _ := f.store.OpenDetections(ctx, f.station.ID); len(open) != 0 {
		t.Fatal("sweep left the abandoned session open")
	}
	detections := finalized(t, f.store, f.station.ID)
	if len(detections) != 1 || math.Abs(detections[0].Duration-30) > 1 {
		t.Fatalf("swept detection = %+v", detections)
	}
}

func TestReverifyAfterMaxPlayCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, f.store, "Bamba", "Ali Farka", "FRZ031400123")
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := f.tracker.Observe(ctx, match(track), clock); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if f.tracker.ShouldReverify(clock.Add(10 * time.Second)) {
		t.Fatal("reverify demanded before the cap")
	}
	if got := f.tracker.PriorISRC(clock.Add(10 * time.Second)); got != "FRZ031400123" {
		t.Fatalf("PriorISRC = %q", got)
	}

	late := clock.Add(181 * time.Second)
	if !f.tracker.ShouldReverify(late) {
		t.Fatal("expected reverification past the cap")
	}
	if got := f.tracker.PriorISRC(late); got != "" {
		t.Fatalf("PriorISRC past cap = %q, want empty", got)
	}

	// A confirming match resets the cap window.
	if err := f.tracker.Observe(ctx, match(track), late); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if f.tracker.ShouldReverify(late.Add(10 * time.Second)) {
		t.Fatal("cap not reset after confirmation")
	}
}

// Scenario: a looped track confirmed only through the ISRC shortcut at chunk
// cadence. Shortcut confirmations echo our own prior back, so they must not
// push the cap forward or a loop would never be re-resolved.
func TestISRCConfirmationsDoNotExtendMaxPlayCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, f.store, "Bamba", "Ali Farka", "FRZ031400123")
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := f.tracker.Observe(ctx, match(track), clock); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	shortcut := &resolve.Match{Track: track, Confidence: 1.0, Method: store.MethodISRC}

	// 30 minutes of shortcut confirmations every 10 s.
	now := clock
	fired := false
	for i := 0; i < 180; i++ {
		now = now.Add(10 * time.Second)
		if f.tracker.ShouldReverify(now) {
			fired = true
			break
		}
		if err := f.tracker.Observe(ctx, shortcut, now); err != nil {
			t.Fatalf("Observe at %v: %v", now.Sub(clock), err)
		}
	}
	if !fired {
		t.Fatal("max-play cap never fired under shortcut confirmations")
	}
	if got := now.Sub(clock); got > 200*time.Second {
		t.Fatalf("cap fired after %v, want about 180s", got)
	}
	if got := f.tracker.PriorISRC(now); got != "" {
		t.Fatalf("PriorISRC at cap = %q, want empty", got)
	}

	// An independent identification restarts the window.
	verified := &resolve.Match{Track: track, Confidence: 0.95, Method: store.MethodAcoustID}
	if err := f.tracker.Observe(ctx, verified, now); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if f.tracker.ShouldReverify(now.Add(10 * time.Second)) {
		t.Fatal("cap not reset by an independent identification")
	}
	if got := f.tracker.PriorISRC(now.Add(10 * time.Second)); got != "FRZ031400123" {
		t.Fatalf("PriorISRC after reverification = %q", got)
	}
}

func TestEveryDetectionFinalizedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, f.store, "Bamba", "Ali Farka", "")
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	if err := f.tracker.Observe(ctx, match(track), clock); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if err := f.tracker.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// Flushing again with no open session is a no-op.
	if err := f.tracker.Flush(ctx); err != nil {
		t.Fatalf("second Flush: %v", err)
	}

	started, finalizedCount := 0, 0
	for len(ch) > 0 {
		event := <-ch
		switch event.Type {
		case events.TypeDetectionStarted:
			started++
		case events.TypeDetectionFinalized:
			finalizedCount++
		}
	}
	if started != 1 || finalizedCount != 1 {
		t.Fatalf("events started=%d finalized=%d, want 1/1", started, finalizedCount)
	}
	if open, _ := f.store.OpenDetections(ctx, f.station.ID); len(open) != 0 {
		t.Fatal("open detection left behind")
	}
}

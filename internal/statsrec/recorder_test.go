package statsrec

import (
	"context"
	"testing"
	"time"

	"aircheck/internal/playtrack"
	"aircheck/internal/store"
	"aircheck/internal/testsupport"
)

func TestFinalizeIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	station := testsupport.NewStation(t, s, "Test FM", "http://example.com/stream")
	track := testsupport.NewTrack(t, s, "Bamba", "Ali Farka", "FRZ031400123")
	detection, err := s.CreateDetection(ctx, station.ID, track.ID, time.Now(), 0.9, store.MethodAcoustID)
	if err != nil {
		t.Fatalf("CreateDetection: %v", err)
	}

	recorder := New(s, nil)
	finalization := playtrack.Finalization{
		DetectionID: detection.ID,
		StationID:   station.ID,
		TrackID:     track.ID,
		ArtistID:    track.ArtistID,
		Duration:    185.5,
		Confidence:  0.9,
		Method:      store.MethodAcoustID,
		PlayedAt:    time.Now(),
	}
	if err := recorder.Finalize(ctx, finalization); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	stats, err := s.StationTrackStatsFor(ctx, station.ID, track.ID)
	if err != nil {
		t.Fatalf("StationTrackStatsFor: %v", err)
	}
	if stats.PlayCount != 1 || stats.TotalSeconds != 185.5 {
		t.Fatalf("stats after first finalize = %+v", stats)
	}

	// Replaying the exact same finalization must change nothing.
	if err := recorder.Finalize(ctx, finalization); err != nil {
		t.Fatalf("replay Finalize: %v", err)
	}
	replayed, err := s.StationTrackStatsFor(ctx, station.ID, track.ID)
	if err != nil {
		t.Fatalf("StationTrackStatsFor: %v", err)
	}
	if replayed.PlayCount != 1 || replayed.TotalSeconds != 185.5 {
		t.Fatalf("stats after replay = %+v", replayed)
	}

	trackStats, err := s.TrackStatsFor(ctx, track.ID)
	if err != nil {
		t.Fatalf("TrackStatsFor: %v", err)
	}
	if trackStats.PlayCount != 1 {
		t.Fatalf("track stats = %+v", trackStats)
	}
	artistStats, err := s.ArtistStatsFor(ctx, track.ArtistID)
	if err != nil {
		t.Fatalf("ArtistStatsFor: %v", err)
	}
	if artistStats.PlayCount != 1 {
		t.Fatalf("artist stats = %+v", artistStats)
	}
}

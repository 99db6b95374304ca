package testsupport

import (
	"context"
	"testing"

	"aircheck/internal/config"
	"aircheck/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// NewStation creates a station row for tests using the provided store.
func NewStation(t testing.TB, s *store.Store, name, streamURL string) *store.Station {
	t.Helper()

	station, err := s.CreateStation(context.Background(), name, streamURL)
	if err != nil {
		t.Fatalf("store.CreateStation: %v", err)
	}
	return station
}

// NewTrack creates an artist and track pair for tests.
func NewTrack(t testing.TB, s *store.Store, title, artist, isrc string) *store.Track {
	t.Helper()

	ctx := context.Background()
	a, err := s.EnsureArtist(ctx, artist)
	if err != nil {
		t.Fatalf("store.EnsureArtist: %v", err)
	}
	track, err := s.CreateTrack(ctx, &store.Track{Title: title, ArtistID: a.ID, ISRC: isrc})
	if err != nil {
		t.Fatalf("store.CreateTrack: %v", err)
	}
	return track
}

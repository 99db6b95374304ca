package resolve

import (
	"context"
	"testing"

	"aircheck/internal/dsp"
	"aircheck/internal/fingerprint"
	"aircheck/internal/musicid"
	"aircheck/internal/musicid/acoustid"
	"aircheck/internal/musicid/audd"
	"aircheck/internal/musicid/musicbrainz"
	"aircheck/internal/store"
	"aircheck/internal/testsupport"
)

type stubAcoustic struct {
	match *acoustid.Match
	err   error
	calls int
}

func (s *stubAcoustic) Lookup(ctx context.Context, fp string, duration int) (*acoustid.Match, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.match, nil
}

type stubContent struct {
	result *audd.Result
	err    error
	calls  int
}

func (s *stubContent) Recognize(ctx context.Context, audio []byte) (*audd.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubMetadata struct {
	candidates []musicbrainz.Candidate
	err        error
	calls      int
}

func (s *stubMetadata) Search(ctx context.Context, artist, title string) ([]musicbrainz.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func testBundle() *dsp.FeatureBundle {
	return &dsp.FeatureBundle{
		MFCCMean:         []float64{1.5, -2.25, 0.75},
		ChromaMean:       []float64{0.3, 0.3, 0.4},
		SpectralCentroid: 1800,
		RhythmStrength:   0.6,
	}
}

func testPair(t *testing.T) *fingerprint.Pair {
	t.Helper()
	features := fingerprint.CanonicalFeatures(testBundle())
	hash, payload, err := features.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return &fingerprint.Pair{
		Hash:                  hash,
		Payload:               payload,
		ChromaprintCompressed: "AQAAcompressed",
		Duration:              10,
	}
}

func newResolver(t *testing.T, s *store.Store, acoustic AcousticClient, content ContentClient, metadata MetadataClient) *Resolver {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return New(s, cfg, acoustic, content, metadata, nil)
}

func TestFreshIdentificationViaAcoustID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	acoustic := &stubAcoustic{match: &acoustid.Match{
		RecordingID: "rec-1",
		Title:       "Bamba",
		Artist:      "Ali Farka",
		ISRC:        "FRZ031400123",
		Score:       0.93,
	}}
	r := newResolver(t, s, acoustic, nil, nil)

	input := Input{StationID: 1, Bundle: testBundle(), Pair: testPair(t), ChunkSeconds: 10}
	match, err := r.Resolve(context.Background(), input)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if match == nil || match.Method != store.MethodAcoustID {
		t.Fatalf("match = %+v, want acoustid", match)
	}
	if match.Confidence < 0.8 {
		t.Fatalf("confidence = %f, want >= 0.8", match.Confidence)
	}
	if match.Track.ISRC != "FRZ031400123" {
		t.Fatalf("track isrc = %q", match.Track.ISRC)
	}

	// A second run of the same clip must reuse the stored fingerprint and
	// never touch the provider again.
	again, err := r.Resolve(context.Background(), input)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if again.Method != store.MethodLocalExact || again.Confidence != 1.0 {
		t.Fatalf("second match = %+v, want local_exact at 1.0", again)
	}
	if again.Track.ID != match.Track.ID {
		t.Fatal("second run created a duplicate track")
	}
	if acoustic.calls != 1 {
		t.Fatalf("acoustid calls = %d, want 1", acoustic.calls)
	}
}

func TestISRCDedupAcrossStations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	existing := testsupport.NewTrack(t, s, "Bamba", "Ali Farka", "FRZ031400123")

	content := &stubContent{result: &audd.Result{
		Artist:     "Ali Farka Toure",
		Title:      "Bamba",
		Album:      "Savane",
		AppleMusic: &audd.AppleMusic{ISRC: "FRZ031400123"},
	}}
	r := newResolver(t, s, nil, content, nil)

	// No chromaprint on this chunk, so the cascade falls through to the
	// content probe.
	match, err := r.Resolve(context.Background(), Input{
		StationID: 2,
		Bundle:    testBundle(),
		Pair:      &fingerprint.Pair{},
		Excerpt:   []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if match == nil || match.Method != store.MethodAudD {
		t.Fatalf("match = %+v, want audd", match)
	}
	if match.Track.ID != existing.ID {
		t.Fatalf("track id = %d, want existing %d", match.Track.ID, existing.ID)
	}
	if match.Track.Album != "Savane" {
		t.Fatalf("missing fields not filled: %+v", match.Track)
	}
}

func TestLocalFallbackWhenProviderDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	track := testsupport.NewTrack(t, s, "Windowlicker", "Aphex Twin", "")

	pair := testPair(t)
	if _, err := s.InsertFingerprint(context.Background(), &store.Fingerprint{
		TrackID:   track.ID,
		Hash:      pair.Hash,
		Payload:   pair.Payload,
		Algorithm: store.AlgorithmMD5,
	}); err != nil {
		t.Fatalf("InsertFingerprint: %v", err)
	}

	acoustic := &stubAcoustic{err: musicid.Wrap(musicid.ErrTransient, "acoustid", "lookup", "status 503", nil)}
	r := newResolver(t, s, acoustic, nil, nil)

	match, err := r.Resolve(context.Background(), Input{Bundle: testBundle(), Pair: pair})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if match == nil || match.Method != store.MethodLocalExact || match.Confidence != 1.0 {
		t.Fatalf("match = %+v, want local_exact at 1.0", match)
	}
	if acoustic.calls != 0 {
		t.Fatal("local hit must not reach the provider")
	}
}

func TestTransientProviderFailureTripsBreaker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Breaker.FailureThreshold = 1
	s := testsupport.MustOpenStore(t, cfg)

	acoustic := &stubAcoustic{err: musicid.Wrap(musicid.ErrTransient, "acoustid", "lookup", "status 503", nil)}
	r := New(s, cfg, acoustic, nil, nil, nil)

	match, err := r.Resolve(context.Background(), Input{Bundle: testBundle(), Pair: testPair(t), ChunkSeconds: 10})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if match != nil {
		t.Fatalf("match = %+v, want none", match)
	}
	if got := r.BreakerStates()["acoustid"]; got != musicid.BreakerOpen {
		t.Fatalf("breaker state = %s, want open", got)
	}

	// With the breaker open the provider is not called again.
	calls := acoustic.calls
	if _, err := r.Resolve(context.Background(), Input{Bundle: testBundle(), Pair: testPair(t), ChunkSeconds: 10}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if acoustic.calls != calls {
		t.Fatal("open breaker still admitted a provider call")
	}
}

func TestMetadataHintMergedIntoContentResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)

	metadata := &stubMetadata{candidates: []musicbrainz.Candidate{{
		Title:       "Teardrop",
		Artist:      "Massive Attack",
		Album:       "Mezzanine",
		ReleaseDate: "1998-04-20",
		ISRC:        "GBAAA9800123",
		Score:       0.95,
	}}}
	acoustic := &stubAcoustic{match: &acoustid.Match{Title: "Wrong", Artist: "Wrong", Score: 0.99}}
	content := &stubContent{result: &audd.Result{Artist: "Massive Attack", Title: "Teardrop"}}
	r := newResolver(t, s, acoustic, content, metadata)

	match, err := r.Resolve(context.Background(), Input{
		Bundle:      testBundle(),
		Pair:        testPair(t),
		Excerpt:     []byte("wav-bytes"),
		StreamTitle: "Massive Attack - Teardrop",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if match == nil || match.Method != store.MethodAudD {
		t.Fatalf("match = %+v, want audd", match)
	}
	// The confident directory hit skips the acoustic probe and supplies the
	// ISRC the content result lacked.
	if acoustic.calls != 0 {
		t.Fatalf("acoustic calls = %d, want 0 after metadata hit", acoustic.calls)
	}
	if match.Track.ISRC != "GBAAA9800123" || match.Track.Album != "Mezzanine" {
		t.Fatalf("hint not merged: %+v", match.Track)
	}
}

func TestFuzzyDedupWithoutISRC(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	existing := testsupport.NewTrack(t, s, "One More Time", "Daft Punk", "")

	content := &stubContent{result: &audd.Result{Artist: "DAFT PUNK", Title: "One More Time"}}
	r := newResolver(t, s, nil, content, nil)

	match, err := r.Resolve(context.Background(), Input{
		Bundle:  testBundle(),
		Pair:    &fingerprint.Pair{},
		Excerpt: []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if match == nil || match.Track.ID != existing.ID {
		t.Fatalf("fuzzy dedup failed: %+v", match)
	}
}

func TestParseHint(t *testing.T) {
	tests := []struct {
		input      string
		wantArtist string
		wantTitle  string
		wantOK     bool
	}{
		{"Massive Attack - Teardrop", "Massive Attack", "Teardrop", true},
		{"Ali Farka — Bamba", "Ali Farka", "Bamba", true},
		{"just a slogan", "", "", false},
		{" - Teardrop", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range tests {
		hint, ok := ParseHint(tc.input)
		if ok != tc.wantOK {
			t.Fatalf("ParseHint(%q) ok = %v", tc.input, ok)
		}
		if hint.Artist != tc.wantArtist || hint.Title != tc.wantTitle {
			t.Fatalf("ParseHint(%q) = %+v", tc.input, hint)
		}
	}
}

func TestFuzzyRatio(t *testing.T) {
	if got := fuzzyRatio("Teardrop", "teardrop"); got != 1 {
		t.Fatalf("case fold ratio = %f, want 1", got)
	}
	if got := fuzzyRatio("One More Time", "One More Tim"); got < 0.8 {
		t.Fatalf("near match ratio = %f, want >= 0.8", got)
	}
	if got := fuzzyRatio("Teardrop", "Bamba"); got >= 0.8 {
		t.Fatalf("unrelated ratio = %f, want < 0.8", got)
	}
}

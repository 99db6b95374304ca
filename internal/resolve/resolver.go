package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"aircheck/internal/config"
	"aircheck/internal/dsp"
	"aircheck/internal/fingerprint"
	"aircheck/internal/logging"
	"aircheck/internal/musicid"
	"aircheck/internal/musicid/acoustid"
	"aircheck/internal/musicid/audd"
	"aircheck/internal/musicid/musicbrainz"
	"aircheck/internal/store"
)

const (
	localTimeout    = 200 * time.Millisecond
	externalTimeout = 5 * time.Second

	// AudD reports no score of its own; a returned result is a strong match.
	auddConfidence = 0.9
)

// AcousticClient is the acoustic-ID lookup surface.
type AcousticClient interface {
	Lookup(ctx context.Context, fingerprint string, durationSeconds int) (*acoustid.Match, error)
}

// ContentClient is the content-ID recognition surface.
type ContentClient interface {
	Recognize(ctx context.Context, audio []byte) (*audd.Result, error)
}

// MetadataClient is the metadata directory search surface.
type MetadataClient interface {
	Search(ctx context.Context, artist, title string) ([]musicbrainz.Candidate, error)
}

// Input is everything one chunk brings to the cascade.
type Input struct {
	StationID int64
	Bundle    *dsp.FeatureBundle
	Pair      *fingerprint.Pair

	// Excerpt is a bounded WAV-wrapped sample for the content probe.
	Excerpt []byte

	// StreamTitle is the untrusted in-band ICY metadata, if any.
	StreamTitle string

	// PriorISRC is carried from a previous chunk of the same suspected track.
	PriorISRC string

	// ChunkSeconds approximates the excerpt duration for the acoustic probe
	// when Chromaprint did not report one.
	ChunkSeconds int
}

// Match is a successful identification.
type Match struct {
	Track      *store.Track
	Confidence float64
	Method     store.Method
}

// providerMeta is the normalized output of any external provider, fed to
// canonicalization.
type providerMeta struct {
	Title       string
	Artist      string
	Album       string
	Label       string
	ReleaseDate string
	ISRC        string
	Duration    float64
}

// Resolver runs the cascade. External clients may be nil when unconfigured;
// the corresponding steps are skipped.
type Resolver struct {
	store    *store.Store
	acoustic AcousticClient
	content  ContentClient
	metadata MetadataClient

	acousticBreaker *musicid.Breaker
	contentBreaker  *musicid.Breaker
	metadataBreaker *musicid.Breaker

	localThreshold    float64
	chromaThreshold   float64
	acousticThreshold float64
	metadataThreshold float64
	fuzzyThreshold    float64

	logger *slog.Logger
}

// New wires a resolver from configuration. Breakers use the configured
// failure threshold, window, and open period.
func New(s *store.Store, cfg *config.Config, acoustic AcousticClient, content ContentClient, metadata MetadataClient, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	window := time.Duration(cfg.Breaker.WindowSeconds) * time.Second
	openFor := time.Duration(cfg.Breaker.OpenSeconds) * time.Second
	return &Resolver{
		store:             s,
		acoustic:          acoustic,
		content:           content,
		metadata:          metadata,
		acousticBreaker:   musicid.NewBreaker("acoustid", cfg.Breaker.FailureThreshold, window, openFor),
		contentBreaker:    musicid.NewBreaker("audd", cfg.Breaker.FailureThreshold, window, openFor),
		metadataBreaker:   musicid.NewBreaker("musicbrainz", cfg.Breaker.FailureThreshold, window, openFor),
		localThreshold:    cfg.Detection.LocalThreshold,
		chromaThreshold:   cfg.Detection.ChromaThreshold,
		acousticThreshold: cfg.Detection.AcoustIDThreshold,
		metadataThreshold: cfg.Detection.LocalThreshold,
		fuzzyThreshold:    cfg.Detection.FuzzyTitleThreshold,
		logger:            logging.WithComponent(logger, "resolver"),
	}
}

// BreakerStates reports the provider breakers for health output.
func (r *Resolver) BreakerStates() map[string]musicid.BreakerState {
	return map[string]musicid.BreakerState{
		"acoustid":    r.acousticBreaker.State(),
		"audd":        r.contentBreaker.State(),
		"musicbrainz": r.metadataBreaker.State(),
	}
}

// Resolve runs the cascade for one music chunk. A nil match with nil error
// means no step produced an identification. Persistence failures are
// returned as errors and abort the station cycle.
func (r *Resolver) Resolve(ctx context.Context, input Input) (*Match, error) {
	// Step 1: ISRC shortcut from a previous chunk of the same track.
	if isrc := strings.TrimSpace(input.PriorISRC); isrc != "" {
		track, err := r.trackByISRC(ctx, isrc)
		if err != nil {
			return nil, err
		}
		if track != nil {
			return &Match{Track: track, Confidence: 1.0, Method: store.MethodISRC}, nil
		}
	}

	// Step 2: exact hash lookup.
	if input.Pair != nil && input.Pair.Hash != "" {
		track, err := r.localExact(ctx, input.Pair.Hash)
		if err != nil {
			return nil, err
		}
		if track != nil {
			return &Match{Track: track, Confidence: 1.0, Method: store.MethodLocalExact}, nil
		}
	}

	// Step 3: bounded similarity scan.
	if input.Pair != nil {
		track, score, err := r.localSimilarity(ctx, input)
		if err != nil {
			return nil, err
		}
		if track != nil {
			return &Match{Track: track, Confidence: score, Method: store.MethodLocalSimilarity}, nil
		}
	}

	// Step 4: metadata probe on structured ICY hints. A confident directory
	// hit skips the acoustic probe and goes straight to content confirmation
	// with the candidate's metadata carried as a merge source.
	var hint *providerMeta
	if parsed, ok := ParseHint(input.StreamTitle); ok {
		hint = r.metadataProbe(ctx, parsed)
	}

	// Step 5: acoustic probe, skipped after a confident metadata hit.
	if hint == nil {
		if meta, confidence := r.acousticProbe(ctx, input); meta != nil {
			return r.canonicalize(ctx, *meta, input.Pair, store.MethodAcoustID, confidence)
		}
	}

	// Step 6: content probe.
	if meta := r.contentProbe(ctx, input); meta != nil {
		merged := mergeMeta(*meta, hint)
		return r.canonicalize(ctx, merged, input.Pair, store.MethodAudD, auddConfidence)
	}

	return nil, nil
}

func (r *Resolver) trackByISRC(ctx context.Context, isrc string) (*store.Track, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()
	track, err := r.store.TrackByISRC(lookupCtx, isrc)
	if err == store.ErrNotFound {
		return nil, nil
	}
	return track, err
}

func (r *Resolver) localExact(ctx context.Context, hash string) (*store.Track, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()
	fp, err := r.store.FingerprintByHash(lookupCtx, hash)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.store.TrackByID(lookupCtx, fp.TrackID)
}

// localSimilarity scans stored fingerprints for the best scoring match at or
// above the per-algorithm threshold.
func (r *Resolver) localSimilarity(ctx context.Context, input Input) (*store.Track, float64, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()

	fingerprints, err := r.store.ListFingerprints(lookupCtx, "", 0)
	if err != nil {
		return nil, 0, err
	}
	features := fingerprint.CanonicalFeatures(input.Bundle)

	var bestTrack int64
	var bestScore float64
	for _, fp := range fingerprints {
		var score, threshold float64
		switch fp.Algorithm {
		case store.AlgorithmMD5:
			stored, decodeErr := fingerprint.DecodeFeatures(fp.Payload)
			if decodeErr != nil {
				continue
			}
			score = fingerprint.FeatureSimilarity(features, stored)
			threshold = r.localThreshold
		case store.AlgorithmChromaprint:
			if len(input.Pair.Chromaprint) == 0 {
				continue
			}
			score = fingerprint.HammingSimilarity(input.Pair.Chromaprint, fingerprint.DecodeChromaprint(fp.Payload))
			threshold = r.chromaThreshold
		default:
			continue
		}
		if score >= threshold && score > bestScore {
			bestScore = score
			bestTrack = fp.TrackID
		}
	}
	if bestTrack == 0 {
		return nil, 0, nil
	}
	track, err := r.store.TrackByID(ctx, bestTrack)
	if err != nil {
		return nil, 0, err
	}
	return track, bestScore, nil
}

func (r *Resolver) metadataProbe(ctx context.Context, hint Hint) *providerMeta {
	if r.metadata == nil || !r.metadataBreaker.Allow() {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, externalTimeout)
	defer cancel()

	candidates, err := r.metadata.Search(probeCtx, hint.Artist, hint.Title)
	if err != nil {
		r.observeProviderError(r.metadataBreaker, "metadata probe", err)
		return nil
	}
	r.metadataBreaker.Success()

	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	if best.Score < r.metadataThreshold {
		return nil
	}
	return &providerMeta{
		Title:       best.Title,
		Artist:      best.Artist,
		Album:       best.Album,
		ReleaseDate: best.ReleaseDate,
		ISRC:        best.ISRC,
		Duration:    best.Duration,
	}
}

func (r *Resolver) acousticProbe(ctx context.Context, input Input) (*providerMeta, float64) {
	if r.acoustic == nil || input.Pair == nil || input.Pair.ChromaprintCompressed == "" {
		return nil, 0
	}
	duration := int(input.Pair.Duration)
	if duration <= 0 {
		duration = input.ChunkSeconds
	}
	if duration <= 0 {
		return nil, 0
	}
	if !r.acousticBreaker.Allow() {
		return nil, 0
	}
	probeCtx, cancel := context.WithTimeout(ctx, externalTimeout)
	defer cancel()

	match, err := r.acoustic.Lookup(probeCtx, input.Pair.ChromaprintCompressed, duration)
	if err != nil {
		r.observeProviderError(r.acousticBreaker, "acoustic probe", err)
		return nil, 0
	}
	r.acousticBreaker.Success()

	if match.Score < r.acousticThreshold {
		return nil, 0
	}
	return &providerMeta{
		Title:    match.Title,
		Artist:   match.Artist,
		Album:    match.Album,
		ISRC:     match.ISRC,
		Duration: match.Duration,
	}, match.Score
}

func (r *Resolver) contentProbe(ctx context.Context, input Input) *providerMeta {
	if r.content == nil || len(input.Excerpt) == 0 {
		return nil
	}
	if !r.contentBreaker.Allow() {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, externalTimeout)
	defer cancel()

	result, err := r.content.Recognize(probeCtx, input.Excerpt)
	if err != nil {
		r.observeProviderError(r.contentBreaker, "content probe", err)
		return nil
	}
	r.contentBreaker.Success()

	return &providerMeta{
		Title:       result.Title,
		Artist:      result.Artist,
		Album:       result.Album,
		Label:       result.Label,
		ReleaseDate: result.ReleaseDate,
		ISRC:        result.ResolveISRC(),
	}
}

// observeProviderError counts transient failures toward the breaker. A clean
// no-match is a successful call.
func (r *Resolver) observeProviderError(breaker *musicid.Breaker, op string, err error) {
	if musicid.IsNoMatch(err) {
		breaker.Success()
		return
	}
	breaker.Failure()
	r.logger.Warn("provider call failed",
		logging.String("operation", op),
		logging.String(logging.FieldProvider, breaker.Provider()),
		logging.Error(err))
}

// mergeMeta fills fields missing from the primary result with the metadata
// probe's candidate.
func mergeMeta(primary providerMeta, hint *providerMeta) providerMeta {
	if hint == nil {
		return primary
	}
	if primary.ISRC == "" {
		primary.ISRC = hint.ISRC
	}
	if primary.Album == "" {
		primary.Album = hint.Album
	}
	if primary.ReleaseDate == "" {
		primary.ReleaseDate = hint.ReleaseDate
	}
	if primary.Duration == 0 {
		primary.Duration = hint.Duration
	}
	return primary
}

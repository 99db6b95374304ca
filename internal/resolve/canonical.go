package resolve

import (
	"context"
	"fmt"
	"strings"

	"aircheck/internal/fingerprint"
	"aircheck/internal/logging"
	"aircheck/internal/store"
)

// canonicalize turns provider metadata into a catalog track. ISRC is the
// primary dedup key; without one a fuzzy (title, artist) match prevents near
// duplicates. Newly created tracks get the chunk's fingerprints attached so
// the next play resolves locally.
func (r *Resolver) canonicalize(ctx context.Context, meta providerMeta, pair *fingerprint.Pair, method store.Method, confidence float64) (*Match, error) {
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Artist = strings.TrimSpace(meta.Artist)
	meta.ISRC = strings.ToUpper(strings.TrimSpace(meta.ISRC))
	if meta.Title == "" || meta.Artist == "" {
		return nil, nil
	}

	if meta.ISRC != "" {
		existing, err := r.store.TrackByISRC(ctx, meta.ISRC)
		if err != nil && err != store.ErrNotFound {
			return nil, err
		}
		if existing != nil {
			updated, fillErr := r.store.FillTrackFields(ctx, existing.ID, &store.Track{
				Label:       meta.Label,
				Album:       meta.Album,
				ReleaseDate: meta.ReleaseDate,
				Duration:    meta.Duration,
			})
			if fillErr != nil {
				return nil, fillErr
			}
			return &Match{Track: updated, Confidence: confidence, Method: method}, nil
		}
	} else {
		existing, err := r.fuzzyLookup(ctx, meta.Title, meta.Artist)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &Match{Track: existing, Confidence: confidence, Method: method}, nil
		}
	}

	track, err := r.createTrack(ctx, meta)
	if err != nil {
		return nil, err
	}
	if err := r.attachFingerprints(ctx, track.ID, pair); err != nil {
		return nil, err
	}

	r.logger.Info("new track identified",
		logging.Int64(logging.FieldTrack, track.ID),
		logging.String("title", track.Title),
		logging.String("artist", meta.Artist),
		logging.String(logging.FieldMethod, string(method)))
	return &Match{Track: track, Confidence: confidence, Method: method}, nil
}

// createTrack inserts the artist and track. An ISRC uniqueness race means a
// concurrent worker won the create; the loser re-reads and reuses that row.
func (r *Resolver) createTrack(ctx context.Context, meta providerMeta) (*store.Track, error) {
	artist, err := r.store.EnsureArtist(ctx, meta.Artist)
	if err != nil {
		return nil, err
	}
	track, err := r.store.CreateTrack(ctx, &store.Track{
		Title:       meta.Title,
		ArtistID:    artist.ID,
		ISRC:        meta.ISRC,
		Label:       meta.Label,
		Album:       meta.Album,
		ReleaseDate: meta.ReleaseDate,
		Duration:    meta.Duration,
	})
	if store.IsConflict(err) && meta.ISRC != "" {
		existing, readErr := r.store.TrackByISRC(ctx, meta.ISRC)
		if readErr != nil {
			return nil, fmt.Errorf("re-read after isrc conflict: %w", readErr)
		}
		return existing, nil
	}
	return track, err
}

func (r *Resolver) fuzzyLookup(ctx context.Context, title, artist string) (*store.Track, error) {
	candidates, err := r.store.TrackCandidates(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if fuzzyRatio(candidate.Title, title) >= r.fuzzyThreshold &&
			fuzzyRatio(candidate.ArtistName, artist) >= r.fuzzyThreshold {
			return candidate, nil
		}
	}
	return nil, nil
}

func (r *Resolver) attachFingerprints(ctx context.Context, trackID int64, pair *fingerprint.Pair) error {
	if pair == nil {
		return nil
	}
	if pair.Hash != "" {
		if _, err := r.store.InsertFingerprint(ctx, &store.Fingerprint{
			TrackID:   trackID,
			Hash:      pair.Hash,
			Payload:   pair.Payload,
			Algorithm: store.AlgorithmMD5,
		}); err != nil {
			return err
		}
	}
	if len(pair.Chromaprint) > 0 {
		if _, err := r.store.InsertFingerprint(ctx, &store.Fingerprint{
			TrackID:   trackID,
			Hash:      pair.Hash,
			Payload:   fingerprint.EncodeChromaprint(pair.Chromaprint),
			Algorithm: store.AlgorithmChromaprint,
		}); err != nil {
			return err
		}
	}
	return nil
}

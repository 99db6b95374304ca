// Package statsrec closes play sessions. Detection finalization and the
// three stats upserts happen in one transaction, guarded so a replayed
// finalization changes nothing.
package statsrec

import (
	"context"
	"log/slog"

	"aircheck/internal/logging"
	"aircheck/internal/playtrack"
	"aircheck/internal/store"
)

// Recorder implements playtrack.Finalizer on top of the store.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a recorder.
func New(s *store.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{store: s, logger: logging.WithComponent(logger, "statsrec")}
}

var _ playtrack.Finalizer = (*Recorder)(nil)

// Finalize writes the final duration and confidence and folds the play into
// the station, track, and artist aggregates. The detection row acts as the
// idempotence guard: once finalized, replays skip the stats entirely.
func (r *Recorder) Finalize(ctx context.Context, finalization playtrack.Finalization) error {
	return r.store.InTx(ctx, func(tx *store.Tx) error {
		applied, err := tx.FinalizeDetection(ctx, finalization.DetectionID, finalization.Duration, finalization.Confidence)
		if err != nil {
			return err
		}
		if !applied {
			r.logger.Debug("finalization replayed, skipping stats",
				logging.Int64(logging.FieldDetection, finalization.DetectionID))
			return nil
		}

		play := store.RecordPlay{
			StationID:  finalization.StationID,
			TrackID:    finalization.TrackID,
			ArtistID:   finalization.ArtistID,
			Duration:   finalization.Duration,
			Confidence: finalization.Confidence,
			PlayedAt:   finalization.PlayedAt,
		}
		if err := tx.UpsertStationTrackStats(ctx, play); err != nil {
			return err
		}
		if err := tx.UpsertTrackStats(ctx, play); err != nil {
			return err
		}
		return tx.UpsertArtistStats(ctx, play)
	})
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordPlay folds one finalized play into a stats row. The rolling average
// confidence uses the running count so replays never need the full history.
type RecordPlay struct {
	StationID  int64
	TrackID    int64
	ArtistID   int64
	Duration   float64
	Confidence float64
	PlayedAt   time.Time
}

// UpsertStationTrackStats applies one play to the per-station aggregate.
func (t *Tx) UpsertStationTrackStats(ctx context.Context, play RecordPlay) error {
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO station_track_stats (station_id, track_id, play_count, total_seconds, last_played_at, avg_confidence)
         VALUES (?, ?, 1, ?, ?, ?)
         ON CONFLICT (station_id, track_id) DO UPDATE SET
             play_count = play_count + 1,
             total_seconds = total_seconds + excluded.total_seconds,
             last_played_at = excluded.last_played_at,
             avg_confidence = (avg_confidence * play_count + excluded.avg_confidence) / (play_count + 1)`,
		play.StationID, play.TrackID, play.Duration, formatTime(play.PlayedAt), play.Confidence,
	)
	if err != nil {
		return fmt.Errorf("upsert station track stats: %w", err)
	}
	return nil
}

// UpsertTrackStats applies one play to the station-agnostic track aggregate.
func (t *Tx) UpsertTrackStats(ctx context.Context, play RecordPlay) error {
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO track_stats (track_id, play_count, total_seconds, last_played_at, avg_confidence)
         VALUES (?, 1, ?, ?, ?)
         ON CONFLICT (track_id) DO UPDATE SET
             play_count = play_count + 1,
             total_seconds = total_seconds + excluded.total_seconds,
             last_played_at = excluded.last_played_at,
             avg_confidence = (avg_confidence * play_count + excluded.avg_confidence) / (play_count + 1)`,
		play.TrackID, play.Duration, formatTime(play.PlayedAt), play.Confidence,
	)
	if err != nil {
		return fmt.Errorf("upsert track stats: %w", err)
	}
	return nil
}

// UpsertArtistStats applies one play to the artist aggregate.
func (t *Tx) UpsertArtistStats(ctx context.Context, play RecordPlay) error {
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO artist_stats (artist_id, play_count, total_seconds, last_played_at)
         VALUES (?, 1, ?, ?)
         ON CONFLICT (artist_id) DO UPDATE SET
             play_count = play_count + 1,
             total_seconds = total_seconds + excluded.total_seconds,
             last_played_at = excluded.last_played_at`,
		play.ArtistID, play.Duration, formatTime(play.PlayedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert artist stats: %w", err)
	}
	return nil
}

// StationTrackStatsFor reads the aggregate for one (station, track) pair.
func (s *Store) StationTrackStatsFor(ctx context.Context, stationID, trackID int64) (*StationTrackStats, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT station_id, track_id, play_count, total_seconds, last_played_at, avg_confidence
         FROM station_track_stats WHERE station_id = ? AND track_id = ?`,
		stationID, trackID,
	)
	stats := &StationTrackStats{}
	var lastPlayed sql.NullString
	err := row.Scan(&stats.StationID, &stats.TrackID, &stats.PlayCount, &stats.TotalSeconds, &lastPlayed, &stats.AvgConfidence)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get station track stats: %w", err)
	}
	if lastPlayed.Valid {
		if parsed, perr := parseTimeString(lastPlayed.String); perr == nil {
			stats.LastPlayedAt = parsed
		}
	}
	return stats, nil
}

// TrackStatsFor reads the station-agnostic aggregate for a track.
func (s *Store) TrackStatsFor(ctx context.Context, trackID int64) (*TrackStats, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT track_id, play_count, total_seconds, last_played_at, avg_confidence
         FROM track_stats WHERE track_id = ?`,
		trackID,
	)
	stats := &TrackStats{}
	var lastPlayed sql.NullString
	err := row.Scan(&stats.TrackID, &stats.PlayCount, &stats.TotalSeconds, &lastPlayed, &stats.AvgConfidence)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track stats: %w", err)
	}
	if lastPlayed.Valid {
		if parsed, perr := parseTimeString(lastPlayed.String); perr == nil {
			stats.LastPlayedAt = parsed
		}
	}
	return stats, nil
}

// ArtistStatsFor reads the aggregate for an artist.
func (s *Store) ArtistStatsFor(ctx context.Context, artistID int64) (*ArtistStats, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT artist_id, play_count, total_seconds, last_played_at
         FROM artist_stats WHERE artist_id = ?`,
		artistID,
	)
	stats := &ArtistStats{}
	var lastPlayed sql.NullString
	err := row.Scan(&stats.ArtistID, &stats.PlayCount, &stats.TotalSeconds, &lastPlayed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artist stats: %w", err)
	}
	if lastPlayed.Valid {
		if parsed, perr := parseTimeString(lastPlayed.String); perr == nil {
			stats.LastPlayedAt = parsed
		}
	}
	return stats, nil
}

// TopTracks returns the most played tracks across all stations.
func (s *Store) TopTracks(ctx context.Context, limit int) ([]*TopTrack, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT ts.track_id, t.title, a.name, ts.play_count, ts.total_seconds
         FROM track_stats ts
         JOIN tracks t ON t.id = ts.track_id
         JOIN artists a ON a.id = t.artist_id
         ORDER BY ts.play_count DESC, ts.total_seconds DESC
         LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list top tracks: %w", err)
	}
	defer rows.Close()

	var top []*TopTrack
	for rows.Next() {
		row := &TopTrack{}
		if err := rows.Scan(&row.TrackID, &row.Title, &row.ArtistName, &row.PlayCount, &row.TotalSeconds); err != nil {
			return nil, err
		}
		top = append(top, row)
	}
	return top, rows.Err()
}

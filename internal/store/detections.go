package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const detectionColumns = "id, station_id, track_id, detected_at, duration, confidence, method, finalized, created_at, updated_at"

// CreateDetection opens an in-progress detection for a track on a station.
func (s *Store) CreateDetection(ctx context.Context, stationID, trackID int64, detectedAt time.Time, confidence float64, method Method) (*Detection, error) {
	if stationID == 0 || trackID == 0 {
		return nil, errors.New("detection requires station and track")
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO detections (station_id, track_id, detected_at, duration, confidence, method, finalized, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?, 0, ?, ?)`,
		stationID, trackID, formatTime(detectedAt), confidence, method, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert detection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.DetectionByID(ctx, id)
}

// DetectionByID fetches a detection by identifier.
func (s *Store) DetectionByID(ctx context.Context, id int64) (*Detection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+detectionColumns+` FROM detections WHERE id = ?`, id)
	detection, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get detection: %w", err)
	}
	return detection, nil
}

// OpenDetections returns unfinalized detections, optionally for one station.
// The cleanup sweep uses this to close sessions abandoned by degraded stations.
func (s *Store) OpenDetections(ctx context.Context, stationID int64) ([]*Detection, error) {
	query := `SELECT ` + detectionColumns + ` FROM detections WHERE finalized = 0`
	args := []any{}
	if stationID > 0 {
		query += ` AND station_id = ?`
		args = append(args, stationID)
	}
	query += ` ORDER BY detected_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open detections: %w", err)
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		detection, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		detections = append(detections, detection)
	}
	return detections, rows.Err()
}

// RecentDetections returns finalized detections for a station, newest first.
func (s *Store) RecentDetections(ctx context.Context, stationID int64, limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+detectionColumns+` FROM detections WHERE station_id = ? AND finalized = 1 ORDER BY detected_at DESC LIMIT ?`,
		stationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent detections: %w", err)
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		detection, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		detections = append(detections, detection)
	}
	return detections, rows.Err()
}

// DetectionDetail is a finalized detection joined with its track and artist
// for display surfaces.
type DetectionDetail struct {
	ID         int64
	StationID  int64
	TrackID    int64
	Title      string
	Artist     string
	DetectedAt time.Time
	Duration   float64
	Confidence float64
	Method     string
}

// RecentDetectionDetails returns finalized detections joined with track and
// artist names, newest first. A zero stationID spans all stations.
func (s *Store) RecentDetectionDetails(ctx context.Context, stationID int64, limit int) ([]*DetectionDetail, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT d.id, d.station_id, d.track_id, t.title, a.name, d.detected_at, d.duration, d.confidence, d.method
         FROM detections d
         JOIN tracks t ON t.id = d.track_id
         JOIN artists a ON a.id = t.artist_id
         WHERE d.finalized = 1`
	args := []any{}
	if stationID > 0 {
		query += ` AND d.station_id = ?`
		args = append(args, stationID)
	}
	query += ` ORDER BY d.detected_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list detection details: %w", err)
	}
	defer rows.Close()

	var details []*DetectionDetail
	for rows.Next() {
		detail := &DetectionDetail{}
		var detectedRaw string
		if err := rows.Scan(&detail.ID, &detail.StationID, &detail.TrackID, &detail.Title, &detail.Artist,
			&detectedRaw, &detail.Duration, &detail.Confidence, &detail.Method); err != nil {
			return nil, err
		}
		if detected, err := parseTimeString(detectedRaw); err == nil {
			detail.DetectedAt = detected
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

// FinalizeDetection writes the final duration and confidence inside tx.
// It succeeds only while the row is still in progress: replaying the same
// finalization is a no-op and returns false.
func (t *Tx) FinalizeDetection(ctx context.Context, id int64, duration, confidence float64) (bool, error) {
	if duration < 0 {
		duration = 0
	}
	res, err := t.tx.ExecContext(
		ctx,
		`UPDATE detections SET duration = ?, confidence = ?, finalized = 1, updated_at = ? WHERE id = ? AND finalized = 0`,
		duration, confidence, formatTime(time.Now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("finalize detection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// DetectionForUpdate reads a detection row inside tx.
func (t *Tx) DetectionForUpdate(ctx context.Context, id int64) (*Detection, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+detectionColumns+` FROM detections WHERE id = ?`, id)
	detection, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get detection in tx: %w", err)
	}
	return detection, nil
}

func scanDetection(scanner interface{ Scan(dest ...any) error }) (*Detection, error) {
	var (
		id          int64
		stationID   int64
		trackID     int64
		detectedRaw string
		duration    float64
		confidence  float64
		method      string
		finalized   int64
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(&id, &stationID, &trackID, &detectedRaw, &duration, &confidence, &method, &finalized, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	detection := &Detection{
		ID:         id,
		StationID:  stationID,
		TrackID:    trackID,
		Duration:   duration,
		Confidence: confidence,
		Method:     Method(method),
		Finalized:  finalized != 0,
	}
	if detected, err := parseTimeString(detectedRaw); err == nil {
		detection.DetectedAt = detected
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		detection.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		detection.UpdatedAt = updated
	}
	return detection, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const stationColumns = "id, name, stream_url, status, last_checked, created_at, updated_at"

// CreateStation inserts an operator-defined station. New stations start active.
func (s *Store) CreateStation(ctx context.Context, name, streamURL string) (*Station, error) {
	name = strings.TrimSpace(name)
	streamURL = strings.TrimSpace(streamURL)
	if name == "" {
		return nil, errors.New("station name must not be empty")
	}
	if streamURL == "" {
		return nil, errors.New("station stream url must not be empty")
	}

	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO stations (name, stream_url, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, streamURL, StationActive, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert station: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.StationByID(ctx, id)
}

// StationByID fetches a station by identifier.
func (s *Store) StationByID(ctx context.Context, id int64) (*Station, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = ?`, id)
	station, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get station: %w", err)
	}
	return station, nil
}

// ListStations returns all stations ordered by creation time, optionally
// filtered by status.
func (s *Store) ListStations(ctx context.Context, statuses ...StationStatus) ([]*Station, error) {
	query := `SELECT ` + stationColumns + ` FROM stations`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	var stations []*Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	return stations, rows.Err()
}

// UpdateStationStatus transitions a station and stamps the health check time.
func (s *Store) UpdateStationStatus(ctx context.Context, id int64, status StationStatus) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE stations SET status = ?, last_checked = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(now), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("update station status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveStation deletes a station by identifier.
func (s *Store) RemoveStation(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete station: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanStation(scanner interface{ Scan(dest ...any) error }) (*Station, error) {
	var (
		id          int64
		name        string
		streamURL   string
		statusStr   string
		lastChecked sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(&id, &name, &streamURL, &statusStr, &lastChecked, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	station := &Station{
		ID:        id,
		Name:      name,
		StreamURL: streamURL,
		Status:    StationStatus(statusStr),
	}
	if lastChecked.Valid {
		if checked, err := parseTimeString(lastChecked.String); err == nil {
			station.LastChecked = &checked
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		station.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		station.UpdatedAt = updated
	}
	return station, nil
}

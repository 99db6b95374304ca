package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const trackColumns = "t.id, t.title, t.artist_id, t.isrc, t.label, t.album, t.release_date, t.duration, t.created_at, t.updated_at, a.name"

// CreateArtist inserts an artist row.
func (s *Store) CreateArtist(ctx context.Context, name string) (*Artist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("artist name must not be empty")
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx, `INSERT INTO artists (name, created_at) VALUES (?, ?)`, name, now)
	if err != nil {
		return nil, fmt.Errorf("insert artist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	created, _ := parseTimeString(now)
	return &Artist{ID: id, Name: name, CreatedAt: created}, nil
}

// ArtistByName finds an artist by case-insensitive exact name.
func (s *Store) ArtistByName(ctx context.Context, name string) (*Artist, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, created_at FROM artists WHERE name = ? COLLATE NOCASE LIMIT 1`,
		strings.TrimSpace(name),
	)
	var (
		artist     Artist
		createdRaw string
	)
	err := row.Scan(&artist.ID, &artist.Name, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find artist: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		artist.CreatedAt = created
	}
	return &artist, nil
}

// EnsureArtist returns the existing artist with the given name or creates one.
func (s *Store) EnsureArtist(ctx context.Context, name string) (*Artist, error) {
	artist, err := s.ArtistByName(ctx, name)
	if err == nil {
		return artist, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.CreateArtist(ctx, name)
}

// CreateTrack inserts a track. A duplicate ISRC surfaces as ErrConflict so
// callers can re-read and reuse the existing row.
func (s *Store) CreateTrack(ctx context.Context, track *Track) (*Track, error) {
	if track == nil {
		return nil, errors.New("track is nil")
	}
	title := strings.TrimSpace(track.Title)
	if title == "" {
		return nil, errors.New("track title must not be empty")
	}
	if track.ArtistID == 0 {
		return nil, errors.New("track requires an artist")
	}

	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tracks (title, artist_id, isrc, label, album, release_date, duration, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title,
		track.ArtistID,
		nullableString(strings.ToUpper(strings.TrimSpace(track.ISRC))),
		nullableString(track.Label),
		nullableString(track.Album),
		nullableString(track.ReleaseDate),
		nullableFloat(track.Duration),
		now, now,
	)
	if err != nil {
		return nil, classifyConstraint(fmt.Errorf("insert track: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.TrackByID(ctx, id)
}

// TrackByID fetches a track with its artist name joined.
func (s *Store) TrackByID(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+trackColumns+` FROM tracks t JOIN artists a ON a.id = t.artist_id WHERE t.id = ?`,
		id,
	)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// TrackByISRC fetches the unique track carrying the given ISRC.
func (s *Store) TrackByISRC(ctx context.Context, isrc string) (*Track, error) {
	isrc = strings.ToUpper(strings.TrimSpace(isrc))
	if isrc == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+trackColumns+` FROM tracks t JOIN artists a ON a.id = t.artist_id WHERE t.isrc = ?`,
		isrc,
	)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track by isrc: %w", err)
	}
	return track, nil
}

// TrackCandidates returns recent tracks with artist names for fuzzy matching.
// The resolver scores these in memory; the limit bounds the scan.
func (s *Store) TrackCandidates(ctx context.Context, limit int) ([]*Track, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+trackColumns+` FROM tracks t JOIN artists a ON a.id = t.artist_id ORDER BY t.updated_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list track candidates: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// FillTrackFields updates only the empty fields of an existing track from the
// supplied values. Populated fields are never overwritten.
func (s *Store) FillTrackFields(ctx context.Context, id int64, update *Track) (*Track, error) {
	existing, err := s.TrackByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if update == nil {
		return existing, nil
	}

	changed := false
	merge := func(current, incoming string) string {
		if current == "" && strings.TrimSpace(incoming) != "" {
			changed = true
			return strings.TrimSpace(incoming)
		}
		return current
	}
	existing.ISRC = merge(existing.ISRC, strings.ToUpper(update.ISRC))
	existing.Label = merge(existing.Label, update.Label)
	existing.Album = merge(existing.Album, update.Album)
	existing.ReleaseDate = merge(existing.ReleaseDate, update.ReleaseDate)
	if existing.Duration == 0 && update.Duration > 0 {
		existing.Duration = update.Duration
		changed = true
	}
	if !changed {
		return existing, nil
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE tracks SET isrc = ?, label = ?, album = ?, release_date = ?, duration = ?, updated_at = ? WHERE id = ?`,
		nullableString(existing.ISRC),
		nullableString(existing.Label),
		nullableString(existing.Album),
		nullableString(existing.ReleaseDate),
		nullableFloat(existing.Duration),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return nil, classifyConstraint(fmt.Errorf("update track: %w", err))
	}
	return s.TrackByID(ctx, id)
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		id          int64
		title       string
		artistID    int64
		isrc        sql.NullString
		label       sql.NullString
		album       sql.NullString
		releaseDate sql.NullString
		duration    sql.NullFloat64
		createdRaw  string
		updatedRaw  string
		artistName  string
	)
	if err := scanner.Scan(&id, &title, &artistID, &isrc, &label, &album, &releaseDate, &duration, &createdRaw, &updatedRaw, &artistName); err != nil {
		return nil, err
	}
	track := &Track{
		ID:          id,
		Title:       title,
		ArtistID:    artistID,
		ISRC:        isrc.String,
		Label:       label.String,
		Album:       album.String,
		ReleaseDate: releaseDate.String,
		Duration:    duration.Float64,
		ArtistName:  artistName,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		track.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		track.UpdatedAt = updated
	}
	return track, nil
}

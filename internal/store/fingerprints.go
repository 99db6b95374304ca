package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const fingerprintColumns = "id, track_id, hash, payload, offset_seconds, algorithm, created_at"

// InsertFingerprint attaches a fingerprint to a track.
func (s *Store) InsertFingerprint(ctx context.Context, fp *Fingerprint) (*Fingerprint, error) {
	if fp == nil {
		return nil, errors.New("fingerprint is nil")
	}
	if fp.TrackID == 0 {
		return nil, errors.New("fingerprint requires a track")
	}
	hash := strings.TrimSpace(fp.Hash)
	if hash == "" {
		return nil, errors.New("fingerprint hash must not be empty")
	}

	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO fingerprints (track_id, hash, payload, offset_seconds, algorithm, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		fp.TrackID, hash, fp.Payload, fp.OffsetSeconds, fp.Algorithm, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert fingerprint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	inserted := *fp
	inserted.ID = id
	inserted.Hash = hash
	if created, err := parseTimeString(now); err == nil {
		inserted.CreatedAt = created
	}
	return &inserted, nil
}

// FingerprintByHash returns the first fingerprint with an exactly matching hash.
func (s *Store) FingerprintByHash(ctx context.Context, hash string) (*Fingerprint, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+fingerprintColumns+` FROM fingerprints WHERE hash = ? ORDER BY id LIMIT 1`,
		strings.TrimSpace(hash),
	)
	fp, err := scanFingerprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find fingerprint by hash: %w", err)
	}
	return fp, nil
}

// ListFingerprints returns fingerprints for in-memory similarity scanning,
// optionally filtered by algorithm. The limit bounds memory for large catalogs.
func (s *Store) ListFingerprints(ctx context.Context, algorithm Algorithm, limit int) ([]*Fingerprint, error) {
	if limit <= 0 {
		limit = 100_000
	}
	query := `SELECT ` + fingerprintColumns + ` FROM fingerprints`
	args := []any{}
	if algorithm != "" {
		query += ` WHERE algorithm = ?`
		args = append(args, algorithm)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer rows.Close()

	var fps []*Fingerprint
	for rows.Next() {
		fp, err := scanFingerprint(rows)
		if err != nil {
			return nil, err
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

func scanFingerprint(scanner interface{ Scan(dest ...any) error }) (*Fingerprint, error) {
	var (
		id         int64
		trackID    int64
		hash       string
		payload    []byte
		offset     float64
		algorithm  string
		createdRaw string
	)
	if err := scanner.Scan(&id, &trackID, &hash, &payload, &offset, &algorithm, &createdRaw); err != nil {
		return nil, err
	}
	fp := &Fingerprint{
		ID:            id,
		TrackID:       trackID,
		Hash:          hash,
		Payload:       payload,
		OffsetSeconds: offset,
		Algorithm:     Algorithm(algorithm),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		fp.CreatedAt = created
	}
	return fp, nil
}

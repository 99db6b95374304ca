package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation, typically on tracks.isrc.
	// Callers are expected to re-read and retry their write path once.
	ErrConflict = errors.New("conflict")
)

// IsConflict reports whether err wraps a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func classifyConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed") {
		return errors.Join(ErrConflict, err)
	}
	return err
}

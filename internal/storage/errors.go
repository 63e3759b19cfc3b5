package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors distinguishing the failure taxonomy of spec.md §7: a
// query miss is never an error (ErrNotFound, returned as a nil result by
// Storage getters, kept here only for callers that want it); a backend
// that cannot currently serve requests is ErrBackendUnavailable; a
// structural invariant violation during ingest is ErrDirectoryTooLarge; a
// revision with no date is ErrNoDate and should be skipped, not fatal.
var (
	ErrNotFound           = errors.New("provenance: not found")
	ErrBackendUnavailable = errors.New("provenance: backend unavailable")
	ErrDirectoryTooLarge  = errors.New("provenance: directory subtree too large")
	ErrNoDate             = errors.New("provenance: revision has no date")
)

// WrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows into ErrNotFound for consistent error handling across
// backends, matching the teacher's internal/storage/sqlite/errors.go.
func WrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

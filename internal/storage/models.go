package storage

import (
	"errors"
	"time"

	"bridgewatch/internal/domain"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNoSnapshot means no rate snapshot has been recorded yet.
	ErrNoSnapshot = errors.New("storage: no rate snapshot available")
	// ErrAlertNotFound is returned when an alert id matches no row.
	ErrAlertNotFound = errors.New("storage: alert not found")
)

// SnapshotRecord is a persisted rate snapshot together with its origin.
type SnapshotRecord struct {
	domain.RateSnapshot
	Source    string
	CreatedAt time.Time
}

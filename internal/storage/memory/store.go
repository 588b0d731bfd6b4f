package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/storage"
)

// Store is an in-memory implementation of storage.SnapshotStore and
// storage.AlertStore. It backs dry runs and tests.
type Store struct {
	mu        sync.RWMutex
	snapshots map[int64]storage.SnapshotRecord // keyed by unix nanos
	alerts    map[uuid.UUID]alerting.Alert
	clock     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		snapshots: make(map[int64]storage.SnapshotRecord),
		alerts:    make(map[uuid.UUID]alerting.Alert),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// UpsertSnapshot stores snap, replacing any snapshot taken at the same instant.
func (s *Store) UpsertSnapshot(_ context.Context, snap storage.SnapshotRecord) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Timestamp = snap.Timestamp.UTC()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.clock()
	}
	s.snapshots[snap.Timestamp.UnixNano()] = snap
	return nil
}

// LatestSnapshot returns the newest snapshot or storage.ErrNoSnapshot.
func (s *Store) LatestSnapshot(_ context.Context) (storage.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest storage.SnapshotRecord
		found  bool
	)
	for _, snap := range s.snapshots {
		if !found || snap.Timestamp.After(latest.Timestamp) {
			latest = snap
			found = true
		}
	}
	if !found {
		return storage.SnapshotRecord{}, storage.ErrNoSnapshot
	}
	return latest, nil
}

// ListSnapshotsBetween returns snapshots in [from, to], oldest first.
func (s *Store) ListSnapshotsBetween(_ context.Context, from, to time.Time) ([]storage.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.SnapshotRecord, 0)
	for _, snap := range s.snapshots {
		if snap.Timestamp.Before(from) || snap.Timestamp.After(to) {
			continue
		}
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// ListRecentSnapshots returns up to limit snapshots, newest first.
func (s *Store) ListRecentSnapshots(_ context.Context, limit int) ([]storage.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.SnapshotRecord, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// InsertAlert validates and stores alert, assigning an id when missing.
func (s *Store) InsertAlert(_ context.Context, alert alerting.Alert) (alerting.Alert, error) {
	if err := alert.Validate(); err != nil {
		return alerting.Alert{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = s.clock()
	}
	s.alerts[alert.ID] = copyAlert(alert)
	return copyAlert(alert), nil
}

// GetAlert returns the alert with id or storage.ErrAlertNotFound.
func (s *Store) GetAlert(_ context.Context, id uuid.UUID) (alerting.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return alerting.Alert{}, storage.ErrAlertNotFound
	}
	return copyAlert(alert), nil
}

// ListActiveAlerts returns active alerts ordered by creation time.
func (s *Store) ListActiveAlerts(_ context.Context) ([]alerting.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]alerting.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Active {
			result = append(result, copyAlert(a))
		}
	}
	sortByCreation(result, false)
	return result, nil
}

// ListAlerts returns up to limit alerts, newest first.
func (s *Store) ListAlerts(_ context.Context, limit int) ([]alerting.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]alerting.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		result = append(result, copyAlert(a))
	}
	sortByCreation(result, true)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkAlertTriggered applies firedAt only when the stored trigger time still
// equals previous and the alert is active.
func (s *Store) MarkAlertTriggered(_ context.Context, id uuid.UUID, previous *time.Time, firedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok || !alert.Active {
		return false, nil
	}
	if !sameInstant(alert.LastTriggeredAt, previous) {
		return false, nil
	}
	fired := firedAt.UTC()
	alert.LastTriggeredAt = &fired
	s.alerts[id] = alert
	return true, nil
}

// SetAlertActive toggles an alert.
func (s *Store) SetAlertActive(_ context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return storage.ErrAlertNotFound
	}
	alert.Active = active
	s.alerts[id] = alert
	return nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// copyAlert detaches the LastTriggeredAt pointer from the stored value.
func copyAlert(a alerting.Alert) alerting.Alert {
	if a.LastTriggeredAt != nil {
		t := *a.LastTriggeredAt
		a.LastTriggeredAt = &t
	}
	return a
}

func sortByCreation(alerts []alerting.Alert, newestFirst bool) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].ID.String() < alerts[j].ID.String()
		}
		if newestFirst {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})
}

var (
	_ storage.SnapshotStore = (*Store)(nil)
	_ storage.AlertStore    = (*Store)(nil)
)

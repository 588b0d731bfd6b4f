package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/domain"
)

const (
	upsertSnapshotSQL = `INSERT INTO rate_snapshots (
        taken_at,
        usdc_brl,
        usdc_eur,
        eur_to_usdc,
        cross_rate,
        source
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (taken_at) DO UPDATE
    SET
        usdc_brl    = EXCLUDED.usdc_brl,
        usdc_eur    = EXCLUDED.usdc_eur,
        eur_to_usdc = EXCLUDED.eur_to_usdc,
        cross_rate  = EXCLUDED.cross_rate,
        source      = EXCLUDED.source;`

	snapshotColumns = `taken_at,
        usdc_brl::text,
        usdc_eur::text,
        eur_to_usdc::text,
        cross_rate::text,
        source,
        created_at`

	latestSnapshotSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    ORDER BY taken_at DESC
    LIMIT 1;`

	listSnapshotsBetweenSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    WHERE taken_at >= $1
      AND taken_at <= $2
    ORDER BY taken_at;`

	listRecentSnapshotsSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    ORDER BY taken_at DESC
    LIMIT $1;`

	insertAlertSQL = `INSERT INTO rate_alerts (
        id,
        pair,
        threshold_type,
        threshold_value,
        reference_type,
        cooldown_minutes,
        active
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING created_at;`

	alertColumns = `id::text,
        pair,
        threshold_type,
        threshold_value::text,
        COALESCE(reference_type, ''),
        cooldown_minutes,
        active,
        last_triggered_at,
        created_at`

	getAlertSQL = `SELECT ` + alertColumns + `
    FROM rate_alerts
    WHERE id = $1;`

	listActiveAlertsSQL = `SELECT ` + alertColumns + `
    FROM rate_alerts
    WHERE active
    ORDER BY created_at;`

	listAlertsSQL = `SELECT ` + alertColumns + `
    FROM rate_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	// Guarded on the previous value so two concurrent cycles cannot both fire.
	markAlertTriggeredSQL = `UPDATE rate_alerts
    SET last_triggered_at = $3
    WHERE id = $1
      AND active
      AND last_triggered_at IS NOT DISTINCT FROM $2;`

	setAlertActiveSQL = `UPDATE rate_alerts SET active = $2 WHERE id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore reads and records rate snapshots.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap SnapshotRecord) error
	LatestSnapshot(ctx context.Context) (SnapshotRecord, error)
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]SnapshotRecord, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
}

// AlertStore persists alert definitions and their trigger state.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert alerting.Alert) (alerting.Alert, error)
	GetAlert(ctx context.Context, id uuid.UUID) (alerting.Alert, error)
	ListActiveAlerts(ctx context.Context) ([]alerting.Alert, error)
	ListAlerts(ctx context.Context, limit int) ([]alerting.Alert, error)
	// MarkAlertTriggered sets last_triggered_at to firedAt only if it still
	// equals previous. It reports false when another writer got there first.
	MarkAlertTriggered(ctx context.Context, id uuid.UUID, previous *time.Time, firedAt time.Time) (bool, error)
	SetAlertActive(ctx context.Context, id uuid.UUID, active bool) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to snapshots and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock dies with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSnapshot persists or replaces the snapshot taken at the same instant.
func (s *Store) UpsertSnapshot(ctx context.Context, snap SnapshotRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	source := snap.Source
	if source == "" {
		source = "unknown"
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snap.Timestamp,
		snap.USDCBRL.String(),
		snap.USDCEUR.String(),
		snap.EURToUSDC.String(),
		snap.Cross.String(),
		source,
	)
	if execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot or ErrNoSnapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SnapshotRecord{}, err
	}

	rows, err := pool.Query(ctx, latestSnapshotSQL)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("latest snapshot: %w", err)
	}
	snaps, err := collectSnapshots(rows, 1)
	if err != nil {
		return SnapshotRecord{}, err
	}
	if len(snaps) == 0 {
		return SnapshotRecord{}, ErrNoSnapshot
	}
	return snaps[0], nil
}

// ListSnapshotsBetween lists snapshots in [from, to] in ascending order.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("list snapshots between: %w", err)
	}
	return collectSnapshots(rows, 0)
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", err)
	}
	return collectSnapshots(rows, limit)
}

// InsertAlert stores a validated alert definition. A nil ID is replaced by a
// fresh random one.
func (s *Store) InsertAlert(ctx context.Context, alert alerting.Alert) (alerting.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return alerting.Alert{}, err
	}
	if err := alert.Validate(); err != nil {
		return alerting.Alert{}, err
	}
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	var reference interface{}
	if alert.ReferenceType != alerting.ReferenceNone {
		reference = string(alert.ReferenceType)
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.ID.String(),
		alert.Pair.String(),
		string(alert.ThresholdType),
		alert.ThresholdValue.String(),
		reference,
		alert.CooldownMinutes,
		alert.Active,
	)
	if err := row.Scan(&alert.CreatedAt); err != nil {
		return alerting.Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	return alert, nil
}

// GetAlert loads one alert by id.
func (s *Store) GetAlert(ctx context.Context, id uuid.UUID) (alerting.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return alerting.Alert{}, err
	}

	rows, err := pool.Query(ctx, getAlertSQL, id.String())
	if err != nil {
		return alerting.Alert{}, fmt.Errorf("get alert: %w", err)
	}
	alerts, err := collectAlerts(rows, 1)
	if err != nil {
		return alerting.Alert{}, err
	}
	if len(alerts) == 0 {
		return alerting.Alert{}, ErrAlertNotFound
	}
	return alerts[0], nil
}

// ListActiveAlerts lists every active alert, oldest first.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]alerting.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listActiveAlertsSQL)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return collectAlerts(rows, 0)
}

// ListAlerts lists the most recently created alerts.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]alerting.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listAlertsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return collectAlerts(rows, limit)
}

// MarkAlertTriggered records a firing with a compare-and-set on the previous
// trigger time.
func (s *Store) MarkAlertTriggered(ctx context.Context, id uuid.UUID, previous *time.Time, firedAt time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var prev interface{}
	if previous != nil {
		prev = *previous
	}

	tag, err := pool.Exec(ctx, markAlertTriggeredSQL, id.String(), prev, firedAt)
	if err != nil {
		return false, fmt.Errorf("mark alert triggered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetAlertActive enables or disables an alert.
func (s *Store) SetAlertActive(ctx context.Context, id uuid.UUID, active bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx, setAlertActiveSQL, id.String(), active)
	if err != nil {
		return fmt.Errorf("set alert active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func collectSnapshots(rows pgx.Rows, capacity int) ([]SnapshotRecord, error) {
	defer rows.Close()

	snaps := make([]SnapshotRecord, 0, capacity)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func scanSnapshot(rows pgx.Rows) (SnapshotRecord, error) {
	var (
		rec                                        SnapshotRecord
		usdcBRL, usdcEUR, eurToUSDC, cross, source string
	)
	if err := rows.Scan(
		&rec.Timestamp,
		&usdcBRL,
		&usdcEUR,
		&eurToUSDC,
		&cross,
		&source,
		&rec.CreatedAt,
	); err != nil {
		return SnapshotRecord{}, err
	}

	var err error
	if rec.USDCBRL, err = parseDecimal("usdc_brl", usdcBRL); err != nil {
		return SnapshotRecord{}, err
	}
	if rec.USDCEUR, err = parseDecimal("usdc_eur", usdcEUR); err != nil {
		return SnapshotRecord{}, err
	}
	if rec.EURToUSDC, err = parseDecimal("eur_to_usdc", eurToUSDC); err != nil {
		return SnapshotRecord{}, err
	}
	if rec.Cross, err = parseDecimal("cross_rate", cross); err != nil {
		return SnapshotRecord{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.Source = source
	return rec, nil
}

func collectAlerts(rows pgx.Rows, capacity int) ([]alerting.Alert, error) {
	defer rows.Close()

	alerts := make([]alerting.Alert, 0, capacity)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

func scanAlert(rows pgx.Rows) (alerting.Alert, error) {
	var (
		alert                               alerting.Alert
		id, pair, thresholdType, value, ref string
		lastTriggered                       *time.Time
	)
	if err := rows.Scan(
		&id,
		&pair,
		&thresholdType,
		&value,
		&ref,
		&alert.CooldownMinutes,
		&alert.Active,
		&lastTriggered,
		&alert.CreatedAt,
	); err != nil {
		return alerting.Alert{}, err
	}

	var err error
	if alert.ID, err = uuid.Parse(id); err != nil {
		return alerting.Alert{}, fmt.Errorf("parse alert id: %w", err)
	}
	if alert.Pair, err = domain.ParsePair(pair); err != nil {
		return alerting.Alert{}, err
	}
	if alert.ThresholdValue, err = parseDecimal("threshold_value", value); err != nil {
		return alerting.Alert{}, err
	}
	alert.ThresholdType = alerting.ThresholdType(thresholdType)
	alert.ReferenceType = alerting.ReferenceType(ref)
	if lastTriggered != nil {
		t := lastTriggered.UTC()
		alert.LastTriggeredAt = &t
	}
	return alert, nil
}

func parseDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", column, err)
	}
	return d, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAlertNotFound) || errors.Is(err, ErrNoSnapshot) || errors.Is(err, pgx.ErrNoRows)
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertSnapshotSQL = `INSERT INTO snapshots (
        id,
        taken_at,
        bucket_ts,
        field_values,
        live,
        sources,
        data_source
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (id) DO NOTHING;`

	snapshotColumns = `id,
        taken_at,
        bucket_ts,
        field_values,
        live,
        sources,
        data_source,
        created_at`

	listSnapshotsBetweenSQL = `SELECT ` + snapshotColumns + `
    FROM snapshots
    WHERE taken_at >= $1
      AND taken_at < $2
    ORDER BY taken_at;`

	listRecentSnapshotsSQL = `SELECT ` + snapshotColumns + `
    FROM snapshots
    ORDER BY taken_at DESC
    LIMIT $1;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM snapshots;`

	insertAlertSQL = `INSERT INTO field_alerts (
        snapshot_id,
        field,
        previous,
        current,
        change_pct,
        threshold_pct,
        direction,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (snapshot_id, field) DO UPDATE
    SET change_pct    = EXCLUDED.change_pct,
        threshold_pct = EXCLUDED.threshold_pct,
        direction     = EXCLUDED.direction,
        channels      = EXCLUDED.channels
    RETURNING id, snapshot_id, field, previous::text, current::text, change_pct::text, threshold_pct::text, direction, channels, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        snapshot_id,
        field,
        previous::text,
        current::text,
        change_pct::text,
        threshold_pct::text,
        direction,
        channels,
        created_at
    FROM field_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	lastAlertAtSQL = `SELECT MAX(created_at) FROM field_alerts WHERE field = $1;`

	deleteSnapshotsBeforeSQL = `DELETE FROM snapshots WHERE taken_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for the snapshot archive.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, rec SnapshotRecord) error
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]SnapshotRecord, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
	CountSnapshots(ctx context.Context) (int64, error)
	DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	LastAlertAt(ctx context.Context, field string) (time.Time, bool, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to archived snapshots and alerts.
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
		// best effort; the lock dies with the session anyway
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

// InsertSnapshot archives a snapshot; re-inserting the same id is a no-op.
func (s *Store) InsertSnapshot(ctx context.Context, rec SnapshotRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	values, err := encodeJSONB(rec.Values)
	if err != nil {
		return err
	}
	live, err := encodeJSONB(rec.Live)
	if err != nil {
		return err
	}

	var bucket interface{}
	if rec.Bucket != nil {
		bucket = *rec.Bucket
	}

	if _, execErr := pool.Exec(ctx, insertSnapshotSQL,
		rec.ID,
		rec.TakenAt,
		bucket,
		values,
		live,
		rec.Sources,
		rec.DataSource,
	); execErr != nil {
		return fmt.Errorf("insert snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists snapshots taken within [from, to).
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	return collectSnapshots(rows, 0)
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	return collectSnapshots(rows, limit)
}

// CountSnapshots counts archived snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// DeleteSnapshotsBefore prunes the archive; alerts cascade.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteSnapshotsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete snapshots before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SnapshotID,
		alert.Field,
		alert.Previous.String(),
		alert.Current.String(),
		alert.ChangePct.String(),
		alert.ThresholdPct.String(),
		alert.Direction,
		alert.Channels,
	)
	rec, err := scanAlert(row)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", err)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// LastAlertAt returns when the field last alerted, if ever.
func (s *Store) LastAlertAt(ctx context.Context, field string) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}
	var last *time.Time
	if scanErr := pool.QueryRow(ctx, lastAlertAtSQL, field).Scan(&last); scanErr != nil {
		return time.Time{}, false, fmt.Errorf("last alert at: %w", scanErr)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

func collectSnapshots(rows pgx.Rows, capacity int) ([]SnapshotRecord, error) {
	defer rows.Close()

	records := make([]SnapshotRecord, 0, capacity)
	for rows.Next() {
		rec, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanSnapshot(row pgx.Row) (SnapshotRecord, error) {
	var (
		rec       SnapshotRecord
		bucket    *time.Time
		rawValues []byte
		rawLive   []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.TakenAt,
		&bucket,
		&rawValues,
		&rawLive,
		&rec.Sources,
		&rec.DataSource,
		&rec.CreatedAt,
	); err != nil {
		return SnapshotRecord{}, err
	}
	rec.Bucket = bucket

	var err error
	if rec.Values, err = decodeValues(rawValues); err != nil {
		return SnapshotRecord{}, err
	}
	if rec.Live, err = decodeLive(rawLive); err != nil {
		return SnapshotRecord{}, err
	}
	return rec, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec                                  AlertRecord
		previous, current, change, threshold string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SnapshotID,
		&rec.Field,
		&previous,
		&current,
		&change,
		&threshold,
		&rec.Direction,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.Previous, err = decimal.NewFromString(previous); err != nil {
		return AlertRecord{}, fmt.Errorf("parse previous: %w", err)
	}
	if rec.Current, err = decimal.NewFromString(current); err != nil {
		return AlertRecord{}, fmt.Errorf("parse current: %w", err)
	}
	if rec.ChangePct, err = decimal.NewFromString(change); err != nil {
		return AlertRecord{}, fmt.Errorf("parse change pct: %w", err)
	}
	if rec.ThresholdPct, err = decimal.NewFromString(threshold); err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold pct: %w", err)
	}
	return rec, nil
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

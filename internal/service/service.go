package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"econ-snapshot/internal/alerting"
	"econ-snapshot/internal/config"
	"econ-snapshot/internal/scheduler"
	"econ-snapshot/internal/snapshot"
	"econ-snapshot/internal/storage"
)

// Builder produces snapshots.
type Builder interface {
	Build(ctx context.Context) *snapshot.Snapshot
	Refresh(ctx context.Context) *snapshot.Snapshot
	Fields() []snapshot.FieldSpec
}

// Recorder publishes refresh results.
type Recorder interface {
	RecordSnapshot(snap *snapshot.Snapshot)
	ObserveAlert(field, result string)
}

// Service orchestrates snapshot refresh, archiving, and alerting.
type Service struct {
	scheduler  *scheduler.Scheduler
	builder    Builder
	store      storage.SnapshotStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	recorder   Recorder
	logger     zerolog.Logger

	threshold decimal.Decimal
	cooldown  time.Duration
	channels  []string
	alertsOn  bool
	locker    storage.AdvisoryLocker
	lockKey   int64
	fields    map[string]snapshot.FieldSpec
	now       func() time.Time

	mu        sync.Mutex
	previous  *snapshot.Snapshot
	lastAlert map[string]time.Time
}

// New constructs the refresh service. store, alertStore, notifier and recorder may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, builder Builder, store storage.SnapshotStore, alertStore storage.AlertStore, notifier alerting.Notifier, recorder Recorder, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.ThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.ThresholdPct)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	fields := make(map[string]snapshot.FieldSpec)
	for _, f := range builder.Fields() {
		fields[f.Name] = f
	}

	return &Service{
		scheduler:  sched,
		builder:    builder,
		store:      store,
		alertStore: alertStore,
		notifier:   notifier,
		recorder:   recorder,
		logger:     logger.With().Str("component", "service").Logger(),
		threshold:  threshold,
		cooldown:   cfg.Alerting.Cooldown,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		fields:     fields,
		now:        time.Now,
		lastAlert:  make(map[string]time.Time),
	}
}

// Run begins the aligned refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// Latest returns the most recent snapshot produced by this service.
func (s *Service) Latest() *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous
}

// ProcessBucket 执行单个时间桶的刷新逻辑。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Refresh(ctx, bucket, false)
	return err
}

// Refresh builds a snapshot (clearing the cache first when force is set),
// archives it, and alerts on large moves against the previous snapshot.
func (s *Service) Refresh(ctx context.Context, bucket time.Time, force bool) (*snapshot.Snapshot, error) {
	var snap *snapshot.Snapshot
	if force {
		snap = s.builder.Refresh(ctx)
	} else {
		snap = s.builder.Build(ctx)
	}
	if snap == nil {
		return nil, fmt.Errorf("builder returned no snapshot")
	}

	previous := s.swapPrevious(ctx, snap)

	if s.recorder != nil {
		s.recorder.RecordSnapshot(snap)
	}

	if s.store != nil {
		if err := s.store.InsertSnapshot(ctx, storage.RecordFromSnapshot(snap, bucket)); err != nil {
			s.logger.Error().Err(err).Str("snapshot_id", snap.ID.String()).Msg("failed to archive snapshot")
		}
	}

	s.logger.Info().Time("bucket", bucket).
		Str("snapshot_id", snap.ID.String()).
		Str("data_source", snap.DataSource).
		Msg("snapshot refreshed")

	if previous != nil && s.alertsOn && s.notifier != nil && !s.threshold.IsZero() {
		s.evaluateAlerts(ctx, bucket, previous, snap)
	}
	return snap, nil
}

func (s *Service) swapPrevious(ctx context.Context, snap *snapshot.Snapshot) *snapshot.Snapshot {
	s.mu.Lock()
	previous := s.previous
	s.previous = snap
	s.mu.Unlock()

	if previous != nil || s.store == nil {
		return previous
	}
	recent, err := s.store.ListRecentSnapshots(ctx, 1)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load previous snapshot from archive")
		return nil
	}
	if len(recent) == 0 || recent[0].ID == snap.ID {
		return nil
	}
	return recent[0].Snapshot()
}

// Move describes the change of one field between two snapshots.
type Move struct {
	Field     string
	Previous  decimal.Decimal
	Current   decimal.Decimal
	ChangePct decimal.Decimal
}

// Moves lists live fields whose absolute percentage change exceeds threshold.
func Moves(previous, current *snapshot.Snapshot, threshold decimal.Decimal) []Move {
	hundred := decimal.NewFromInt(100)
	var out []Move
	for _, name := range current.Fields() {
		if !current.Live[name] {
			continue
		}
		prev, ok := previous.Values[name]
		if !ok || prev.IsZero() {
			continue
		}
		cur := current.Values[name]
		change := cur.Sub(prev).Div(prev.Abs()).Mul(hundred)
		if change.Abs().GreaterThan(threshold) {
			out = append(out, Move{Field: name, Previous: prev, Current: cur, ChangePct: change})
		}
	}
	return out
}

func (s *Service) evaluateAlerts(ctx context.Context, bucket time.Time, previous, current *snapshot.Snapshot) {
	for _, move := range Moves(previous, current, s.threshold) {
		if s.inCooldown(ctx, move.Field) {
			s.observeAlert(move.Field, "suppressed")
			s.logger.Debug().Str("field", move.Field).Msg("alert suppressed by cooldown")
			continue
		}

		direction := classifyChange(move.ChangePct)
		spec := s.fields[move.Field]
		note := alerting.Notification{
			Bucket:       current.LastUpdated,
			Field:        move.Field,
			Label:        spec.Label,
			Unit:         spec.Unit,
			Previous:     move.Previous,
			Current:      move.Current,
			ChangePct:    move.ChangePct,
			ThresholdPct: s.threshold,
			Direction:    direction,
			DataSource:   current.DataSource,
			Channels:     s.channels,
		}
		if !bucket.IsZero() {
			note.Bucket = bucket
		}

		if s.alertStore != nil && s.store != nil {
			record := storage.AlertRecord{
				SnapshotID:   current.ID,
				Field:        move.Field,
				Previous:     move.Previous,
				Current:      move.Current,
				ChangePct:    move.ChangePct,
				ThresholdPct: s.threshold,
				Direction:    direction,
				Channels:     s.channels,
			}
			if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
				s.logger.Error().Err(err).Str("field", move.Field).Msg("failed to persist alert record")
			}
		}

		if err := s.notifier.Notify(ctx, note); err != nil {
			s.observeAlert(move.Field, "failed")
			s.logger.Error().Err(err).Str("field", move.Field).Msg("failed to dispatch alert")
			continue
		}
		s.observeAlert(move.Field, "sent")

		s.mu.Lock()
		s.lastAlert[move.Field] = s.now()
		s.mu.Unlock()
	}
}

func (s *Service) inCooldown(ctx context.Context, field string) bool {
	if s.cooldown <= 0 {
		return false
	}
	now := s.now()

	s.mu.Lock()
	last, ok := s.lastAlert[field]
	s.mu.Unlock()

	if !ok && s.alertStore != nil {
		stored, found, err := s.alertStore.LastAlertAt(ctx, field)
		if err != nil {
			s.logger.Warn().Err(err).Str("field", field).Msg("load last alert time")
		} else if found {
			last, ok = stored, true
		}
	}
	return ok && now.Sub(last) < s.cooldown
}

func (s *Service) observeAlert(field, result string) {
	if s.recorder != nil {
		s.recorder.ObserveAlert(field, result)
	}
}

func classifyChange(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

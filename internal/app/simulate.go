package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"econ-snapshot/internal/service"
	"econ-snapshot/internal/snapshot"
)

// SimulateAlert 以给定的前后取值模拟一次字段告警流程。
func (a *App) SimulateAlert(ctx context.Context, field string, from, to decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	fields := snapshot.SpecsFromConfig(a.Config)
	known := false
	for _, f := range fields {
		if f.Name == field {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown field %q", field)
	}

	now := time.Now().UTC()
	builder := &staticBuilder{
		fields: fields,
		snaps: []*snapshot.Snapshot{
			simulatedSnapshot(fields, field, from, now.Add(-a.Config.Scheduler.Interval)),
			simulatedSnapshot(fields, field, to, now),
		},
	}

	svc := service.New(a.Config, nil, builder, nil, nil, notifier, nil, a.Logger)
	bucket := now.Truncate(a.Config.Scheduler.Interval)
	for range builder.snaps {
		if _, err := svc.Refresh(ctx, bucket, false); err != nil {
			return err
		}
	}
	return nil
}

func simulatedSnapshot(fields []snapshot.FieldSpec, field string, value decimal.Decimal, at time.Time) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		ID:          uuid.New(),
		Values:      make(map[string]decimal.Decimal, len(fields)),
		Live:        make(map[string]bool, len(fields)),
		Sources:     []string{"simulated"},
		DataSource:  "simulated",
		LastUpdated: at,
	}
	for _, f := range fields {
		snap.Values[f.Name] = f.Baseline
		snap.Live[f.Name] = false
	}
	snap.Values[field] = value
	snap.Live[field] = true
	return snap
}

// staticBuilder replays a fixed sequence of snapshots, repeating the last one.
type staticBuilder struct {
	fields []snapshot.FieldSpec
	snaps  []*snapshot.Snapshot
	next   int
}

func (s *staticBuilder) Build(ctx context.Context) *snapshot.Snapshot {
	snap := s.snaps[s.next]
	if s.next < len(s.snaps)-1 {
		s.next++
	}
	return snap
}

func (s *staticBuilder) Refresh(ctx context.Context) *snapshot.Snapshot {
	return s.Build(ctx)
}

func (s *staticBuilder) Fields() []snapshot.FieldSpec {
	return s.fields
}

var _ service.Builder = (*staticBuilder)(nil)

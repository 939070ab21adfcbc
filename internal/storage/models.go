package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"econ-snapshot/internal/snapshot"
)

// SnapshotRecord is one archived snapshot.
type SnapshotRecord struct {
	ID         uuid.UUID
	TakenAt    time.Time
	Bucket     *time.Time
	Values     map[string]decimal.Decimal
	Live       map[string]bool
	Sources    []string
	DataSource string
	CreatedAt  time.Time
}

// AlertRecord captures an emitted field alert for cooldown and auditing.
type AlertRecord struct {
	ID           int64
	SnapshotID   uuid.UUID
	Field        string
	Previous     decimal.Decimal
	Current      decimal.Decimal
	ChangePct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	Channels     []string
	CreatedAt    time.Time
}

// RecordFromSnapshot converts an assembled snapshot. A zero bucket means the
// snapshot was not produced by the scheduler.
func RecordFromSnapshot(snap *snapshot.Snapshot, bucket time.Time) SnapshotRecord {
	rec := SnapshotRecord{
		ID:         snap.ID,
		TakenAt:    snap.LastUpdated,
		Values:     snap.Values,
		Live:       snap.Live,
		Sources:    snap.Sources,
		DataSource: snap.DataSource,
	}
	if !bucket.IsZero() {
		b := bucket
		rec.Bucket = &b
	}
	if rec.Sources == nil {
		rec.Sources = []string{}
	}
	return rec
}

// Snapshot rebuilds the in-memory snapshot.
func (r SnapshotRecord) Snapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ID:          r.ID,
		Values:      r.Values,
		Live:        r.Live,
		Sources:     r.Sources,
		DataSource:  r.DataSource,
		LastUpdated: r.TakenAt,
	}
}

func encodeJSONB(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return data, nil
}

func decodeValues(raw []byte) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode field values: %w", err)
	}
	return out, nil
}

func decodeLive(raw []byte) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode live flags: %w", err)
	}
	return out, nil
}

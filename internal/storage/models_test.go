package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"econ-snapshot/internal/snapshot"
)

func TestRecordFromSnapshotRoundTrip(t *testing.T) {
	snap := &snapshot.Snapshot{
		ID:          uuid.New(),
		Values:      map[string]decimal.Decimal{"usd_inr": decimal.RequireFromString("87.41")},
		Live:        map[string]bool{"usd_inr": true},
		DataSource:  snapshot.FallbackSource,
		LastUpdated: time.Date(2025, 6, 2, 5, 30, 0, 0, time.UTC),
	}

	rec := RecordFromSnapshot(snap, time.Time{})
	if rec.Bucket != nil {
		t.Fatal("零值 bucket 不应写入")
	}
	if rec.Sources == nil {
		t.Fatal("sources 不应为 nil")
	}

	values, err := encodeJSONB(rec.Values)
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	decoded, err := decodeValues(values)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if !decoded["usd_inr"].Equal(decimal.RequireFromString("87.41")) {
		t.Fatalf("数值不一致: %s", decoded["usd_inr"])
	}

	live, _ := encodeJSONB(rec.Live)
	flags, err := decodeLive(live)
	if err != nil || !flags["usd_inr"] {
		t.Fatalf("live 标记不一致: %v %v", flags, err)
	}

	back := rec.Snapshot()
	if back.ID != snap.ID || !back.LastUpdated.Equal(snap.LastUpdated) {
		t.Fatalf("还原快照不一致: %#v", back)
	}

	bucket := time.Date(2025, 6, 2, 5, 30, 0, 0, time.UTC)
	if withBucket := RecordFromSnapshot(snap, bucket); withBucket.Bucket == nil || !withBucket.Bucket.Equal(bucket) {
		t.Fatal("bucket 应写入")
	}
}

func TestDecodeEmptyJSONB(t *testing.T) {
	values, err := decodeValues(nil)
	if err != nil || len(values) != 0 {
		t.Fatalf("空值应返回空 map: %v %v", values, err)
	}
	if _, err := decodeLive([]byte("{")); err == nil {
		t.Fatal("非法 JSON 应报错")
	}
}

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()
	if err := s.InsertSnapshot(ctx, SnapshotRecord{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured: %v", err)
	}
	if _, err := s.ListRecentAlerts(ctx, 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured: %v", err)
	}
	if _, _, err := s.TryAdvisoryLock(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("期望 ErrNotConfigured: %v", err)
	}
	s.Close()
}

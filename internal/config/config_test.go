package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALPHAVANTAGE_API_KEY", "")

	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Environment)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ClosedInterval)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.GroupTTL(GroupIndices))
	assert.Equal(t, 24*time.Hour, cfg.GroupTTL(GroupIndicators))
	assert.Zero(t, cfg.GroupTTL("unknown"))
	assert.Equal(t, 25, cfg.Sources.AlphaVantage.DailyLimit)
	assert.Equal(t, "IND", cfg.Sources.WorldBank.Country)
	assert.Equal(t, "Asia/Kolkata", cfg.Snapshot.Timezone)

	assert.Len(t, cfg.Fields, len(DefaultFields()))
	usd := cfg.Fields["usd_inr"]
	assert.Equal(t, GroupCurrency, usd.Group)
	assert.Equal(t, SourceAlphaVantage, usd.Source)
	assert.InDelta(t, 87.5, usd.Baseline, 1e-9)
	assert.InDelta(t, 1e-9, cfg.Fields["foreign_reserves"].Scale, 1e-18)

	for name, code := range map[string]string{
		"consumer_price_index":    "FP.CPI.TOTL",
		"industrial_production":   "NV.IND.TOTL.KD.ZG",
		"current_account_balance": "BN.CAB.XOKA.GD.ZS",
	} {
		field, ok := cfg.Fields[name]
		require.True(t, ok, name)
		assert.Equal(t, GroupIndicators, field.Group, name)
		assert.Equal(t, SourceWorldBank, field.Source, name)
		assert.Equal(t, code, field.Identifier, name)
	}
}

func TestLoadFileOverridesField(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"fields:",
		"  usd_inr:",
		"    baseline: 90",
		"    group: Currency",
		"cache:",
		"  ttl:",
		"    currency: 10m",
	}, "\n"))

	cfg, err := Load(path)
	require.NoError(t, err)

	usd := cfg.Fields["usd_inr"]
	assert.InDelta(t, 90, usd.Baseline, 1e-9)
	assert.Equal(t, GroupCurrency, usd.Group, "group is normalised to lower case")
	assert.Equal(t, "USD:INR", usd.Identifier)
	assert.Equal(t, 10*time.Minute, cfg.GroupTTL(GroupCurrency))
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ECONSNAP_SCHEDULER_INTERVAL", "2m")
	t.Setenv("ALPHAVANTAGE_API_KEY", "demo-key")

	cfg, err := Load(writeConfig(t, "app:\n  name: econsnap\n"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "demo-key", cfg.Sources.AlphaVantage.APIKey)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"baseline outside band":  "fields:\n  usd_inr:\n    baseline: 150\n",
		"unknown group":          "fields:\n  usd_inr:\n    group: bonds\n",
		"unknown source":         "fields:\n  usd_inr:\n    source: bloomberg\n",
		"negative threshold":     "alerting:\n  threshold_pct: -1\n",
		"redis without addr":     "cache:\n  backend: redis\n",
		"bad backend":            "cache:\n  backend: disk\n",
		"telegram without token": "alerting:\n  telegram:\n    enabled: true\n    chat_id: \"1\"\n",
		"zero ttl":               "cache:\n  ttl:\n    currency: 0s\n",
		"negative ttl":           "cache:\n  ttl:\n    indicators: -1m\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestFieldNamesSorted(t *testing.T) {
	cfg := &Config{Fields: map[string]FieldConfig{"b": {}, "a": {}, "c": {}}}
	assert.Equal(t, []string{"a", "b", "c"}, cfg.FieldNames())
}

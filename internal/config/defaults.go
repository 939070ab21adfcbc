package config

import (
	"github.com/spf13/viper"
)

// Data categories. Each one is cached under its own key with its own TTL.
const (
	GroupIndices     = "indices"
	GroupCurrency    = "currency"
	GroupCommodities = "commodities"
	GroupIndicators  = "indicators"
)

// Groups lists the data categories in assembly order.
var Groups = []string{GroupIndices, GroupCurrency, GroupCommodities, GroupIndicators}

// Upstream provider identifiers.
const (
	SourceNone         = "none"
	SourceYahoo        = "yahoo"
	SourceWorldBank    = "worldbank"
	SourceAlphaVantage = "alphavantage"
)

// DefaultFields returns the built-in field table. Baselines are hand-maintained
// reference values and are expected to be overridden from the config file as
// new releases come out.
func DefaultFields() map[string]FieldConfig {
	return map[string]FieldConfig{
		"nifty_50": {
			Label: "Nifty 50", Unit: "pts", Group: GroupIndices,
			Source: SourceYahoo, Identifier: "^NSEI",
			Baseline: 25000, Min: 10000, Max: 45000, Scale: 1, Jitter: 0.004, Volatility: 0.04,
		},
		"sensex": {
			Label: "BSE Sensex", Unit: "pts", Group: GroupIndices,
			Source: SourceYahoo, Identifier: "^BSESN",
			Baseline: 82000, Min: 30000, Max: 150000, Scale: 1, Jitter: 0.004, Volatility: 0.04,
		},
		"usd_inr": {
			Label: "USD/INR", Unit: "INR", Group: GroupCurrency,
			Source: SourceAlphaVantage, Identifier: "USD:INR",
			Baseline: 87.5, Min: 70, Max: 95, Scale: 1, Jitter: 0.001, Volatility: 0.01,
		},
		"bitcoin_usd": {
			Label: "Bitcoin", Unit: "USD", Group: GroupCurrency,
			Source: SourceAlphaVantage, Identifier: "BTC:USD",
			Baseline: 65000, Min: 1000, Max: 500000, Scale: 1, Jitter: 0.01, Volatility: 0.12,
		},
		"gold_usd": {
			Label: "Gold futures", Unit: "USD/oz", Group: GroupCommodities,
			Source: SourceYahoo, Identifier: "GC=F",
			Baseline: 3300, Min: 1000, Max: 6000, Scale: 1, Jitter: 0.003, Volatility: 0.04,
		},
		"crude_oil_usd": {
			Label: "Crude oil futures", Unit: "USD/bbl", Group: GroupCommodities,
			Source: SourceYahoo, Identifier: "CL=F",
			Baseline: 70, Min: 20, Max: 200, Scale: 1, Jitter: 0.005, Volatility: 0.07,
		},
		"inflation_rate": {
			Label: "Inflation rate", Unit: "%", Group: GroupIndicators,
			Source: SourceWorldBank, Identifier: "FP.CPI.TOTL.ZG",
			Baseline: 4.9, Min: -5, Max: 25, Scale: 1, Volatility: 0.05,
		},
		"gdp_growth": {
			Label: "GDP growth", Unit: "%", Group: GroupIndicators,
			Source: SourceWorldBank, Identifier: "NY.GDP.MKTP.KD.ZG",
			Baseline: 6.5, Min: -15, Max: 20, Scale: 1, Volatility: 0.03,
		},
		"unemployment_rate": {
			Label: "Unemployment rate", Unit: "%", Group: GroupIndicators,
			Source: SourceWorldBank, Identifier: "SL.UEM.TOTL.ZS",
			Baseline: 7.0, Min: 0, Max: 30, Scale: 1, Volatility: 0.03,
		},
		"foreign_reserves": {
			Label: "Foreign reserves", Unit: "USD bn", Group: GroupIndicators,
			Source: SourceWorldBank, Identifier: "FI.RES.TOTL.CD",
			Baseline: 640, Min: 100, Max: 1500, Scale: 1e-9, Volatility: 0.02,
		},
		"consumer_price_index": {
			Label: "Consumer price index", Unit: "2010=100", Group: GroupIndicators,
			Source: SourceWorldBank, Identifier: "FP.CPI.TOTL",
			Baseline: 200, Min: 80, Max: 500, Scale: 1, Volatility: 0.01,
		},
		"industrial_production": {
			Label: "Industrial production growth", Unit: "%", Group: GroupIndicators,
			Source: SourceWorldBank, Identifier: "NV.IND.TOTL.KD.ZG",
			Baseline: 6.0, Min: -25, Max: 25, Scale: 1, Volatility: 0.05,
		},
		"current_account_balance": {
			Label: "Current account balance", Unit: "% of GDP", Group: GroupIndicators,
			Source: SourceWorldBank, Identifier: "BN.CAB.XOKA.GD.ZS",
			Baseline: -1.0, Min: -10, Max: 10, Scale: 1, Volatility: 0.1,
		},
		"repo_rate": {
			Label: "RBI repo rate", Unit: "%", Group: GroupIndicators,
			Source: SourceNone,
			Baseline: 5.5, Min: 0, Max: 15, Scale: 1, Volatility: 0.02,
		},
		"fiscal_deficit": {
			Label: "Fiscal deficit", Unit: "% of GDP", Group: GroupIndicators,
			Source: SourceNone,
			Baseline: 4.4, Min: 0, Max: 15, Scale: 1, Volatility: 0.03,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "econsnap")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scheduler.interval", "30s")
	v.SetDefault("scheduler.closed_interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x65636f6e))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sources.user_agent", "")

	v.SetDefault("sources.yahoo.enabled", true)
	v.SetDefault("sources.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.yahoo.min_interval", "500ms")
	v.SetDefault("sources.yahoo.daily_limit", 900)
	v.SetDefault("sources.yahoo.request_timeout", "10s")

	v.SetDefault("sources.worldbank.enabled", true)
	v.SetDefault("sources.worldbank.base_url", "https://api.worldbank.org")
	v.SetDefault("sources.worldbank.country", "IND")
	v.SetDefault("sources.worldbank.min_interval", "100ms")
	v.SetDefault("sources.worldbank.daily_limit", 400)
	v.SetDefault("sources.worldbank.request_timeout", "15s")

	// Free tier: 5 requests per minute, 25 per day.
	v.SetDefault("sources.alphavantage.enabled", true)
	v.SetDefault("sources.alphavantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("sources.alphavantage.api_key", "")
	v.SetDefault("sources.alphavantage.min_interval", "12s")
	v.SetDefault("sources.alphavantage.daily_limit", 25)
	v.SetDefault("sources.alphavantage.request_timeout", "10s")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl.indices", "5m")
	v.SetDefault("cache.ttl.currency", "1h")
	v.SetDefault("cache.ttl.commodities", "15m")
	v.SetDefault("cache.ttl.indicators", "24h")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "econsnap")

	v.SetDefault("snapshot.timezone", "Asia/Kolkata")
	v.SetDefault("snapshot.market_open", "09:15")
	v.SetDefault("snapshot.market_close", "15:30")

	for name, field := range DefaultFields() {
		prefix := "fields." + name + "."
		v.SetDefault(prefix+"label", field.Label)
		v.SetDefault(prefix+"unit", field.Unit)
		v.SetDefault(prefix+"group", field.Group)
		v.SetDefault(prefix+"source", field.Source)
		v.SetDefault(prefix+"identifier", field.Identifier)
		v.SetDefault(prefix+"baseline", field.Baseline)
		v.SetDefault(prefix+"min", field.Min)
		v.SetDefault(prefix+"max", field.Max)
		v.SetDefault(prefix+"scale", field.Scale)
		v.SetDefault(prefix+"jitter", field.Jitter)
		v.SetDefault(prefix+"volatility", field.Volatility)
	}

	v.SetDefault("history.months", 24)
	v.SetDefault("history.seed", uint64(42))

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 1.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("export.width", 1280)
	v.SetDefault("export.height", 720)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

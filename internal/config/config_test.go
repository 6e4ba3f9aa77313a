package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "venue:\n  symbol: xauusd\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD", cfg.Venue.Symbol)
	assert.Equal(t, "paper", cfg.Venue.Kind)
	assert.Equal(t, 0.01, cfg.Venue.MinLot)
	assert.Equal(t, "wilder", cfg.Indicators.Smoothing)
	assert.Equal(t, 3.0, cfg.Regime.MaxVolatilityATR)
	assert.Equal(t, -70.0, cfg.Risk.FloatingKill)
	assert.Equal(t, 9, cfg.Risk.MaxSteps)
	assert.Equal(t, 8, cfg.Filters.DepthCollapseStep)
	assert.Len(t, cfg.Sizing.Ladder, 9)
	assert.Equal(t, []int{22, 23, 0}, cfg.Filters.Session.DeadHours)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "text", cfg.App.LogFormat)
}

func TestLoad_LadderDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, t.TempDir(), "config.yaml", "venue:\n  symbol: XAUUSD\n"))
	require.NoError(t, err)

	assert.Equal(t, []float64{0.01, 0.01, 0.01, 0.02, 0.02, 0.02, 0.03, 0.03, 0.04}, cfg.Sizing.Ladder)
	assert.Equal(t, 0.6, cfg.Sizing.SpacingFloor)
	assert.Equal(t, 0.25, cfg.Sizing.SpacingCoeffs["volatile"])
	assert.Equal(t, 1.5, cfg.Sizing.FloorMultipliers["volatile"])
	assert.Equal(t, 3, cfg.Filters.CooldownSeconds)
	assert.Len(t, cfg.Filters.SizeCooldowns, 4)
	assert.Equal(t, SizeCooldown{Lot: 0.04, Seconds: 240}, cfg.Filters.SizeCooldowns[3])
	assert.Equal(t, 3, cfg.Filters.DepthTrendStep)
	assert.Equal(t, 6, cfg.Filters.DepthVolumeStep)
	assert.Equal(t, 1.8, cfg.Filters.HeavySellMultiplier)
	assert.InDelta(t, 2.5, cfg.Filters.CollapsePointsPerSec*cfg.Filters.CollapseWindowSec, 1e-9)
	assert.Equal(t, 3, cfg.Indicators.EMAFast)
	assert.Equal(t, 5, cfg.Indicators.EMASlow)
	assert.Equal(t, 1.0, cfg.Basket.BaseProfit)
	assert.Equal(t, 0.5, cfg.Basket.MinTarget)
	assert.Equal(t, 0.6, cfg.Basket.CountFloor)
	assert.Equal(t, CountTier{MaxCount: 3, Multiplier: 0.85}, cfg.Basket.CountTiers[1])
	assert.Equal(t, 1.1, cfg.Basket.RegimeMultipliers["trending_up"])
}

func TestLoad_SizeCooldownsOverride(t *testing.T) {
	cfg, err := Load(writeFile(t, t.TempDir(), "config.yaml", `
filters:
  size_cooldowns:
    - lot: 0.05
      seconds: 300
basket:
  count_tiers:
    - max_count: 2
      multiplier: 0.9
`))
	require.NoError(t, err)
	assert.Equal(t, []SizeCooldown{{Lot: 0.05, Seconds: 300}}, cfg.Filters.SizeCooldowns)
	assert.Equal(t, []CountTier{{MaxCount: 2, Multiplier: 0.9}}, cfg.Basket.CountTiers)
}

func TestLoad_ExplicitKeysKeepValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
store:
  enabled: false
regime:
  hysteresis_ticks: 3
risk:
  max_steps: 5
  floating_kill: -40
sizing:
  ladder: [0.01, 0.02, 0.03, 0.04, 0.05]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Store.Enabled)
	assert.Equal(t, 3, cfg.Regime.HysteresisTicks)
	assert.Equal(t, -40.0, cfg.Risk.FloatingKill)
	assert.Equal(t, 4, cfg.Filters.DepthCollapseStep)
	assert.Equal(t, []float64{0.01, 0.02, 0.03, 0.04, 0.05}, cfg.Sizing.Ladder)
}

func TestLoad_Includes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "venue:\n  symbol: BTCUSDT\n  min_lot: 0.001\n  lot_step: 0.001\n")
	path := writeFile(t, dir, "config.yaml", "include:\n  - base.yaml\nvenue:\n  timeframe: 5m\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cfg.Venue.Symbol)
	assert.Equal(t, "5m", cfg.Venue.Timeframe)
	assert.Equal(t, 0.001, cfg.Venue.LotStep)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	t.Setenv("GRIDBOT_VENUE_API_KEY", "key-from-env")
	t.Setenv("GRIDBOT_VENUE_API_SECRET", "secret-from-env")
	path := writeFile(t, t.TempDir(), "config.yaml", "venue:\n  kind: binance\n  symbol: BTCUSDT\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Venue.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Venue.APISecret)
}

func TestLoad_IncludeMustBeList(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "include: base.yaml\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string array")
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown venue", "venue:\n  kind: mt5\n", "venue.kind"},
		{"binance without keys", "venue:\n  kind: binance\n", "api_key"},
		{"positive kill threshold", "risk:\n  floating_kill: 10\n", "floating_kill"},
		{"short ladder", "risk:\n  max_steps: 4\nsizing:\n  ladder: [0.01, 0.02]\n", "sizing.ladder"},
		{"decreasing ladder", "risk:\n  max_steps: 3\nsizing:\n  ladder: [0.02, 0.01, 0.03]\n", "non-decreasing"},
		{"bad variant", "filters:\n  variant: scalper\n", "filters.variant"},
		{"bad smoothing", "indicators:\n  smoothing: hull\n", "indicators.smoothing"},
		{"telegram missing token", "notify:\n  telegram:\n    enabled: true\n", "notify.telegram"},
		{"max below min", "venue:\n  min_lot: 1\n  max_lot: 0.5\n", "venue.max_lot"},
		{"bad size cooldown", "filters:\n  size_cooldowns:\n    - lot: 0\n      seconds: 60\n", "filters.size_cooldowns"},
		{"bad count tier", "basket:\n  count_tiers:\n    - max_count: 2\n      multiplier: 0\n", "basket.count_tiers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tc.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRiskLocation(t *testing.T) {
	assert.Equal(t, "UTC", RiskConfig{Timezone: "UTC"}.Location().String())
	assert.Equal(t, "Local", RiskConfig{Timezone: "Not/AZone"}.Location().String())
	assert.Equal(t, "Local", RiskConfig{}.Location().String())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgewatch/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 8, cfg.Alerting.Workers)
	assert.Equal(t, 10*time.Second, cfg.Providers.Wise.RequestTimeout)

	fees, err := cfg.Fees.Domain()
	require.NoError(t, err)
	assert.Equal(t, "0.001", fees.TradeFeeEU.String())
	assert.Equal(t, "3.5", fees.WithdrawFeeFixed.String())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  interval: 1m
fees:
  trade_fee_eu: "0.002"
  network_fee_fixed: "0.5"
alerting:
  workers: 2
`)
	t.Setenv("BRIDGEWATCH_FEES_WITHDRAW_FEE_FIXED", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 2, cfg.Alerting.Workers)

	fees, err := cfg.Fees.Domain()
	require.NoError(t, err)
	assert.Equal(t, "0.002", fees.TradeFeeEU.String())
	assert.Equal(t, "0.5", fees.NetworkFeeFixed.String())
	assert.Equal(t, "4", fees.WithdrawFeeFixed.String())
}

func TestValidateRejectsBadFees(t *testing.T) {
	_, err := Load(writeConfig(t, "fees:\n  trade_fee_br: \"1.5\"\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidFees)

	_, err = Load(writeConfig(t, "fees:\n  network_fee_fixed: \"abc\"\n"))
	assert.Error(t, err)
}

func TestValidateTelegramCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, "alerting:\n  telegram:\n    enabled: true\n"))
	assert.Error(t, err)

	cfg, err := Load(writeConfig(t, "alerting:\n  telegram:\n    enabled: true\n    bot_token: t\n    chat_id: c\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Alerting.Telegram.Enabled)
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 10}}
	assert.Equal(t, 10, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 3, cfg.ResolveMaxPoints(3))
}

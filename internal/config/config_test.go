package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_API_KEY", "test_key_123")
	defer os.Unsetenv("TEST_API_KEY")

	got := expandEnvVars("api_key: ${TEST_API_KEY}")
	assert.Equal(t, "api_key: test_key_123", got)

	got = expandEnvVars("api_key: ${MISSING_VAR}")
	assert.Equal(t, "api_key: ", got)
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	content := `
exchange:
  name: mock
  api_key: "${TEST_API_KEY}"
  secret_key: "${TEST_SECRET_KEY}"

trading:
  trading_mode: BACKTEST
  strategy_type: SIMPLE_GRID
  spacing_type: ARITHMETIC
  bottom_range: 100
  top_range: 110
  num_grids: 11
  base_currency: BTC
  quote_currency: USDT
  initial_balance: 1000
  trading_fee: 0

system:
  log_level: INFO
`
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_API_KEY", "key_from_env")
	os.Setenv("TEST_SECRET_KEY", "secret_from_env")
	defer os.Unsetenv("TEST_API_KEY")
	defer os.Unsetenv("TEST_SECRET_KEY")

	cfg, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err)
	assert.Equal(t, Secret("key_from_env"), cfg.Exchange.APIKey)
	assert.Equal(t, Secret("secret_from_env"), cfg.Exchange.SecretKey)
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trading.TopRange = cfg.Trading.BottomRange
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_range")
}

func TestValidateRejectsBothTPAndSL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TakeProfit.Enabled = true
	cfg.StopLoss.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most one")
}

func TestConfigStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exchange.APIKey = Secret("my_super_secret_api_key")
	cfg.Exchange.SecretKey = Secret("my_super_secret_secret_key")

	out := cfg.String()
	assert.NotContains(t, out, "my_super_secret_api_key")
	assert.NotContains(t, out, "my_super_secret_secret_key")
	assert.Contains(t, out, "REDACTED")
}

func TestWithDefaultsFillsAmbientFields(t *testing.T) {
	cfg := &Config{}
	filled := cfg.WithDefaults()
	assert.Equal(t, 3, filled.System.MaxRetries)
	assert.Equal(t, 3, filled.System.TickerRefreshSeconds)
	assert.Equal(t, "INFO", filled.System.LogLevel)
	assert.Equal(t, 8, filled.Concurrency.PoolSize)
}

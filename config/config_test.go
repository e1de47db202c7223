package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestGetYaml_FullConfig(t *testing.T) {
	t.Setenv(TokenEnv, "tok-123")

	path := writeConfig(t, `
gateway_url: https://gw.example.com/api
price_stream_url: wss://gw.example.com/ws/prices
balance_stream_url: wss://gw.example.com/ws/balances
user_id: user-1
quote_assets: [usdt, usd]
recompute_interval: 250ms
reconnect_step: 2s
reconnect_cap: 10s
reconnect_attempts: 5
fetch_retries: 3
web_addr: ":9090"
history_dir: /tmp/folio-history
`)

	conf, err := getYaml(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gw.example.com/api", conf.GatewayURL)
	assert.Equal(t, "wss://gw.example.com/ws/prices", conf.PriceStreamURL)
	assert.Equal(t, "wss://gw.example.com/ws/balances", conf.BalanceStreamURL)
	assert.Equal(t, "user-1", conf.UserID)
	assert.Equal(t, "tok-123", conf.Token)
	// quote assets are normalized to upper case
	assert.Equal(t, []string{"USDT", "USD"}, conf.QuoteAssets)
	assert.Equal(t, 250*time.Millisecond, conf.RecomputeInterval)
	assert.Equal(t, 2*time.Second, conf.ReconnectStep)
	assert.Equal(t, 10*time.Second, conf.ReconnectCap)
	assert.Equal(t, 5, conf.ReconnectAttempts)
	assert.Equal(t, 3, conf.FetchRetries)
	assert.Equal(t, ":9090", conf.WebAddr)
	assert.Equal(t, "/tmp/folio-history", conf.HistoryDir)
}

func TestGetYaml_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
gateway_url: http://localhost:3000/api
price_stream_url: ws://localhost:3000/ws/prices
balance_stream_url: ws://localhost:3000/ws/balances
user_id: user-1
`)

	conf, err := getYaml(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"USDT", "USD"}, conf.QuoteAssets)
	assert.Equal(t, defaultRecomputeInterval, conf.RecomputeInterval)
	assert.Equal(t, defaultReconnectStep, conf.ReconnectStep)
	assert.Equal(t, defaultReconnectCap, conf.ReconnectCap)
	assert.Equal(t, defaultReconnectAttempts, conf.ReconnectAttempts)
	assert.Equal(t, defaultFetchRetries, conf.FetchRetries)
	assert.Equal(t, defaultWebAddr, conf.WebAddr)
}

func TestGetYaml_MissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
gateway_url: http://localhost:3000/api
price_stream_url: ws://localhost:3000/ws/prices
balance_stream_url: ws://localhost:3000/ws/balances
`)

	_, err := getYaml(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id")
}

func TestGetYaml_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
gateway_url: http://localhost:3000/api
price_stream_url: ws://localhost:3000/ws/prices
balance_stream_url: ws://localhost:3000/ws/balances
user_id: user-1
recompute_interval: not-a-duration
`)

	_, err := getYaml(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recompute_interval")
}

func TestGetYaml_NegativeDurationRejected(t *testing.T) {
	path := writeConfig(t, `
gateway_url: http://localhost:3000/api
price_stream_url: ws://localhost:3000/ws/prices
balance_stream_url: ws://localhost:3000/ws/balances
user_id: user-1
reconnect_step: -1s
`)

	_, err := getYaml(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnect_step")
}

func TestGetYaml_FileMissing(t *testing.T) {
	_, err := getYaml("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"USDT", "USD"}, splitList("USDT, USD"))
	assert.Equal(t, []string{"EUR"}, splitList(" EUR ,,"))
	assert.Empty(t, splitList(""))
}

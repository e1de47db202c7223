// Package config loads the dashboard configuration from a YAML file or
// CLI flags. The API token is never stored in the file; it comes from
// the FOLIO_API_TOKEN environment variable.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// TokenEnv names the environment variable holding the gateway
	// bearer token.
	TokenEnv = "FOLIO_API_TOKEN"

	defaultRecomputeInterval = 100 * time.Millisecond
	defaultReconnectStep     = 1 * time.Second
	defaultReconnectCap      = 5 * time.Second
	defaultReconnectAttempts = 10
	defaultFetchRetries      = 2
	defaultWebAddr           = ":8080"
)

// Config is the resolved dashboard configuration.
type Config struct {
	// GatewayURL is the REST base of the dashboard backend.
	GatewayURL string
	// PriceStreamURL and BalanceStreamURL are the websocket channels.
	PriceStreamURL   string
	BalanceStreamURL string
	UserID           string
	Token            string
	// QuoteAssets is the quote preference order used for valuation.
	QuoteAssets       []string
	RecomputeInterval time.Duration
	ReconnectStep     time.Duration
	ReconnectCap      time.Duration
	ReconnectAttempts int
	FetchRetries      int
	WebAddr           string
	TLSDomains        []string
	CertCacheDir      string
	HistoryDir        string
}

// ConfigTmp mirrors the YAML layout; durations are strings parsed with
// time.ParseDuration.
type ConfigTmp struct {
	GatewayURL           string   `yaml:"gateway_url"`
	PriceStreamURL       string   `yaml:"price_stream_url"`
	BalanceStreamURL     string   `yaml:"balance_stream_url"`
	UserID               string   `yaml:"user_id"`
	QuoteAssets          []string `yaml:"quote_assets,omitempty"`
	RecomputeIntervalStr string   `yaml:"recompute_interval,omitempty"`
	ReconnectStepStr     string   `yaml:"reconnect_step,omitempty"`
	ReconnectCapStr      string   `yaml:"reconnect_cap,omitempty"`
	ReconnectAttempts    int      `yaml:"reconnect_attempts,omitempty"`
	FetchRetries         int      `yaml:"fetch_retries,omitempty"`
	WebAddr              string   `yaml:"web_addr,omitempty"`
	TLSDomains           []string `yaml:"tls_domains,omitempty"`
	CertCacheDir         string   `yaml:"cert_cache_dir,omitempty"`
	HistoryDir           string   `yaml:"history_dir,omitempty"`
}

// Get resolves the configuration. When --config points to a YAML file
// it is used; otherwise the remaining CLI flags apply.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	gatewayURL := flag.String("gateway", "http://localhost:3000/api", "dashboard gateway REST base URL")
	priceURL := flag.String("prices", "ws://localhost:3000/ws/prices", "price stream websocket URL")
	balanceURL := flag.String("balances", "ws://localhost:3000/ws/balances", "balance stream websocket URL")
	userID := flag.String("user", "", "user id for the balance room")
	quotes := flag.String("quotes", "USDT,USD", "comma-separated quote preference order")
	webAddr := flag.String("web", defaultWebAddr, "dashboard listen address")
	historyDir := flag.String("history", "", "valuation history directory")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	conf := Config{
		GatewayURL:       *gatewayURL,
		PriceStreamURL:   *priceURL,
		BalanceStreamURL: *balanceURL,
		UserID:           *userID,
		QuoteAssets:      splitList(*quotes),
		WebAddr:          *webAddr,
		HistoryDir:       *historyDir,
	}
	return finalize(conf)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	conf := Config{
		GatewayURL:        tmp.GatewayURL,
		PriceStreamURL:    tmp.PriceStreamURL,
		BalanceStreamURL:  tmp.BalanceStreamURL,
		UserID:            tmp.UserID,
		QuoteAssets:       tmp.QuoteAssets,
		ReconnectAttempts: tmp.ReconnectAttempts,
		FetchRetries:      tmp.FetchRetries,
		WebAddr:           tmp.WebAddr,
		TLSDomains:        tmp.TLSDomains,
		CertCacheDir:      tmp.CertCacheDir,
		HistoryDir:        tmp.HistoryDir,
	}

	if conf.RecomputeInterval, err = parseDuration(tmp.RecomputeIntervalStr, "recompute_interval"); err != nil {
		return Config{}, err
	}
	if conf.ReconnectStep, err = parseDuration(tmp.ReconnectStepStr, "reconnect_step"); err != nil {
		return Config{}, err
	}
	if conf.ReconnectCap, err = parseDuration(tmp.ReconnectCapStr, "reconnect_cap"); err != nil {
		return Config{}, err
	}

	return finalize(conf)
}

// finalize applies defaults, pulls the token from the environment and
// validates the required fields.
func finalize(conf Config) (Config, error) {
	if conf.GatewayURL == "" {
		return Config{}, fmt.Errorf("gateway_url is required")
	}
	if conf.PriceStreamURL == "" {
		return Config{}, fmt.Errorf("price_stream_url is required")
	}
	if conf.BalanceStreamURL == "" {
		return Config{}, fmt.Errorf("balance_stream_url is required")
	}
	if conf.UserID == "" {
		return Config{}, fmt.Errorf("user_id is required")
	}

	conf.Token = os.Getenv(TokenEnv)

	if len(conf.QuoteAssets) == 0 {
		conf.QuoteAssets = []string{"USDT", "USD"}
	}
	for i, q := range conf.QuoteAssets {
		conf.QuoteAssets[i] = strings.ToUpper(strings.TrimSpace(q))
	}

	if conf.RecomputeInterval == 0 {
		conf.RecomputeInterval = defaultRecomputeInterval
	}
	if conf.ReconnectStep == 0 {
		conf.ReconnectStep = defaultReconnectStep
	}
	if conf.ReconnectCap == 0 {
		conf.ReconnectCap = defaultReconnectCap
	}
	if conf.ReconnectAttempts == 0 {
		conf.ReconnectAttempts = defaultReconnectAttempts
	}
	if conf.FetchRetries == 0 {
		conf.FetchRetries = defaultFetchRetries
	}
	if conf.WebAddr == "" {
		conf.WebAddr = defaultWebAddr
	}

	return conf, nil
}

func parseDuration(raw, field string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("incorrect '%s' param in yaml config: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("incorrect '%s' param in yaml config: must not be negative", field)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Package setup provides the terminal wizard that writes the YAML
// configuration when none exists yet.
package setup

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/folio/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		gatewayURL  string
		priceURL    string
		balanceURL  string
		userID      string
		quotesStr   string
		webAddr     string
		historyDir  string
		tlsDomains  string
		confirm     bool
	)

	// defaults
	gatewayURL = "http://localhost:3000/api"
	priceURL = "ws://localhost:3000/ws/prices"
	balanceURL = "ws://localhost:3000/ws/balances"
	quotesStr = "USDT,USD"
	webAddr = ":8080"
	historyDir = "./wal/valuations"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's point the dashboard at your gateway.\n"))

	// gateway endpoints
	fmt.Println(stepStyle.Render("STEP 1: GATEWAY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway REST base URL").
				Validate(validateHTTPURL).
				Value(&gatewayURL),
			huh.NewInput().
				Title("Price stream URL").
				Description("ws:// or wss://").
				Validate(validateWSURL).
				Value(&priceURL),
			huh.NewInput().
				Title("Balance stream URL").
				Description("ws:// or wss://").
				Validate(validateWSURL).
				Value(&balanceURL),
		),
	).Run()
	if err != nil {
		return err
	}

	// identity
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: ACCOUNT"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User id").
				Description("Scopes the balance push room to you").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("user id is required")
					}
					return nil
				}).
				Value(&userID),
			huh.NewInput().
				Title("Quote preference order").
				Description("Comma-separated, e.g. USDT,USD").
				Value(&quotesStr),
		),
	).Run()
	if err != nil {
		return err
	}

	// serving
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: SERVING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dashboard listen address").
				Value(&webAddr),
			huh.NewInput().
				Title("Valuation history directory").
				Value(&historyDir),
			huh.NewInput().
				Title("TLS domains (optional)").
				Description("Comma-separated; empty disables autocert").
				Value(&tlsDomains),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Gateway: %s\nPrices: %s\nBalances: %s\nUser: %s\nQuotes: %s\nWeb: %s\n",
		gatewayURL, priceURL, balanceURL, userID, quotesStr, webAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	cfgTmp := config.ConfigTmp{
		GatewayURL:       gatewayURL,
		PriceStreamURL:   priceURL,
		BalanceStreamURL: balanceURL,
		UserID:           userID,
		QuoteAssets:      splitList(quotesStr),
		WebAddr:          webAddr,
		HistoryDir:       historyDir,
		TLSDomains:       splitList(tlsDomains),
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nRemember to export %s before starting.", filename, config.TokenEnv)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("must be an http(s) URL")
	}
	return nil
}

func validateWSURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("must be a ws(s) URL")
	}
	return nil
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

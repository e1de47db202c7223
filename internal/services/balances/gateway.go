package balances

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/folio/internal/domain"
)

const requestTimeout = 15 * time.Second

// APIClient is the one-shot REST client for the dashboard gateway.
type APIClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewAPIClient creates a gateway client authenticating with the given
// bearer token.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// FetchBalances requests the current balance snapshot.
func (c *APIClient) FetchBalances(ctx context.Context) (domain.BalanceSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/balances", nil)
	if err != nil {
		return domain.BalanceSnapshot{}, errors.Wrap(err, "build balances request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.BalanceSnapshot{}, errors.Wrap(err, "fetch balances")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.BalanceSnapshot{}, errors.Errorf("fetch balances: unexpected status %s", resp.Status)
	}

	var snap domain.BalanceSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return domain.BalanceSnapshot{}, errors.Wrap(err, "decode balance snapshot")
	}
	return snap, nil
}

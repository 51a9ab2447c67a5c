package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ExchangeRateClient fetches the USD -> COP rate from exchangerate.host.
type ExchangeRateClient struct {
	logger *slog.Logger
	apiURL string
	client *http.Client
}

func NewExchangeRateClient(logger *slog.Logger, apiURL string, timeout time.Duration) *ExchangeRateClient {
	if apiURL == "" {
		apiURL = "https://api.exchangerate.host"
	}
	return &ExchangeRateClient{
		logger: logger,
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

// USDCOP returns the current USD -> COP exchange rate.
func (c *ExchangeRateClient) USDCOP(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/latest?base=USD&symbols=COP", c.apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create fx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fx request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fx source returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode fx response: %w", err)
	}

	rate, ok := payload.Rates["COP"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("fx response missing COP rate")
	}

	c.logger.DebugContext(ctx, "Fetched USD/COP exchange rate", "rate", rate)
	return rate, nil
}

package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// BinanceClient fetches the WLD/USDT spot price from the Binance public API.
type BinanceClient struct {
	logger *slog.Logger
	apiURL string
	client *http.Client
}

func NewBinanceClient(logger *slog.Logger, apiURL string, timeout time.Duration) *BinanceClient {
	if apiURL == "" {
		apiURL = "https://api.binance.com"
	}
	return &BinanceClient{
		logger: logger,
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

// WLDUSD returns the current WLD/USDT spot price. Any network error,
// non-success status or non-numeric payload is reported as an error; the
// caller decides on a fallback.
func (c *BinanceClient) WLDUSD(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=WLDUSDT", c.apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create binance request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("binance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("binance returned status %d", resp.StatusCode)
	}

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode binance response: %w", err)
	}

	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("binance returned non-numeric price %q", payload.Price)
	}

	c.logger.DebugContext(ctx, "Fetched WLD/USDT spot price", "price", price)
	return price, nil
}

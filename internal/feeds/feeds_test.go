package feeds

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBinanceClientParsesPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		require.Equal(t, "WLDUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"WLDUSDT","price":"0.76540000"}`))
	}))
	defer server.Close()

	client := NewBinanceClient(slog.Default(), server.URL, time.Second)
	price, err := client.WLDUSD(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0.7654, price)
}

func TestBinanceClientRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"non-numeric price", http.StatusOK, `{"symbol":"WLDUSDT","price":"n/a"}`},
		{"zero price", http.StatusOK, `{"symbol":"WLDUSDT","price":"0"}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewBinanceClient(slog.Default(), server.URL, time.Second)
			_, err := client.WLDUSD(context.Background())
			require.Error(t, err)
		})
	}
}

func TestBinanceClientTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"price":"0.76"}`))
	}))
	defer server.Close()

	client := NewBinanceClient(slog.Default(), server.URL, 20*time.Millisecond)
	_, err := client.WLDUSD(context.Background())
	require.Error(t, err)
}

func TestExchangeRateClientParsesRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/latest", r.URL.Path)
		require.Equal(t, "USD", r.URL.Query().Get("base"))
		require.Equal(t, "COP", r.URL.Query().Get("symbols"))
		w.Write([]byte(`{"base":"USD","rates":{"COP":3912.34}}`))
	}))
	defer server.Close()

	client := NewExchangeRateClient(slog.Default(), server.URL, time.Second)
	rate, err := client.USDCOP(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3912.34, rate)
}

func TestExchangeRateClientRejectsMissingRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"EUR":0.91}}`))
	}))
	defer server.Close()

	client := NewExchangeRateClient(slog.Default(), server.URL, time.Second)
	_, err := client.USDCOP(context.Background())
	require.Error(t, err)
}

func TestWorldIDClientDisabledAcceptsProofs(t *testing.T) {
	client := NewWorldIDClient(slog.Default(), "", "changewld-verify", "")
	require.False(t, client.IsEnabled())

	err := client.Verify(context.Background(), WorldIDProof{NullifierHash: "0x123"})
	require.NoError(t, err)
}

func TestWorldIDClientForwardsProof(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/verify/app_test", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewWorldIDClient(slog.Default(), "app_test", "changewld-verify", server.URL)
	require.True(t, client.IsEnabled())

	err := client.Verify(context.Background(), WorldIDProof{
		NullifierHash:     "0x123",
		MerkleRoot:        "0x456",
		Proof:             "0x789",
		VerificationLevel: "orb",
	})
	require.NoError(t, err)
}

func TestWorldIDClientRejectsRejectedProof(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid_proof"}`))
	}))
	defer server.Close()

	client := NewWorldIDClient(slog.Default(), "app_test", "changewld-verify", server.URL)
	err := client.Verify(context.Background(), WorldIDProof{NullifierHash: "0x123"})
	require.Error(t, err)
}

package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WorldIDProof is the zero-knowledge proof payload forwarded by the wizard.
// The fields are opaque to us; the Worldcoin developer API validates them.
type WorldIDProof struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
}

// WorldIDClient proxies identity proofs to the Worldcoin verify API. When no
// app id is configured the client runs disabled and accepts every proof,
// which keeps local rigs and the test flow working without credentials.
type WorldIDClient struct {
	logger    *slog.Logger
	appID     string
	action    string
	apiURL    string
	client    *http.Client
	isEnabled bool
}

func NewWorldIDClient(logger *slog.Logger, appID, action, apiURL string) *WorldIDClient {
	isEnabled := appID != ""
	if !isEnabled {
		logger.Warn("World ID verification is disabled due to missing app id")
	} else {
		logger.Info("World ID verification initialized", "app_id", appID, "action", action)
	}

	if apiURL == "" {
		apiURL = "https://developer.worldcoin.org"
	}

	return &WorldIDClient{
		logger:    logger,
		appID:     appID,
		action:    action,
		apiURL:    apiURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		isEnabled: isEnabled,
	}
}

func (c *WorldIDClient) IsEnabled() bool {
	return c.isEnabled
}

// Verify submits the proof for the configured action. A nil error means the
// nullifier was accepted.
func (c *WorldIDClient) Verify(ctx context.Context, proof WorldIDProof) error {
	if !c.isEnabled {
		c.logger.Warn("World ID verification disabled, accepting proof", "nullifier", proof.NullifierHash)
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"nullifier_hash":     proof.NullifierHash,
		"merkle_root":        proof.MerkleRoot,
		"proof":              proof.Proof,
		"verification_level": proof.VerificationLevel,
		"action":             c.action,
	})
	if err != nil {
		return fmt.Errorf("failed to encode world id proof: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v2/verify/%s", c.apiURL, c.appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create world id request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("world id request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("world id verification rejected with status %d: %s", resp.StatusCode, string(detail))
	}

	c.logger.InfoContext(ctx, "World ID proof verified", "nullifier", proof.NullifierHash)
	return nil
}

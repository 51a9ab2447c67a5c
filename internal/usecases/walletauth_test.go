package usecases

import (
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const authAddress = "0x986fc2a160b89e797f3e208fab3cb97ccb67a359"

func TestWalletAuthRoundTrip(t *testing.T) {
	service := NewWalletAuthService(slog.Default(), "test-secret")

	nonce, signedNonce := service.Nonce()
	require.NotEmpty(t, nonce)
	require.NotEmpty(t, signedNonce)

	payload := `{"status":"success","address":"` + authAddress + `"}`
	session, err := service.Complete(nonce, signedNonce, payload)
	require.NoError(t, err)
	require.NotEmpty(t, session.WalletToken)
	// Address is normalized to its checksummed form.
	require.Equal(t, common.HexToAddress(authAddress).Hex(), session.WalletAddress)
}

func TestWalletAuthRejectsForgedNonce(t *testing.T) {
	service := NewWalletAuthService(slog.Default(), "test-secret")

	payload := `{"status":"success","address":"` + authAddress + `"}`
	_, err := service.Complete("made-up-nonce", "bad-signature", payload)
	require.ErrorIs(t, err, ErrInvalidNonce)
}

func TestWalletAuthRejectsSignatureFromOtherSecret(t *testing.T) {
	issuer := NewWalletAuthService(slog.Default(), "secret-a")
	verifier := NewWalletAuthService(slog.Default(), "secret-b")

	nonce, signedNonce := issuer.Nonce()
	payload := `{"status":"success","address":"` + authAddress + `"}`
	_, err := verifier.Complete(nonce, signedNonce, payload)
	require.ErrorIs(t, err, ErrInvalidNonce)
}

func TestWalletAuthRejectsFailedWalletPayload(t *testing.T) {
	service := NewWalletAuthService(slog.Default(), "test-secret")

	nonce, signedNonce := service.Nonce()

	for _, payload := range []string{
		`{"status":"error","address":"` + authAddress + `"}`,
		`{"status":"success","address":"not-an-address"}`,
		`not json at all`,
	} {
		_, err := service.Complete(nonce, signedNonce, payload)
		require.ErrorIs(t, err, ErrAuthRejected, "payload: %s", payload)
	}
}

package usecases

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// WalletSession is the result of a completed wallet authentication.
type WalletSession struct {
	WalletAddress string `json:"walletAddress"`
	WalletToken   string `json:"walletToken"`
}

// WalletAuthService issues SIWE nonces and completes the challenge/response
// handshake with World App. The signature itself is produced and validated
// inside the wallet; we only prove that the nonce round-tripping back to us
// is one we issued (HMAC over a server secret) and that the wallet reported
// a successful signature for a real address.
type WalletAuthService struct {
	logger *slog.Logger
	secret []byte
}

func NewWalletAuthService(logger *slog.Logger, secret string) *WalletAuthService {
	return &WalletAuthService{logger: logger, secret: []byte(secret)}
}

// Nonce returns a fresh nonce and its server signature. The signature lets
// completion verify the nonce without server-side session state.
func (s *WalletAuthService) Nonce() (nonce, signedNonce string) {
	nonce = strings.ReplaceAll(uuid.NewString(), "-", "")
	return nonce, s.sign(nonce)
}

// walletAuthPayload is the MiniKit walletAuth final payload; fields we do not
// inspect are left out.
type walletAuthPayload struct {
	Status  string `json:"status"`
	Address string `json:"address"`
}

// Complete verifies the returned nonce and extracts the authenticated wallet
// address from the payload, issuing a session token for the order-history
// endpoints.
func (s *WalletAuthService) Complete(nonce, signedNonce, finalPayloadJSON string) (WalletSession, error) {
	if nonce == "" || !hmac.Equal([]byte(s.sign(nonce)), []byte(signedNonce)) {
		return WalletSession{}, ErrInvalidNonce
	}

	var payload walletAuthPayload
	if err := json.Unmarshal([]byte(finalPayloadJSON), &payload); err != nil {
		return WalletSession{}, fmt.Errorf("%w: malformed payload: %w", ErrAuthRejected, err)
	}
	if payload.Status != "success" || !common.IsHexAddress(payload.Address) {
		return WalletSession{}, ErrAuthRejected
	}

	session := WalletSession{
		WalletAddress: common.HexToAddress(payload.Address).Hex(),
		WalletToken:   uuid.NewString(),
	}

	s.logger.Info("Wallet authenticated", "address", session.WalletAddress)
	return session, nil
}

func (s *WalletAuthService) sign(nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

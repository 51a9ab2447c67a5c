package handlers

import (
	"context"

	"github.com/changewld/backend/internal/entities"
	"github.com/changewld/backend/internal/feeds"
	"github.com/changewld/backend/internal/usecases"
)

type RateService interface {
	GetRate(ctx context.Context) (entities.RateQuote, bool, error)
}

type WalletService interface {
	IsEnabled() bool
	GetWLDBalance(ctx context.Context, address string) (entities.WalletBalance, error)
}

type WalletAuthService interface {
	Nonce() (nonce, signedNonce string)
	Complete(nonce, signedNonce, finalPayloadJSON string) (usecases.WalletSession, error)
}

type WorldIDVerifier interface {
	Verify(ctx context.Context, proof feeds.WorldIDProof) error
}

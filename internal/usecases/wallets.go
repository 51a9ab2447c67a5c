package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/changewld/backend/internal/entities"
)

const balanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// WalletService reads WLD balances from World Chain. The chain is a read-only
// collaborator here: the backend never holds keys or submits transfers.
type WalletService struct {
	logger *slog.Logger

	rpcURL       string
	tokenAddress common.Address
	erc20ABI     abi.ABI
	isEnabled    bool
}

func NewWalletService(logger *slog.Logger, rpcURL, tokenAddress string) (*WalletService, error) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	isEnabled := rpcURL != "" && common.IsHexAddress(tokenAddress)
	if !isEnabled {
		logger.Warn("Wallet balance service is disabled", "rpc_configured", rpcURL != "")
	}

	return &WalletService{
		logger:       logger,
		rpcURL:       rpcURL,
		tokenAddress: common.HexToAddress(tokenAddress),
		erc20ABI:     parsed,
		isEnabled:    isEnabled,
	}, nil
}

func (s *WalletService) IsEnabled() bool {
	return s.isEnabled
}

// GetWLDBalance returns the WLD holding of the given address.
func (s *WalletService) GetWLDBalance(ctx context.Context, address string) (entities.WalletBalance, error) {
	if !s.isEnabled {
		return entities.WalletBalance{}, ErrWalletServiceDisabled
	}
	if !common.IsHexAddress(address) {
		return entities.WalletBalance{}, fmt.Errorf("invalid wallet address %q", address)
	}

	client, err := ethclient.DialContext(ctx, s.rpcURL)
	if err != nil {
		return entities.WalletBalance{}, fmt.Errorf("failed to connect to World Chain RPC: %w", err)
	}
	defer client.Close()

	data, err := s.erc20ABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return entities.WalletBalance{}, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &s.tokenAddress, Data: data}, nil)
	if err != nil {
		return entities.WalletBalance{}, fmt.Errorf("balanceOf call failed: %w", err)
	}

	unpacked, err := s.erc20ABI.Unpack("balanceOf", result)
	if err != nil || len(unpacked) == 0 {
		return entities.WalletBalance{}, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	balanceWei, ok := unpacked[0].(*big.Int)
	if !ok {
		return entities.WalletBalance{}, fmt.Errorf("unexpected balanceOf result type %T", unpacked[0])
	}

	balance := entities.WalletBalance{
		Address:    common.HexToAddress(address).Hex(),
		BalanceWei: balanceWei.String(),
		BalanceWLD: weiToToken(balanceWei),
		CheckedAt:  time.Now().UTC(),
	}

	s.logger.Info("Wallet balance checked", "address", balance.Address, "balance_wld", balance.BalanceWLD)
	return balance, nil
}

// weiToToken converts an 18-decimal token amount to a float for display.
func weiToToken(wei *big.Int) float64 {
	f := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
	)
	value, _ := f.Float64()
	return value
}

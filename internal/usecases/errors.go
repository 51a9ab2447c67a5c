package usecases

import "errors"

var (
	// ErrInvalidEstado is returned when a transition targets a state
	// outside the fixed set.
	ErrInvalidEstado = errors.New("estado inválido")

	// ErrWalletServiceDisabled is returned when no World Chain RPC is
	// configured.
	ErrWalletServiceDisabled = errors.New("wallet service disabled: no RPC configured")

	// ErrInvalidNonce is returned when a wallet-auth completion carries a
	// nonce we did not issue.
	ErrInvalidNonce = errors.New("nonce inválido")

	// ErrAuthRejected is returned when the wallet payload does not prove
	// a successful signature.
	ErrAuthRejected = errors.New("autenticación de billetera rechazada")
)

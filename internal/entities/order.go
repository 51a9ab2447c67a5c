package entities

import (
	"errors"
	"fmt"
	"time"
)

// Estado is the lifecycle state of an exchange order.
type Estado string

const (
	EstadoPendiente   Estado = "pendiente"
	EstadoEnviada     Estado = "enviada"
	EstadoRecibidaWLD Estado = "recibida_wld"
	EstadoPagada      Estado = "pagada"
	EstadoRechazada   Estado = "rechazada"
)

// Estados is the closed set of valid order states, in lifecycle order.
var Estados = []Estado{
	EstadoPendiente,
	EstadoEnviada,
	EstadoRecibidaWLD,
	EstadoPagada,
	EstadoRechazada,
}

// ErrOrderNotFound is returned by repositories when an order id does not
// exist. It is never used for corrupt or unreadable storage.
var ErrOrderNotFound = errors.New("orden no encontrada")

// ValidEstado reports whether s belongs to the fixed state set.
func ValidEstado(s Estado) bool {
	for _, e := range Estados {
		if e == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state ends the happy or rejected path.
// Terminal states are still mutable by the operator, arbitrary jumps are
// allowed by the admin surface.
func (e Estado) IsTerminal() bool {
	return e == EstadoPagada || e == EstadoRechazada
}

// StatusChange is one append-only entry of an order's transition history.
type StatusChange struct {
	At time.Time `json:"at"`
	To Estado    `json:"to"`
}

// Order is one WLD -> COP exchange request.
type Order struct {
	ID       int     `json:"id"`
	Nombre   string  `json:"nombre"`
	Correo   string  `json:"correo"`
	Banco    string  `json:"banco"`
	Titular  string  `json:"titular"`
	Numero   string  `json:"numero"`
	MontoWLD float64 `json:"montoWLD"`
	MontoCOP float64 `json:"montoCOP"`

	// Wallet is the user's World App address, present only when the order
	// was created from an authenticated session.
	Wallet string `json:"wallet,omitempty"`

	// WalletDestino is the operator's receiving address, copied from
	// configuration at creation time.
	WalletDestino string `json:"walletDestino"`

	Estado        Estado         `json:"estado"`
	TxHash        *string        `json:"tx_hash"`
	CreadaEn      time.Time      `json:"creada_en"`
	ActualizadaEn time.Time      `json:"actualizada_en"`
	StatusHistory []StatusChange `json:"status_history"`
}

// NewOrder initializes the mutable lifecycle fields of a freshly created
// order: initial state, first history entry and both timestamps. The id is
// assigned later by the repository.
func NewOrder(o Order, now time.Time) Order {
	o.Estado = EstadoPendiente
	o.TxHash = nil
	o.CreadaEn = now
	o.ActualizadaEn = now
	o.StatusHistory = []StatusChange{{At: now, To: EstadoPendiente}}
	return o
}

// ApplyTransition advances the order to estado, appending the history entry
// and bumping actualizada_en. An already attached tx_hash is never
// overwritten; otherwise txHash is attached when supplied, and entering
// pagada without one synthesizes a deterministic confirmation reference so
// paid orders always carry a non-null hash.
func ApplyTransition(o *Order, estado Estado, txHash *string, now time.Time) {
	o.Estado = estado
	o.StatusHistory = append(o.StatusHistory, StatusChange{At: now, To: estado})
	o.ActualizadaEn = now

	if o.TxHash != nil {
		return
	}
	switch {
	case txHash != nil && *txHash != "":
		o.TxHash = txHash
	case estado == EstadoPagada:
		h := ConfirmedTxHash(now)
		o.TxHash = &h
	}
}

// ConfirmedTxHash is the reference synthesized when an order is paid out
// before any on-chain transfer was recorded.
func ConfirmedTxHash(now time.Time) string {
	return fmt.Sprintf("TX_CONFIRMED_%d", now.UnixMilli())
}

// SimulatedTxHash is the reference attached by the test-mode auto transition.
func SimulatedTxHash(now time.Time) string {
	return fmt.Sprintf("SIMULATED_TX_%d", now.UnixMilli())
}

// OrderStats is the aggregate view served to the admin panel.
type OrderStats struct {
	Total     int            `json:"total"`
	PorEstado map[Estado]int `json:"por_estado"`
	TotalWLD  float64        `json:"total_wld"`
	TotalCOP  float64        `json:"total_cop"`
}

// OrderEventType discriminates push notifications about orders.
type OrderEventType string

const (
	OrderCreated OrderEventType = "created"
	OrderEstado  OrderEventType = "estado"
)

// OrderEvent is broadcast to subscribed UIs whenever an order is created or
// changes state.
type OrderEvent struct {
	Type  OrderEventType `json:"type"`
	Order Order          `json:"orden"`
}

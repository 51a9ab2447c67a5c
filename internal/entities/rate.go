package entities

import "time"

// RateQuote is the WLD -> COP conversion served to the wizard. It is derived
// from two upstream feeds and never persisted.
type RateQuote struct {
	WldUsd        float64   `json:"wld_usd"`
	UsdCop        float64   `json:"usd_cop"`
	WldCopBruto   float64   `json:"wld_cop_bruto"`
	WldCopUsuario float64   `json:"wld_cop_usuario"`
	SpreadPercent float64   `json:"spread_percent"`
	Fuente        string    `json:"fuente"`
	Fecha         time.Time `json:"fecha"`
}

// WalletBalance is the WLD holding of a user wallet on World Chain.
type WalletBalance struct {
	Address    string    `json:"address"`
	BalanceWei string    `json:"balance_wei"`
	BalanceWLD float64   `json:"balance_wld"`
	CheckedAt  time.Time `json:"checked_at"`
}

package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	cfg "github.com/changewld/backend/config"
	"github.com/changewld/backend/internal/entities"
	"github.com/changewld/backend/internal/feeds"
	"github.com/changewld/backend/internal/usecases"
)

var _ OrderService = (*usecases.OrderService)(nil)
var _ RateService = (*usecases.RateService)(nil)
var _ WalletService = (*usecases.WalletService)(nil)
var _ WalletAuthService = (*usecases.WalletAuthService)(nil)
var _ WorldIDVerifier = (*feeds.WorldIDClient)(nil)

type HTTPHandler struct {
	logger *slog.Logger
	config *cfg.Config

	orderService      OrderService
	rateService       RateService
	walletService     WalletService
	walletAuthService WalletAuthService
	worldIDVerifier   WorldIDVerifier
}

func NewHTTPHandler(
	logger *slog.Logger,
	config *cfg.Config,
	orderService OrderService,
	rateService RateService,
	walletService WalletService,
	walletAuthService WalletAuthService,
	worldIDVerifier WorldIDVerifier,
) *HTTPHandler {
	return &HTTPHandler{
		logger:            logger,
		config:            config,
		orderService:      orderService,
		rateService:       rateService,
		walletService:     walletService,
		walletAuthService: walletAuthService,
		worldIDVerifier:   worldIDVerifier,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Root).Methods("GET")
	router.HandleFunc("/api/health", h.Health).Methods("GET")
	router.HandleFunc("/api/config", h.GetConfig).Methods("GET")
	router.HandleFunc("/api/rate", h.GetRate).Methods("GET")

	// Orders
	router.HandleFunc("/api/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/api/orders/{id:[0-9]+}", h.GetOrder).Methods("GET")
	router.HandleFunc("/api/orders-by-wallet", h.GetOrdersByWallet).Methods("GET")

	// Admin panel, PIN gated
	router.HandleFunc("/api/orders-admin", h.AdminOrders).Methods("GET", "POST")
	router.HandleFunc("/api/orders-admin/stats", h.AdminStats).Methods("GET", "POST")
	router.HandleFunc("/api/orders/{id:[0-9]+}/estado", h.UpdateEstado).Methods("PUT")

	// Wallet collaborators
	router.HandleFunc("/api/wallet-balance", h.GetWalletBalance).Methods("GET")
	router.HandleFunc("/api/wallet-auth/nonce", h.WalletAuthNonce).Methods("GET")
	router.HandleFunc("/api/wallet-auth/complete", h.WalletAuthComplete).Methods("POST")
	router.HandleFunc("/api/verify-world-id", h.VerifyWorldID).Methods("POST")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Ruta no encontrada"})
	})
}

func (h *HTTPHandler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ChangeWLD backend OK"))
}

func (h *HTTPHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"test_mode": h.config.Exchange.TestMode,
		"now":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HTTPHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"walletDestino": h.config.Exchange.WalletDestino,
		"spreadPercent": h.config.Exchange.Spread * 100,
		"testMode":      h.config.Exchange.TestMode,
		"rpcUrl":        nullable(h.config.Blockchain.RPCURL),
		"wldToken":      nullable(h.config.Blockchain.WLDTokenAddress),
	})
}

func (h *HTTPHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	quote, cached, err := h.rateService.GetRate(r.Context())
	if err != nil {
		h.logger.Error("Failed to compute rate quote", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Error obteniendo tasa"})
		return
	}

	response := struct {
		Ok bool `json:"ok"`
		entities.RateQuote
		Cached bool `json:"cached,omitempty"`
	}{Ok: true, RateQuote: quote, Cached: cached}

	writeJSON(w, http.StatusOK, response)
}

type createOrderRequest struct {
	Nombre   string  `json:"nombre"`
	Correo   string  `json:"correo"`
	Banco    string  `json:"banco"`
	Titular  string  `json:"titular"`
	Numero   string  `json:"numero"`
	MontoWLD float64 `json:"montoWLD"`
	MontoCOP float64 `json:"montoCOP"`
	Wallet   string  `json:"wallet"`
}

func (r createOrderRequest) incomplete() bool {
	return strings.TrimSpace(r.Nombre) == "" ||
		strings.TrimSpace(r.Correo) == "" ||
		strings.TrimSpace(r.Banco) == "" ||
		strings.TrimSpace(r.Titular) == "" ||
		strings.TrimSpace(r.Numero) == "" ||
		r.MontoWLD <= 0 ||
		r.MontoCOP <= 0
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.incomplete() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Campos incompletos"})
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), usecases.CreateOrderInput{
		Nombre:   req.Nombre,
		Correo:   req.Correo,
		Banco:    req.Banco,
		Titular:  req.Titular,
		Numero:   req.Numero,
		MontoWLD: req.MontoWLD,
		MontoCOP: req.MontoCOP,
		Wallet:   req.Wallet,
	})
	if err != nil {
		h.logger.Error("Failed to create order", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Error interno"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orden": order})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ID inválido"})
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), id)
	if errors.Is(err, entities.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Orden no encontrada"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get order", "order_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error interno"})
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) GetOrdersByWallet(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if wallet == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Falta el parámetro wallet"})
		return
	}

	orders, err := h.orderService.ListOrdersByWallet(r.Context(), wallet)
	if err != nil {
		h.logger.Error("Failed to list orders by wallet", "wallet", wallet, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Error interno"})
		return
	}
	if orders == nil {
		orders = []entities.Order{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orders": orders})
}

func (h *HTTPHandler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeOperator(w, r) {
		return
	}

	orders, err := h.orderService.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("Failed to list orders", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error interno"})
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeOperator(w, r) {
		return
	}

	stats, err := h.orderService.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to compute order stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error interno"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) UpdateEstado(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pin    string `json:"pin"`
		Estado string `json:"estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Cuerpo inválido"})
		return
	}
	if !h.pinMatches(body.Pin) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "PIN inválido"})
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ID inválido"})
		return
	}

	order, err := h.orderService.UpdateEstado(r.Context(), id, entities.Estado(strings.TrimSpace(body.Estado)))
	switch {
	case errors.Is(err, usecases.ErrInvalidEstado):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Estado inválido"})
		return
	case errors.Is(err, entities.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Orden no encontrada"})
		return
	case err != nil:
		// Includes persistence failures: the mutation may not be durable.
		h.logger.Error("Failed to update order state", "order_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error interno"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orden": order})
}

func (h *HTTPHandler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Falta el parámetro address"})
		return
	}

	balance, err := h.walletService.GetWLDBalance(r.Context(), address)
	switch {
	case errors.Is(err, usecases.ErrWalletServiceDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "Consulta de balance no disponible"})
		return
	case err != nil:
		h.logger.Error("Failed to check wallet balance", "address", address, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Error consultando balance"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "balance": balance})
}

func (h *HTTPHandler) WalletAuthNonce(w http.ResponseWriter, _ *http.Request) {
	nonce, signedNonce := h.walletAuthService.Nonce()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"nonce":       nonce,
		"signedNonce": signedNonce,
	})
}

func (h *HTTPHandler) WalletAuthComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nonce            string `json:"nonce"`
		SignedNonce      string `json:"signedNonce"`
		FinalPayloadJSON string `json:"finalPayloadJson"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Cuerpo inválido"})
		return
	}

	session, err := h.walletAuthService.Complete(body.Nonce, body.SignedNonce, body.FinalPayloadJSON)
	if err != nil {
		h.logger.Warn("Wallet authentication rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "Autenticación rechazada"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"walletAddress": session.WalletAddress,
		"walletToken":   session.WalletToken,
	})
}

func (h *HTTPHandler) VerifyWorldID(w http.ResponseWriter, r *http.Request) {
	var proof feeds.WorldIDProof
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Cuerpo inválido"})
		return
	}

	if err := h.worldIDVerifier.Verify(r.Context(), proof); err != nil {
		h.logger.Warn("World ID verification failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Verificación World ID fallida"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// authorizeOperator enforces the PIN gate. The PIN travels in the query for
// GET requests and in the JSON body otherwise (the admin UI uses both).
func (h *HTTPHandler) authorizeOperator(w http.ResponseWriter, r *http.Request) bool {
	pin := strings.TrimSpace(r.URL.Query().Get("pin"))
	if pin == "" && r.Method != http.MethodGet {
		var body struct {
			Pin string `json:"pin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			pin = strings.TrimSpace(body.Pin)
		}
	}

	if !h.pinMatches(pin) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "PIN inválido"})
		return false
	}
	return true
}

func (h *HTTPHandler) pinMatches(pin string) bool {
	expected := strings.TrimSpace(h.config.Exchange.OperatorPIN)
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(pin)), []byte(expected)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// nullable maps empty config strings to JSON null, as the UI expects.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Package api exposes the exchange core over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/auth"
	"github.com/cexcore/exchange/internal/exchange"
	"github.com/cexcore/exchange/internal/models"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Handler contains dependencies for HTTP handlers
type Handler struct {
	logger       *zap.Logger
	orders       *exchange.OrderService
	wallets      *exchange.WalletService
	transactions *exchange.TransactionService
	auth         *auth.Service
}

// NewHandler creates a new handler
func NewHandler(logger *zap.Logger, orders *exchange.OrderService, wallets *exchange.WalletService, transactions *exchange.TransactionService, authService *auth.Service) *Handler {
	return &Handler{
		logger:       logger,
		orders:       orders,
		wallets:      wallets,
		transactions: transactions,
		auth:         authService,
	}
}

// Routes mounts all endpoints on a router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Post("/wallets", h.CreateWallet)
		r.Get("/wallets", h.GetWallets)
		r.Get("/wallets/{id}", h.GetWallet)
		r.Post("/wallets/{id}/deposit", h.Deposit)
		r.Post("/wallets/{id}/withdraw", h.Withdraw)
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.GetOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Delete("/orders/{id}", h.CancelOrder)
		r.Get("/transactions", h.GetTransactions)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain error kinds to HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindBadRequest:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindNonProcessable:
		status = http.StatusUnprocessableEntity
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindConflict:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// JWTAuthMiddleware verifies bearer tokens and stores the user id in the
// request context
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authorization header required"})
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		userID, err := h.auth.UserFromToken(tokenString)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.auth.Register(r.Context(), auth.RegisterCommand{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		// Hide whether the username exists.
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateWallet creates a new empty wallet
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		Name       string   `json:"name"`
		Currencies []string `json:"currencies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	currencies := make([]models.Currency, 0, len(req.Currencies))
	for _, c := range req.Currencies {
		currencies = append(currencies, models.Currency(c))
	}

	wallet, err := h.wallets.CreateWallet(r.Context(), exchange.CreateWalletCommand{
		UserID:     userID,
		Name:       req.Name,
		Currencies: currencies,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

// GetWallets lists the user's wallets
func (h *Handler) GetWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	wallets, err := h.wallets.GetWallets(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

// GetWallet returns one wallet owned by the user
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid wallet id"})
		return
	}

	wallet, err := h.wallets.GetWallet(r.Context(), userID, walletID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type moneyMovementRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	PaymentID string `json:"payment_id"`
}

func (req moneyMovementRequest) parse() (decimal.Decimal, models.Currency, uuid.UUID, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return decimal.Zero, "", uuid.Nil, apperr.Validation("invalid amount")
	}
	if models.NegativeOrZero(amount) {
		return decimal.Zero, "", uuid.Nil, apperr.Validation("amount must be greater than 0")
	}
	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		return decimal.Zero, "", uuid.Nil, apperr.Validation("invalid payment id")
	}
	return amount, models.Currency(req.Currency), paymentID, nil
}

// Deposit credits a wallet through the payment gateway
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid wallet id"})
		return
	}

	var req moneyMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, currency, paymentID, err := req.parse()
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Ownership check before touching the gateway.
	if _, err := h.wallets.GetWallet(r.Context(), userID, walletID); err != nil {
		h.writeError(w, err)
		return
	}

	wallet, err := h.wallets.Deposit(r.Context(), exchange.DepositCommand{
		WalletID:  walletID,
		Amount:    amount,
		Currency:  currency,
		PaymentID: paymentID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Withdraw debits a wallet through the payment gateway
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid wallet id"})
		return
	}

	var req moneyMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, currency, paymentID, err := req.parse()
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.wallets.GetWallet(r.Context(), userID, walletID); err != nil {
		h.writeError(w, err)
		return
	}

	wallet, err := h.wallets.Withdraw(r.Context(), exchange.WithdrawCommand{
		WalletID:  walletID,
		Amount:    amount,
		Currency:  currency,
		PaymentID: paymentID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// PlaceOrder validates and places an order, which also requests a matching
// pass for its pair
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		WalletID      string `json:"wallet_id"`
		Side          string `json:"side"`
		Amount        string `json:"amount"`
		BaseCurrency  string `json:"base_currency"`
		QuoteCurrency string `json:"quote_currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid wallet id"})
		return
	}
	side := models.Side(req.Side)
	if side != models.SideBuy && side != models.SideSell {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "side must be BUY or SELL"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), exchange.PlaceOrderCommand{
		UserID:        userID,
		WalletID:      walletID,
		Side:          side,
		Amount:        amount,
		BaseCurrency:  models.Currency(req.BaseCurrency),
		QuoteCurrency: models.Currency(req.QuoteCurrency),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrders lists the user's orders
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	orders, err := h.orders.GetOrders(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder returns one order owned by the user
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.orders.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CancelOrder cancels an open order
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	if err := h.orders.CancelOrder(r.Context(), userID, orderID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "order canceled"})
}

// GetTransactions pages the user's audit log
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	txs, total, err := h.transactions.GetTransactions(r.Context(), userID, page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"total":        total,
		"page":         page,
	})
}

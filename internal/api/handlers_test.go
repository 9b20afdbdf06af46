package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/auth"
	"github.com/cexcore/exchange/internal/db"
	"github.com/cexcore/exchange/internal/events"
	"github.com/cexcore/exchange/internal/exchange"
	"github.com/cexcore/exchange/internal/models"
	"github.com/cexcore/exchange/internal/payment"
	"github.com/cexcore/exchange/internal/pricing"
)

type testServer struct {
	router *chi.Mux
	store  *db.Memory
	bus    *events.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := db.NewMemory()
	bus := events.NewBus(logger)

	orderService := exchange.NewOrderService(logger, store.Orders, store.Wallets, bus)
	walletService := exchange.NewWalletService(logger, store.Wallets, payment.NewSimGateway(logger), bus)
	transactionService := exchange.NewTransactionService(logger, store.Transactions)
	transactionService.Register(bus)
	matcher := exchange.NewMatchingEngine(logger, store.Orders, store.Wallets, pricing.NewStaticOracle(), bus)
	matcher.Register(bus)
	authService := auth.NewService(store.Users, []byte("test-secret"))

	handler := NewHandler(logger, orderService, walletService, transactionService, authService)
	router := chi.NewRouter()
	handler.Routes(router)

	return &testServer{router: router, store: store, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

// registerAndLogin creates a user over the API and returns a bearer token.
func (s *testServer) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "password",
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": "password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) createWallet(t *testing.T, token, name string) uuid.UUID {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/wallets", token, map[string]any{
		"name":       name,
		"currencies": []string{"USD", "BTC"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var wallet models.Wallet
	decodeBody(t, rec, &wallet)
	require.NotEqual(t, uuid.Nil, wallet.ID)
	return wallet.ID
}

func (s *testServer) deposit(t *testing.T, token string, walletID uuid.UUID, amount, currency string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/wallets/"+walletID.String()+"/deposit", token, map[string]string{
		"amount":     amount,
		"currency":   currency,
		"payment_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRegisterEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "trader1",
		"password": "password",
		"email":    "trader1@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
	}
	decodeBody(t, rec, &resp)
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, "trader1", resp.Username)

	// Duplicate registration.
	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "trader1",
		"password": "password",
		"email":    "trader1@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterValidationStatus(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "",
		"password": "password",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "trader1")

	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "trader1",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// An unknown user gets the same answer as a wrong password.
	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "nobody",
		"password": "password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/wallets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/wallets", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWalletLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")

	walletID := s.createWallet(t, token, "main")

	// Duplicate name for the same user.
	rec := s.do(t, http.MethodPost, "/wallets", token, map[string]any{"name": "main"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/wallets", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallets []models.Wallet
	decodeBody(t, rec, &wallets)
	require.Len(t, wallets, 1)
	assert.Equal(t, walletID, wallets[0].ID)

	rec = s.do(t, http.MethodGet, "/wallets/"+walletID.String(), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user cannot see it.
	otherToken := s.registerAndLogin(t, "trader2")
	rec = s.do(t, http.MethodGet, "/wallets/"+walletID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepositAndWithdrawEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")

	s.deposit(t, token, walletID, "500", "USD")

	rec := s.do(t, http.MethodPost, "/wallets/"+walletID.String()+"/withdraw", token, map[string]string{
		"amount":     "300",
		"currency":   "USD",
		"payment_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var wallet models.Wallet
	decodeBody(t, rec, &wallet)
	assert.True(t, wallet.Balance(models.USD).Equal(decimal.NewFromInt(200)))
}

func TestDepositDeclinedReturns422(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")

	// The simulated gateway declines amounts between 100 and 200.
	rec := s.do(t, http.MethodPost, "/wallets/"+walletID.String()+"/deposit", token, map[string]string{
		"amount":     "150",
		"currency":   "USD",
		"payment_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWithdrawInsufficientFundsReturns400(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")

	rec := s.do(t, http.MethodPost, "/wallets/"+walletID.String()+"/withdraw", token, map[string]string{
		"amount":     "300",
		"currency":   "USD",
		"payment_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositValidatesPayload(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")

	rec := s.do(t, http.MethodPost, "/wallets/"+walletID.String()+"/deposit", token, map[string]string{
		"amount":     "not-a-number",
		"currency":   "USD",
		"payment_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/wallets/"+walletID.String()+"/deposit", token, map[string]string{
		"amount":     "-5",
		"currency":   "USD",
		"payment_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositIntoForeignWalletIs404(t *testing.T) {
	s := newTestServer(t)
	ownerToken := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, ownerToken, "main")
	otherToken := s.registerAndLogin(t, "trader2")

	rec := s.do(t, http.MethodPost, "/wallets/"+walletID.String()+"/deposit", otherToken, map[string]string{
		"amount":     "500",
		"currency":   "USD",
		"payment_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")
	s.deposit(t, token, walletID, "1000", "USD")

	rec := s.do(t, http.MethodPost, "/orders", token, map[string]string{
		"wallet_id":      walletID.String(),
		"side":           "BUY",
		"amount":         "0.01",
		"base_currency":  "BTC",
		"quote_currency": "USD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order models.Order
	decodeBody(t, rec, &order)
	require.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, models.OrderOpen, order.Status)

	rec = s.do(t, http.MethodGet, "/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []models.Order
	decodeBody(t, rec, &orders)
	require.Len(t, orders, 1)

	rec = s.do(t, http.MethodGet, "/orders/"+order.ID.String(), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/orders/"+order.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Wait for the placement-triggered matching pass before reading the
	// final state.
	s.bus.Drain()
	stored, err := s.store.Orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCanceled, stored.Status)
}

func TestPlaceOrderRejectsBadSide(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")

	rec := s.do(t, http.MethodPost, "/orders", token, map[string]string{
		"wallet_id":      walletID.String(),
		"side":           "HOLD",
		"amount":         "1",
		"base_currency":  "BTC",
		"quote_currency": "USD",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderNotFoundForOtherUser(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")
	s.deposit(t, token, walletID, "1000", "USD")

	rec := s.do(t, http.MethodPost, "/orders", token, map[string]string{
		"wallet_id":      walletID.String(),
		"side":           "BUY",
		"amount":         "0.01",
		"base_currency":  "BTC",
		"quote_currency": "USD",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.Order
	decodeBody(t, rec, &order)

	otherToken := s.registerAndLogin(t, "trader2")
	rec = s.do(t, http.MethodGet, "/orders/"+order.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionsEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "trader1")
	walletID := s.createWallet(t, token, "main")
	s.deposit(t, token, walletID, "500", "USD")
	s.bus.Drain()

	rec := s.do(t, http.MethodGet, "/transactions?page=0&size=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transactions []models.Transaction `json:"transactions"`
		Total        int64                `json:"total"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, models.TransactionDeposit, resp.Transactions[0].Type)
}

func TestMatchingTriggeredByPlacementOverHTTP(t *testing.T) {
	s := newTestServer(t)

	buyToken := s.registerAndLogin(t, "buyer")
	buyWallet := s.createWallet(t, buyToken, "main")
	s.deposit(t, buyToken, buyWallet, "200000", "USD")

	sellToken := s.registerAndLogin(t, "seller")
	sellWallet := s.createWallet(t, sellToken, "main")
	s.deposit(t, sellToken, sellWallet, "3", "BTC")

	rec := s.do(t, http.MethodPost, "/orders", buyToken, map[string]string{
		"wallet_id":      buyWallet.String(),
		"side":           "BUY",
		"amount":         "2",
		"base_currency":  "BTC",
		"quote_currency": "USD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var buyOrder models.Order
	decodeBody(t, rec, &buyOrder)

	rec = s.do(t, http.MethodPost, "/orders", sellToken, map[string]string{
		"wallet_id":      sellWallet.String(),
		"side":           "SELL",
		"amount":         "2",
		"base_currency":  "BTC",
		"quote_currency": "USD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	s.bus.Drain()

	stored, err := s.store.Orders.Get(context.Background(), buyOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFilled, stored.Status)

	wallet, err := s.store.Wallets.Get(context.Background(), buyWallet)
	require.NoError(t, err)
	assert.True(t, wallet.Balance(models.BTC).Equal(decimal.NewFromInt(2)))
	assert.False(t, wallet.Balance(models.USD).Equal(decimal.NewFromInt(200000)))
}

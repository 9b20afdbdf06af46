package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/models"
)

// Memory bundles in-memory implementations of all store contracts. They honor
// the same optimistic-version semantics as the PostgreSQL stores and hand out
// deep copies, so callers observe the isolation the real stores provide.
type Memory struct {
	Orders       *MemoryOrderStore
	Wallets      *MemoryWalletStore
	Transactions *MemoryTransactionStore
	Users        *MemoryUserStore
}

// NewMemory creates an empty in-memory store set
func NewMemory() *Memory {
	return &Memory{
		Orders:       &MemoryOrderStore{orders: map[uuid.UUID]*models.Order{}, seq: map[uuid.UUID]int64{}},
		Wallets:      &MemoryWalletStore{wallets: map[uuid.UUID]*models.Wallet{}},
		Transactions: &MemoryTransactionStore{},
		Users:        &MemoryUserStore{users: map[uuid.UUID]*models.User{}},
	}
}

func copyOrder(o *models.Order) *models.Order {
	clone := *o
	return &clone
}

func copyWallet(w *models.Wallet) *models.Wallet {
	clone := *w
	clone.Balances = make(map[models.Currency]decimal.Decimal, len(w.Balances))
	for currency, balance := range w.Balances {
		clone.Balances[currency] = balance
	}
	return &clone
}

func copyTransaction(t *models.Transaction) *models.Transaction {
	clone := *t
	clone.Metadata = make(map[string]string, len(t.Metadata))
	for k, v := range t.Metadata {
		clone.Metadata[k] = v
	}
	return &clone
}

// MemoryOrderStore is an in-memory OrderStore
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
	seq    map[uuid.UUID]int64 // insertion order, tie-break for equal timestamps
	nextSq int64
}

// Save inserts or version-checks an update, like the PostgreSQL store
func (s *MemoryOrderStore) Save(_ context.Context, order *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == uuid.Nil {
		saved := copyOrder(order)
		saved.ID = uuid.New()
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = time.Now()
		}
		saved.UpdatedAt = saved.CreatedAt
		saved.Version = 0
		s.orders[saved.ID] = saved
		s.nextSq++
		s.seq[saved.ID] = s.nextSq
		return copyOrder(saved), nil
	}

	current, ok := s.orders[order.ID]
	if !ok {
		return nil, apperr.NotFound("order '%s' not found", order.ID)
	}
	if current.Version != order.Version {
		return nil, apperr.ErrVersionConflict
	}
	saved := copyOrder(order)
	saved.CreatedAt = current.CreatedAt
	saved.UpdatedAt = time.Now()
	saved.Version = current.Version + 1
	s.orders[saved.ID] = saved
	return copyOrder(saved), nil
}

// Get fetches an order by id
func (s *MemoryOrderStore) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order '%s' not found", id)
	}
	return copyOrder(order), nil
}

// GetByUser fetches all orders owned by a user
func (s *MemoryOrderStore) GetByUser(_ context.Context, userID uuid.UUID) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []*models.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, copyOrder(order))
		}
	}
	s.sortByCreation(orders)
	return orders, nil
}

// GetOpenByPairAndSide fetches OPEN orders for the pair and side, creation
// time ascending
func (s *MemoryOrderStore) GetOpenByPairAndSide(_ context.Context, base, quote models.Currency, side models.Side) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []*models.Order
	for _, order := range s.orders {
		if order.Status == models.OrderOpen &&
			order.BaseCurrency == base &&
			order.QuoteCurrency == quote &&
			order.Side == side {
			orders = append(orders, copyOrder(order))
		}
	}
	s.sortByCreation(orders)
	return orders, nil
}

func (s *MemoryOrderStore) sortByCreation(orders []*models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return s.seq[orders[i].ID] < s.seq[orders[j].ID]
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

// MemoryWalletStore is an in-memory WalletStore
type MemoryWalletStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
}

// Save inserts or version-checks an update
func (s *MemoryWalletStore) Save(_ context.Context, wallet *models.Wallet) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wallet.ID == uuid.Nil {
		saved := copyWallet(wallet)
		saved.ID = uuid.New()
		saved.CreatedAt = time.Now()
		saved.UpdatedAt = saved.CreatedAt
		saved.Version = 0
		s.wallets[saved.ID] = saved
		return copyWallet(saved), nil
	}

	current, ok := s.wallets[wallet.ID]
	if !ok {
		return nil, apperr.NotFound("wallet '%s' not found", wallet.ID)
	}
	if current.Version != wallet.Version {
		return nil, apperr.ErrVersionConflict
	}
	saved := copyWallet(wallet)
	saved.CreatedAt = current.CreatedAt
	saved.UpdatedAt = time.Now()
	saved.Version = current.Version + 1
	s.wallets[saved.ID] = saved
	return copyWallet(saved), nil
}

// Get fetches a wallet by id
func (s *MemoryWalletStore) Get(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[id]
	if !ok {
		return nil, apperr.NotFound("wallet '%s' not found", id)
	}
	return copyWallet(wallet), nil
}

// GetByUser fetches all wallets owned by a user
func (s *MemoryWalletStore) GetByUser(_ context.Context, userID uuid.UUID) ([]*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wallets []*models.Wallet
	for _, wallet := range s.wallets {
		if wallet.UserID == userID {
			wallets = append(wallets, copyWallet(wallet))
		}
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].CreatedAt.Before(wallets[j].CreatedAt) })
	return wallets, nil
}

// ExistsByUserAndName reports whether the user already has a wallet with the name
func (s *MemoryWalletStore) ExistsByUserAndName(_ context.Context, userID uuid.UUID, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, wallet := range s.wallets {
		if wallet.UserID == userID && wallet.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// MemoryTransactionStore is an in-memory append-only TransactionStore
type MemoryTransactionStore struct {
	mu  sync.Mutex
	txs []*models.Transaction
}

// Append appends one audit record
func (s *MemoryTransactionStore) Append(_ context.Context, tx *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := copyTransaction(tx)
	saved.ID = uuid.New()
	saved.CreatedAt = time.Now()
	s.txs = append(s.txs, saved)
	return copyTransaction(saved), nil
}

// GetByUser pages a user's transactions newest-first
func (s *MemoryTransactionStore) GetByUser(_ context.Context, userID uuid.UUID, page, size int) ([]*models.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []*models.Transaction
	// Walk backwards: the slice is append-only so reverse order is newest-first.
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID == userID {
			owned = append(owned, copyTransaction(s.txs[i]))
		}
	}

	total := int64(len(owned))
	start := page * size
	if start >= len(owned) {
		return nil, total, nil
	}
	end := start + size
	if end > len(owned) {
		end = len(owned)
	}
	return owned[start:end], total, nil
}

// MemoryUserStore is an in-memory user store
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

// Create inserts a new user
func (s *MemoryUserStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	clone.ID = uuid.New()
	clone.CreatedAt = time.Now()
	s.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

// Get fetches a user by id
func (s *MemoryUserStore) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user '%s' not found", id)
	}
	clone := *user
	return &clone, nil
}

// GetByUsername fetches a user by username
func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("user with username '%s' not found", username)
}

// ExistsByUsernameOrEmail reports whether the username or email is taken
func (s *MemoryUserStore) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

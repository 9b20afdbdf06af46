package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/cexcore/exchange/internal/config"
	"github.com/cexcore/exchange/internal/db"
	"github.com/cexcore/exchange/internal/models"
)

// Seed the database with two funded traders and a pair of crossing orders so
// a freshly started server has something to match.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DBConn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	users := database.Users()
	exists, err := users.ExistsByUsernameOrEmail(ctx, "trader1", "trader1@example.com")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to check users: %v\n", err)
		os.Exit(1)
	}
	if exists {
		fmt.Println("database already seeded")
		return
	}

	trader1, err := createTrader(ctx, database, "trader1", "trader1@example.com")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create trader1: %v\n", err)
		os.Exit(1)
	}
	trader2, err := createTrader(ctx, database, "trader2", "trader2@example.com")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create trader2: %v\n", err)
		os.Exit(1)
	}

	wallet1, err := createFundedWallet(ctx, database, trader1.ID, map[models.Currency]decimal.Decimal{
		models.USD: decimal.NewFromInt(500000),
		models.BTC: decimal.NewFromInt(1),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create wallet for trader1: %v\n", err)
		os.Exit(1)
	}
	wallet2, err := createFundedWallet(ctx, database, trader2.ID, map[models.Currency]decimal.Decimal{
		models.USD: decimal.NewFromInt(1000),
		models.BTC: decimal.NewFromInt(5),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create wallet for trader2: %v\n", err)
		os.Exit(1)
	}

	orders := database.Orders()
	buy := &models.Order{
		UserID:        trader1.ID,
		WalletID:      wallet1.ID,
		Side:          models.SideBuy,
		Amount:        decimal.NewFromInt(2),
		BaseCurrency:  models.BTC,
		QuoteCurrency: models.USD,
		Status:        models.OrderOpen,
	}
	if _, err := orders.Save(ctx, buy); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create buy order: %v\n", err)
		os.Exit(1)
	}
	sell := &models.Order{
		UserID:        trader2.ID,
		WalletID:      wallet2.ID,
		Side:          models.SideSell,
		Amount:        decimal.NewFromInt(2),
		BaseCurrency:  models.BTC,
		QuoteCurrency: models.USD,
		Status:        models.OrderOpen,
	}
	if _, err := orders.Save(ctx, sell); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create sell order: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("seeded two traders with funded wallets and crossing BTC-USD orders")
}

func createTrader(ctx context.Context, database *db.DB, username, email string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return database.Users().Create(ctx, &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
	})
}

func createFundedWallet(ctx context.Context, database *db.DB, userID uuid.UUID, balances map[models.Currency]decimal.Decimal) (*models.Wallet, error) {
	return database.Wallets().Save(ctx, &models.Wallet{
		UserID:   userID,
		Name:     "main",
		Balances: balances,
	})
}

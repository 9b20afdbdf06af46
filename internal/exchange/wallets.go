package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/events"
	"github.com/cexcore/exchange/internal/models"
	"github.com/cexcore/exchange/internal/payment"
)

// WalletService creates wallets and moves money in and out of them through
// the payment gateway, bypassing matching.
type WalletService struct {
	logger  *zap.Logger
	wallets WalletStore
	gateway payment.Gateway
	bus     *events.Bus
}

// NewWalletService creates a wallet service
func NewWalletService(logger *zap.Logger, wallets WalletStore, gateway payment.Gateway, bus *events.Bus) *WalletService {
	return &WalletService{logger: logger, wallets: wallets, gateway: gateway, bus: bus}
}

// CreateWallet creates an empty wallet. Wallet names are unique per user.
func (s *WalletService) CreateWallet(ctx context.Context, cmd CreateWalletCommand) (*models.Wallet, error) {
	exists, err := s.wallets.ExistsByUserAndName(ctx, cmd.UserID, cmd.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check wallet name: %w", err)
	}
	if exists {
		return nil, apperr.BadRequest("wallet with name '%s' already exists for user '%s'", cmd.Name, cmd.UserID)
	}

	wallet, err := s.wallets.Save(ctx, cmd.toWallet())
	if err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}
	if wallet.ID == uuid.Nil {
		return nil, apperr.Internal("wallet was not saved")
	}

	s.logger.Info("wallet created",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("user_id", wallet.UserID.String()))
	s.bus.Publish(events.TopicWalletCreated, events.WalletCreated{WalletID: wallet.ID})
	return wallet, nil
}

// GetWallet returns the wallet iff it exists and belongs to the user
func (s *WalletService) GetWallet(ctx context.Context, userID, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.UserID != userID {
		return nil, apperr.NotFound("wallet '%s' not found", walletID)
	}
	return wallet, nil
}

// GetWallets returns all wallets owned by the user
func (s *WalletService) GetWallets(ctx context.Context, userID uuid.UUID) ([]*models.Wallet, error) {
	return s.wallets.GetByUser(ctx, userID)
}

// Deposit collects money from the gateway and credits the wallet
func (s *WalletService) Deposit(ctx context.Context, cmd DepositCommand) (*models.Wallet, error) {
	wallet, err := s.wallets.Get(ctx, cmd.WalletID)
	if err != nil {
		return nil, err
	}

	received, err := s.gateway.ReceiveMoney(ctx, cmd.PaymentID, cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, fmt.Errorf("payment gateway failed: %w", err)
	}
	if !received {
		return nil, apperr.NonProcessable("deposit payment failed")
	}

	wallet.AddBalance(cmd.Currency, cmd.Amount)
	wallet, err = s.wallets.Save(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	s.logger.Info("deposit completed",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("amount", cmd.Amount.String()),
		zap.String("currency", string(cmd.Currency)))
	s.bus.Publish(events.TopicTransactionCreated, events.DepositTransaction(wallet, cmd.Amount, cmd.Currency))
	return wallet, nil
}

// Withdraw debits the wallet after paying out through the gateway
func (s *WalletService) Withdraw(ctx context.Context, cmd WithdrawCommand) (*models.Wallet, error) {
	wallet, err := s.wallets.Get(ctx, cmd.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance(cmd.Currency).LessThan(cmd.Amount) {
		return nil, apperr.BadRequest("insufficient funds in wallet '%s'", cmd.WalletID)
	}

	sent, err := s.gateway.SendMoney(ctx, cmd.PaymentID, cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, fmt.Errorf("payment gateway failed: %w", err)
	}
	if !sent {
		return nil, apperr.NonProcessable("withdrawal payment failed")
	}

	wallet.SubtractBalance(cmd.Currency, cmd.Amount)
	wallet, err = s.wallets.Save(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	s.logger.Info("withdrawal completed",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("amount", cmd.Amount.String()),
		zap.String("currency", string(cmd.Currency)))
	s.bus.Publish(events.TopicTransactionCreated, events.WithdrawalTransaction(wallet, cmd.Amount, cmd.Currency))
	return wallet, nil
}

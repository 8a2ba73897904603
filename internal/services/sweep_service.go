package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/db"
	"github.com/kpizzy812/sol-management/internal/ledger"
	"github.com/kpizzy812/sol-management/utils"
)

// SweepService orchestrates native and token sweeps against the ledger.
// Each asset sweep is an independent operation: a multi-asset sequence that
// fails halfway keeps its earlier receipts and the caller retries the rest.
type SweepService struct {
	db        *gorm.DB
	ledger    ledger.Ledger
	collector *CollectorService
}

func NewSweepService(dbConn *gorm.DB, l ledger.Ledger, collector *CollectorService) *SweepService {
	return &SweepService{db: dbConn, ledger: l, collector: collector}
}

// CollectNative sweeps everything above the configured reserve (and the fee
// margin) from the source account to the collector destination. The signer
// must own the source account. On success the source is left holding exactly
// the reserve.
func (s *SweepService) CollectNative(ctx context.Context, source solana.PublicKey, signer solana.PrivateKey) (*ledger.Receipt, error) {
	if err := RequireSelf(source, signer); err != nil {
		return nil, err
	}
	cfg, err := s.loadConfigured()
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, source)
	if err != nil {
		return nil, err
	}
	fee, err := s.ledger.EstimateFee(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := EligibleAmount(balance, cfg.ReserveLamports, fee)
	if err != nil {
		return nil, err
	}

	dest := solana.MustPublicKeyFromBase58(cfg.Destination)
	receipt, err := s.ledger.TransferNative(ctx, signer, dest, amount)
	if err != nil {
		return nil, err
	}
	s.saveReceipt(receipt)
	utils.DefaultLogger.Info("swept %d lamports from %s to %s (tx %s)",
		amount, source.String(), cfg.Destination, receipt.Signature)
	return receipt, nil
}

// CollectToken sweeps the entire token balance for mint from the source to
// the collector destination's associated token account, creating it when
// missing. Unlike the native sweep no reserve is retained. A zero balance is
// an explicit error, never a silent success, and creates no account.
func (s *SweepService) CollectToken(ctx context.Context, source solana.PublicKey, signer solana.PrivateKey, mint solana.PublicKey) (*ledger.Receipt, error) {
	if err := RequireSelf(source, signer); err != nil {
		return nil, err
	}
	cfg, err := s.loadConfigured()
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.TokenBalance(ctx, source, mint)
	if err != nil {
		return nil, err
	}
	if balance == 0 {
		return nil, ErrZeroBalance
	}

	dest := solana.MustPublicKeyFromBase58(cfg.Destination)
	receipt, err := s.ledger.TransferToken(ctx, signer, mint, dest, balance)
	if err != nil {
		return nil, err
	}
	s.saveReceipt(receipt)
	utils.DefaultLogger.Info("swept %d units of %s from %s to %s (tx %s)",
		balance, mint.String(), source.String(), cfg.Destination, receipt.Signature)
	return receipt, nil
}

// PrepareNativeSweep computes the sweep parameters for an externally-signed
// native sweep. No self-authorization is required here: the external wallet
// enforces it by refusing to sign for an account it does not own.
func (s *SweepService) PrepareNativeSweep(ctx context.Context, source solana.PublicKey) (amount uint64, dest solana.PublicKey, err error) {
	cfg, err := s.loadConfigured()
	if err != nil {
		return 0, solana.PublicKey{}, err
	}
	balance, err := s.ledger.Balance(ctx, source)
	if err != nil {
		return 0, solana.PublicKey{}, err
	}
	fee, err := s.ledger.EstimateFee(ctx)
	if err != nil {
		return 0, solana.PublicKey{}, err
	}
	amount, err = EligibleAmount(balance, cfg.ReserveLamports, fee)
	if err != nil {
		return 0, solana.PublicKey{}, err
	}
	return amount, solana.MustPublicKeyFromBase58(cfg.Destination), nil
}

// PrepareTokenSweep computes the full-balance token sweep parameters for an
// externally-signed sweep.
func (s *SweepService) PrepareTokenSweep(ctx context.Context, source, mint solana.PublicKey) (amount uint64, dest solana.PublicKey, err error) {
	cfg, err := s.loadConfigured()
	if err != nil {
		return 0, solana.PublicKey{}, err
	}
	balance, err := s.ledger.TokenBalance(ctx, source, mint)
	if err != nil {
		return 0, solana.PublicKey{}, err
	}
	if balance == 0 {
		return 0, solana.PublicKey{}, ErrZeroBalance
	}
	return balance, solana.MustPublicKeyFromBase58(cfg.Destination), nil
}

func (s *SweepService) loadConfigured() (*db.CollectorConfig, error) {
	cfg, err := s.collector.Config()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCollectorNotConfigured
		}
		return nil, fmt.Errorf("load collector config: %w", err)
	}
	if err := RequireConfigured(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SweepService) saveReceipt(receipt *ledger.Receipt) {
	record := &db.SweepReceipt{
		Source:      receipt.Source,
		Destination: receipt.Destination,
		Mint:        receipt.Mint,
		Amount:      receipt.Amount,
		TXSignature: receipt.Signature,
	}
	if err := db.SaveSweepReceipt(s.db, record); err != nil {
		// The transfer already applied; a receipt write failure must not fail
		// the sweep.
		utils.DefaultLogger.Error("save sweep receipt for tx %s: %v", receipt.Signature, err)
	}
}

package services

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/kpizzy812/sol-management/internal/db"
)

// Canonical error kinds for the sweep protocol. Callers match with errors.Is;
// message text is lowercase and never matched by string.
var (
	ErrAlreadyInitialized     = errors.New("already initialized")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrCollectorNotConfigured = errors.New("collector not configured")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrZeroBalance            = errors.New("zero balance")
)

// RequireAuthority fails unless the caller is the configured authority.
func RequireAuthority(cfg *db.CollectorConfig, caller solana.PublicKey) error {
	if cfg == nil || cfg.Authority != caller.String() {
		return ErrUnauthorized
	}
	return nil
}

// RequireSelf fails unless the signer owns the account being swept. A user
// releases their own funds only; the collector authority has no say here.
func RequireSelf(owner solana.PublicKey, signer solana.PrivateKey) error {
	if len(signer) == 0 {
		return ErrUnauthorized
	}
	if !signer.PublicKey().Equals(owner) {
		return ErrUnauthorized
	}
	return nil
}

// RequireConfigured fails while the collector destination is still unset.
func RequireConfigured(cfg *db.CollectorConfig) error {
	if cfg == nil || cfg.Destination == "" {
		return ErrCollectorNotConfigured
	}
	return nil
}

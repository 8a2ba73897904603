package services

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/kpizzy812/sol-management/internal/db"
)

func TestRequireAuthority(t *testing.T) {
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	cfg := &db.CollectorConfig{Authority: alice.String()}

	assert.NoError(t, RequireAuthority(cfg, alice))
	assert.ErrorIs(t, RequireAuthority(cfg, bob), ErrUnauthorized)
	assert.ErrorIs(t, RequireAuthority(nil, alice), ErrUnauthorized)
}

func TestRequireSelf(t *testing.T) {
	owner := solana.NewWallet()
	stranger := solana.NewWallet()

	assert.NoError(t, RequireSelf(owner.PublicKey(), owner.PrivateKey))
	assert.ErrorIs(t, RequireSelf(owner.PublicKey(), stranger.PrivateKey), ErrUnauthorized)
	assert.ErrorIs(t, RequireSelf(owner.PublicKey(), nil), ErrUnauthorized)
}

func TestRequireConfigured(t *testing.T) {
	dest := solana.NewWallet().PublicKey()

	assert.ErrorIs(t, RequireConfigured(&db.CollectorConfig{}), ErrCollectorNotConfigured)
	assert.ErrorIs(t, RequireConfigured(nil), ErrCollectorNotConfigured)
	assert.NoError(t, RequireConfigured(&db.CollectorConfig{Destination: dest.String()}))
}

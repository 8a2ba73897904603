package ledger

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransferNative(t *testing.T) {
	l := NewMemoryLedger(5_000)
	ctx := context.Background()
	from := solana.NewWallet()
	to := solana.NewWallet().PublicKey()
	l.SetBalance(from.PublicKey(), 1_000_000)

	receipt, err := l.TransferNative(ctx, from.PrivateKey, to, 400_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(400_000), receipt.Amount)

	// The signer paid amount plus fee; the destination got exactly amount.
	fromBal, _ := l.Balance(ctx, from.PublicKey())
	toBal, _ := l.Balance(ctx, to)
	assert.Equal(t, uint64(595_000), fromBal)
	assert.Equal(t, uint64(400_000), toBal)
}

func TestMemoryTransferNativeAppliesAtCurrentState(t *testing.T) {
	l := NewMemoryLedger(5_000)
	ctx := context.Background()
	from := solana.NewWallet()
	to := solana.NewWallet().PublicKey()
	l.SetBalance(from.PublicKey(), 500_000)

	// A transfer derived from a stale, larger balance snapshot is rejected at
	// apply time; balances stay untouched.
	_, err := l.TransferNative(ctx, from.PrivateKey, to, 600_000)
	assert.ErrorIs(t, err, ErrRejected)
	fromBal, _ := l.Balance(ctx, from.PublicKey())
	assert.Equal(t, uint64(500_000), fromBal)
}

func TestMemoryTransferToken(t *testing.T) {
	l := NewMemoryLedger(5_000)
	ctx := context.Background()
	owner := solana.NewWallet()
	dest := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	l.SetBalance(owner.PublicKey(), 5_000_000)
	l.MintTokens(owner.PublicKey(), mint, 777)

	receipt, err := l.TransferToken(ctx, owner.PrivateKey, mint, dest, 777)
	require.NoError(t, err)
	assert.Equal(t, mint.String(), receipt.Mint)

	srcBal, _ := l.TokenBalance(ctx, owner.PublicKey(), mint)
	destBal, _ := l.TokenBalance(ctx, dest, mint)
	assert.Equal(t, uint64(0), srcBal)
	assert.Equal(t, uint64(777), destBal)
	assert.True(t, l.HasTokenAccount(dest, mint))

	// Rent for the created destination account plus the fee came out of the
	// signer's native balance.
	ownerBal, _ := l.Balance(ctx, owner.PublicKey())
	assert.Equal(t, uint64(5_000_000-5_000-tokenAccountRentLamports), ownerBal)
}

func TestMemoryTransferTokenInsufficientRent(t *testing.T) {
	l := NewMemoryLedger(5_000)
	ctx := context.Background()
	owner := solana.NewWallet()
	dest := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	l.SetBalance(owner.PublicKey(), 1_000) // cannot fund the destination account
	l.MintTokens(owner.PublicKey(), mint, 777)

	_, err := l.TransferToken(ctx, owner.PrivateKey, mint, dest, 777)
	assert.ErrorIs(t, err, ErrRejected)
	srcBal, _ := l.TokenBalance(ctx, owner.PublicKey(), mint)
	assert.Equal(t, uint64(777), srcBal)
	assert.False(t, l.HasTokenAccount(dest, mint))
}

func TestMemoryBuildNativeSweepTx(t *testing.T) {
	l := NewMemoryLedger(0)
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()

	tx, err := l.BuildNativeSweepTx(context.Background(), source, dest, 123)
	require.NoError(t, err)
	require.NotEmpty(t, tx.Message.AccountKeys)
	assert.Equal(t, source, tx.Message.AccountKeys[0], "source pays its own sweep")

	// Unsigned: the signature slot is present but empty.
	_, err = tx.MarshalBinary()
	require.NoError(t, err)
}

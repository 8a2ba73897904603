package ledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrRejected wraps any chain-level rejection (network, consensus,
	// simulation). The ledger applies transactions atomically, so a rejected
	// transfer had no partial effect and is safe to retry.
	ErrRejected = errors.New("ledger rejected")
)

// Receipt describes one applied transfer.
type Receipt struct {
	Signature   string
	Source      string
	Destination string
	Amount      uint64
	Mint        string // empty for native SOL
}

// Ledger is the account/value capability the sweep protocol runs against.
// The Solana implementation talks to an RPC node; the memory implementation
// backs tests and dry-run mode.
type Ledger interface {
	// Balance returns the native balance of owner in lamports.
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)

	// TokenBalance returns the balance held in owner's associated token
	// account for mint, in base units. A missing account reads as 0.
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)

	// EstimateFee returns the fee in lamports the source account must retain
	// to pay for its own sweep transaction.
	EstimateFee(ctx context.Context) (uint64, error)

	// TransferNative moves amount lamports from the signer's account to the
	// destination. The signer pays the transaction fee.
	TransferNative(ctx context.Context, from solana.PrivateKey, to solana.PublicKey, amount uint64) (*Receipt, error)

	// TransferToken moves amount base units of mint from the owner's token
	// account to the destination owner's associated token account, creating
	// the destination account funded by the owner when it does not exist.
	TransferToken(ctx context.Context, owner solana.PrivateKey, mint, to solana.PublicKey, amount uint64) (*Receipt, error)
}

// TxBuilder assembles unsigned sweep transactions for the external-signer
// relay path. The source account signs out of process.
type TxBuilder interface {
	BuildNativeSweepTx(ctx context.Context, source, dest solana.PublicKey, amount uint64) (*solana.Transaction, error)
	BuildTokenSweepTx(ctx context.Context, source, dest, mint solana.PublicKey, amount uint64) (*solana.Transaction, error)
}

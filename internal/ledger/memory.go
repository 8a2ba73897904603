package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Rent-exempt minimum for a token account, charged to the signer when a
// destination token account has to be created.
const tokenAccountRentLamports = 2_039_280

// MemoryLedger is a deterministic in-process ledger used by tests and by
// dry-run mode. Balance checks happen at apply time, so a transfer derived
// from a stale balance snapshot is rejected instead of double-spending.
type MemoryLedger struct {
	mu          sync.Mutex
	fee         uint64
	balances    map[solana.PublicKey]uint64
	tokens      map[solana.PublicKey]map[solana.PublicKey]uint64 // owner -> mint -> amount
	hasAccount  map[solana.PublicKey]map[solana.PublicKey]bool   // owner -> mint -> token account exists
	sigCounter  uint64
	frozenHash  solana.Hash
}

func NewMemoryLedger(fee uint64) *MemoryLedger {
	if fee == 0 {
		fee = defaultFeeLamports
	}
	return &MemoryLedger{
		fee:        fee,
		balances:   make(map[solana.PublicKey]uint64),
		tokens:     make(map[solana.PublicKey]map[solana.PublicKey]uint64),
		hasAccount: make(map[solana.PublicKey]map[solana.PublicKey]bool),
	}
}

// SetBalance seeds a native balance.
func (l *MemoryLedger) SetBalance(owner solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[owner] = lamports
}

// MintTokens seeds a token balance and creates the owner's token account.
func (l *MemoryLedger) MintTokens(owner, mint solana.PublicKey, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureAccountLocked(owner, mint)
	l.tokens[owner][mint] += amount
}

// CreateTokenAccount creates an empty token account for owner under mint.
func (l *MemoryLedger) CreateTokenAccount(owner, mint solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureAccountLocked(owner, mint)
}

// HasTokenAccount reports whether a token account exists for owner under mint.
func (l *MemoryLedger) HasTokenAccount(owner, mint solana.PublicKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasAccount[owner] != nil && l.hasAccount[owner][mint]
}

func (l *MemoryLedger) ensureAccountLocked(owner, mint solana.PublicKey) {
	if l.tokens[owner] == nil {
		l.tokens[owner] = make(map[solana.PublicKey]uint64)
	}
	if l.hasAccount[owner] == nil {
		l.hasAccount[owner] = make(map[solana.PublicKey]bool)
	}
	l.hasAccount[owner][mint] = true
}

func (l *MemoryLedger) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[owner], nil
}

func (l *MemoryLedger) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens[owner] == nil {
		return 0, nil
	}
	return l.tokens[owner][mint], nil
}

func (l *MemoryLedger) EstimateFee(ctx context.Context) (uint64, error) {
	return l.fee, nil
}

func (l *MemoryLedger) TransferNative(ctx context.Context, from solana.PrivateKey, to solana.PublicKey, amount uint64) (*Receipt, error) {
	source := from.PublicKey()

	l.mu.Lock()
	defer l.mu.Unlock()

	total := amount + l.fee
	if total < amount {
		return nil, fmt.Errorf("%w: amount overflow", ErrRejected)
	}
	if l.balances[source] < total {
		return nil, fmt.Errorf("%w: insufficient balance %d for transfer of %d plus fee %d",
			ErrRejected, l.balances[source], amount, l.fee)
	}

	l.balances[source] -= total
	l.balances[to] += amount

	return &Receipt{
		Signature:   l.nextSignatureLocked(),
		Source:      source.String(),
		Destination: to.String(),
		Amount:      amount,
	}, nil
}

func (l *MemoryLedger) TransferToken(ctx context.Context, owner solana.PrivateKey, mint, to solana.PublicKey, amount uint64) (*Receipt, error) {
	source := owner.PublicKey()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tokens[source] == nil || l.tokens[source][mint] < amount {
		return nil, fmt.Errorf("%w: insufficient token balance", ErrRejected)
	}

	// Lazy destination account creation, rent funded by the signer.
	cost := l.fee
	if l.hasAccount[to] == nil || !l.hasAccount[to][mint] {
		cost += tokenAccountRentLamports
	}
	if l.balances[source] < cost {
		return nil, fmt.Errorf("%w: insufficient lamports %d to cover fee and rent %d",
			ErrRejected, l.balances[source], cost)
	}

	l.balances[source] -= cost
	l.ensureAccountLocked(to, mint)
	l.tokens[source][mint] -= amount
	l.tokens[to][mint] += amount

	return &Receipt{
		Signature:   l.nextSignatureLocked(),
		Source:      source.String(),
		Destination: to.String(),
		Amount:      amount,
		Mint:        mint.String(),
	}, nil
}

// BuildNativeSweepTx returns an unsigned transfer with a zero blockhash so
// dry-run relay dispatches still produce a serializable payload.
func (l *MemoryLedger) BuildNativeSweepTx(ctx context.Context, source, dest solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	return solana.NewTransaction(
		[]solana.Instruction{buildSystemTransferInstruction(source, dest, amount)},
		l.frozenHash,
		solana.TransactionPayer(source),
	)
}

func (l *MemoryLedger) BuildTokenSweepTx(ctx context.Context, source, dest, mint solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	sourceATA, _, err := solana.FindAssociatedTokenAddress(source, mint)
	if err != nil {
		return nil, err
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(dest, mint)
	if err != nil {
		return nil, err
	}
	return solana.NewTransaction(
		[]solana.Instruction{buildTokenTransferInstruction(sourceATA, destATA, source, amount)},
		l.frozenHash,
		solana.TransactionPayer(source),
	)
}

func (l *MemoryLedger) nextSignatureLocked() string {
	l.sigCounter++
	return fmt.Sprintf("memledger-%d", l.sigCounter)
}

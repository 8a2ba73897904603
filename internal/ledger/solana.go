package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/kpizzy812/sol-management/utils"
)

// SolanaLedger implements Ledger against a Solana RPC node.
type SolanaLedger struct {
	client      *rpc.Client
	feeLamports uint64 // flat per-transaction fee estimate
	priorityFee uint64 // microlamports per compute unit
	maxRetries  int
	// txMutex 用于保护并发交易发送，避免 RPC 节点限制和 blockhash 过期问题
	txMutex sync.Mutex
}

const (
	defaultFeeLamports  = 5_000
	defaultPriorityFee  = 5_000
	defaultComputeLimit = 100_000
)

func NewSolanaLedger(rpcURL string, feeLamports, priorityFee uint64) *SolanaLedger {
	if feeLamports == 0 {
		feeLamports = defaultFeeLamports
	}
	if priorityFee == 0 {
		priorityFee = defaultPriorityFee
	}
	return &SolanaLedger{
		client:      rpc.New(rpcURL),
		feeLamports: feeLamports,
		priorityFee: priorityFee,
		maxRetries:  3,
	}
}

// Client exposes the underlying RPC client for signature-status polling.
func (l *SolanaLedger) Client() *rpc.Client {
	return l.client
}

func (l *SolanaLedger) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	out, err := l.client.GetBalance(ctx, owner, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

func (l *SolanaLedger) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	out, err := l.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err != nil {
		// 账户不存在时余额视为 0
		if err == rpc.ErrNotFound || strings.Contains(err.Error(), "could not find account") {
			return 0, nil
		}
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	if out.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

func (l *SolanaLedger) EstimateFee(ctx context.Context) (uint64, error) {
	return l.feeLamports, nil
}

func (l *SolanaLedger) TransferNative(ctx context.Context, from solana.PrivateKey, to solana.PublicKey, amount uint64) (*Receipt, error) {
	source := from.PublicKey()
	tx, err := l.BuildNativeSweepTx(ctx, source, to, amount)
	if err != nil {
		return nil, err
	}
	sig, err := l.signAndBroadcast(ctx, tx, from)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		Signature:   sig,
		Source:      source.String(),
		Destination: to.String(),
		Amount:      amount,
	}, nil
}

func (l *SolanaLedger) TransferToken(ctx context.Context, owner solana.PrivateKey, mint, to solana.PublicKey, amount uint64) (*Receipt, error) {
	source := owner.PublicKey()
	tx, err := l.BuildTokenSweepTx(ctx, source, to, mint, amount)
	if err != nil {
		return nil, err
	}
	sig, err := l.signAndBroadcast(ctx, tx, owner)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		Signature:   sig,
		Source:      source.String(),
		Destination: to.String(),
		Amount:      amount,
		Mint:        mint.String(),
	}, nil
}

// BuildNativeSweepTx assembles an unsigned SOL transfer paid by the source.
func (l *SolanaLedger) BuildNativeSweepTx(ctx context.Context, source, dest solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	bh, err := l.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{
		buildComputeUnitLimitInstruction(defaultComputeLimit),
		buildComputeUnitPriceInstruction(l.priorityFee),
		buildSystemTransferInstruction(source, dest, amount),
	}

	tx, err := solana.NewTransaction(
		instructions,
		bh,
		solana.TransactionPayer(source),
	)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return tx, nil
}

// BuildTokenSweepTx assembles an unsigned full-balance SPL transfer. When the
// destination owner has no associated token account for the mint yet, the
// create instruction is prepended, funded by the source.
func (l *SolanaLedger) BuildTokenSweepTx(ctx context.Context, source, dest, mint solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	sourceATA, _, err := solana.FindAssociatedTokenAddress(source, mint)
	if err != nil {
		return nil, err
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(dest, mint)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	instructions = append(instructions,
		buildComputeUnitLimitInstruction(defaultComputeLimit),
		buildComputeUnitPriceInstruction(l.priorityFee),
	)

	exists, err := l.accountExists(ctx, destATA)
	if err != nil {
		return nil, err
	}
	if !exists {
		utils.DefaultLogger.Info("destination token account %s missing, creating", destATA.String())
		instructions = append(instructions, buildCreateATAInstruction(source, destATA, dest, mint))
	}

	instructions = append(instructions, buildTokenTransferInstruction(sourceATA, destATA, source, amount))

	bh, err := l.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(
		instructions,
		bh,
		solana.TransactionPayer(source),
	)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return tx, nil
}

func (l *SolanaLedger) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	out, err := l.client.GetAccountInfo(ctx, account)
	if err != nil {
		if err == rpc.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("get account info: %w", err)
	}
	return out != nil && out.Value != nil, nil
}

// latestBlockhash 获取最新 blockhash（Finalized 失败时回退到 Confirmed）
func (l *SolanaLedger) latestBlockhash(ctx context.Context) (solana.Hash, error) {
	bh, err := l.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		bh, err = l.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
		}
	}
	return bh.Value.Blockhash, nil
}

// signAndBroadcast signs with the provided key and broadcasts under the send
// mutex with bounded retries. A stale blockhash is refreshed and re-signed
// before each retry; an expired blockhash on the first attempt is not
// retryable for an externally-signed payload, so callers that relay unsigned
// transactions never reach this path.
func (l *SolanaLedger) signAndBroadcast(ctx context.Context, tx *solana.Transaction, signer solana.PrivateKey) (string, error) {
	signerPubkey := signer.PublicKey()
	signFn := func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(signerPubkey) {
			return &signer
		}
		return nil
	}

	if _, err := tx.Sign(signFn); err != nil {
		return "", fmt.Errorf("%w: sign failed: %v", ErrRejected, err)
	}

	enc, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("%w: serialize failed: %v", ErrRejected, err)
	}

	l.txMutex.Lock()
	defer l.txMutex.Unlock()

	var sig solana.Signature
	var broadcastErr error
	for i := 0; i < l.maxRetries; i++ {
		if i > 0 {
			// 重试前重新获取 blockhash 并重新签名
			bh, err2 := l.latestBlockhash(ctx)
			if err2 == nil && tx.Message.RecentBlockhash != bh {
				tx.Message.RecentBlockhash = bh
				if _, err2 = tx.Sign(signFn); err2 != nil {
					broadcastErr = err2
					continue
				}
				if enc, err2 = tx.MarshalBinary(); err2 != nil {
					broadcastErr = err2
					continue
				}
			}
		}

		sig, broadcastErr = l.client.SendRawTransaction(ctx, enc)
		if broadcastErr == nil {
			if sig.IsZero() {
				broadcastErr = fmt.Errorf("broadcast returned zero signature")
				continue
			}
			return sig.String(), nil
		}
		utils.DefaultLogger.Warn("broadcast attempt %d/%d failed: %v", i+1, l.maxRetries, broadcastErr)
	}

	return "", fmt.Errorf("%w: %v", ErrRejected, broadcastErr)
}

func buildSystemTransferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	// System Program Transfer 指令格式：
	// instruction index: 2 (uint32, little-endian)
	// lamports: 8 bytes (uint64, little-endian)
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	accounts := solana.AccountMetaSlice{
		{PublicKey: from, IsSigner: true, IsWritable: true},
		{PublicKey: to, IsSigner: false, IsWritable: true},
	}
	return solana.NewInstruction(solana.SystemProgramID, accounts, data)
}

func buildTokenTransferInstruction(source, dest, owner solana.PublicKey, amount uint64) solana.Instruction {
	// Token Transfer 指令格式：
	// instruction discriminator: 3 (Transfer)
	// amount: 8 bytes (uint64, little-endian)
	amountBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(amountBytes, amount)
	data := append([]byte{3}, amountBytes...)

	accounts := solana.AccountMetaSlice{
		{PublicKey: source, IsSigner: false, IsWritable: true}, // Source
		{PublicKey: dest, IsSigner: false, IsWritable: true},   // Destination
		{PublicKey: owner, IsSigner: true, IsWritable: false},  // Owner (authority)
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

func buildCreateATAInstruction(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{})
}

func buildComputeUnitLimitInstruction(computeUnitLimit uint32) solana.Instruction {
	// ComputeBudget SetComputeUnitLimit 指令格式：
	// instruction discriminator: 2, compute_unit_limit: uint32 LE
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:5], computeUnitLimit)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

func buildComputeUnitPriceInstruction(computeUnitPrice uint64) solana.Instruction {
	// ComputeBudget SetComputeUnitPrice 指令格式：
	// instruction discriminator: 3, micro_lamports: uint64 LE
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:9], computeUnitPrice)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

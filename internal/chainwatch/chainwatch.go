// Package chainwatch determines whether a locked deal's expected payment has
// been finalized on-chain (spec §4.6). The target chain is Solana-shaped —
// the spec's own vocabulary ("memo-program instruction", "finalized",
// "block/slot") is Solana's — so this watches a Solana RPC endpoint via
// github.com/gagliardetto/solana-go, the library already used in the pack
// for Solana address handling (Jason-chen-taiwan-arcSignv2/internal/services/address/solana.go).
package chainwatch

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

// memoProgramID is the well-known SPL Memo program address.
var memoProgramID = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")

// lamportsPerSOL is the native-currency decimal scale.
const lamportsPerSOL = 1_000_000_000

// signaturesToScan is N in spec §4.6 step 1.
const signaturesToScan = 100

// toleranceRelative is the 0.01% relative tolerance spec §4.6 step 3 allows
// to absorb floating-point rounding in the upstream amount.
var toleranceRelative = decimal.New(1, -4) // 0.01% == 0.0001

// Watcher implements deal.ChainWatcher against a live Solana RPC endpoint.
type Watcher struct {
	client           *rpc.Client
	receivingAddress solana.PublicKey
	stableTokenMint  solana.PublicKey
	network          string
}

func New(rpcURL, network, receivingAddress, stableTokenMint string) (*Watcher, error) {
	addr, err := solana.PublicKeyFromBase58(receivingAddress)
	if err != nil {
		return nil, fmt.Errorf("chainwatch: invalid receiving address: %w", err)
	}
	var mint solana.PublicKey
	if stableTokenMint != "" {
		mint, err = solana.PublicKeyFromBase58(stableTokenMint)
		if err != nil {
			return nil, fmt.Errorf("chainwatch: invalid stable token mint: %w", err)
		}
	}
	return &Watcher{
		client:           rpc.New(rpcURL),
		receivingAddress: addr,
		stableTokenMint:  mint,
		network:          network,
	}, nil
}

// FindPayment implements spec §4.6's algorithm: scan the most recent
// finalized signatures to the receiving address, find one carrying a
// matching memo and a net credit within 0.01% of expectedAmount, and return
// its PaymentProof. A single retry with jitter covers transient RPC errors
// within the caller's deadline (spec §4.6's 5s default / single retry).
func (w *Watcher) FindPayment(expectedAmount decimal.Decimal, memo, currency string, deadline time.Time) (*model.PaymentProof, error) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	proof, err := w.scanOnce(ctx, expectedAmount, memo, currency)
	if err == nil {
		return proof, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("chainwatch: deadline exceeded: %w", err)
	}

	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		return nil, fmt.Errorf("chainwatch: deadline exceeded during retry backoff")
	}
	return w.scanOnce(ctx, expectedAmount, memo, currency)
}

func (w *Watcher) scanOnce(ctx context.Context, expectedAmount decimal.Decimal, memo, currency string) (*model.PaymentProof, error) {
	limit := signaturesToScan
	sigs, err := w.client.GetSignaturesForAddressWithOpts(ctx, w.receivingAddress, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("chainwatch: list signatures: %w", err)
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue // failed transaction, never a valid settlement
		}
		proof, matched, err := w.inspectTransaction(ctx, sig.Signature, expectedAmount, memo, currency)
		if err != nil {
			continue // a single bad fetch does not abort the scan
		}
		if matched {
			return proof, nil
		}
	}
	return nil, fmt.Errorf("chainwatch: no matching finalized transfer found")
}

func (w *Watcher) inspectTransaction(ctx context.Context, sig solana.Signature, expectedAmount decimal.Decimal, memo, currency string) (*model.PaymentProof, bool, error) {
	maxVersion := uint64(0)
	tx, err := w.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil || tx == nil || tx.Meta == nil {
		return nil, false, fmt.Errorf("chainwatch: fetch transaction %s: %w", sig, err)
	}

	decoded, err := tx.Transaction.GetTransaction()
	if err != nil {
		return nil, false, fmt.Errorf("chainwatch: decode transaction %s: %w", sig, err)
	}

	if !containsMatchingMemo(decoded, memo) {
		return nil, false, nil
	}

	// SOL is the native currency; any other currency is read from the
	// stable token's balance records when a stable token mint is configured.
	stable := currency != "" && currency != "native" && currency != "SOL" && !w.stableTokenMint.IsZero()
	var creditLamports int64
	var sender string
	if stable {
		creditLamports, sender = tokenTransferCredit(tx.Meta, w.receivingAddress.String(), w.stableTokenMint.String())
	} else {
		creditLamports, sender = nativeBalanceCredit(decoded, tx.Meta, w.receivingAddress)
	}
	if creditLamports <= 0 {
		return nil, false, nil
	}

	actual := decimal.New(creditLamports, -9)
	if stable {
		actual = decimal.New(creditLamports, -6) // SPL stablecoins are conventionally 6-decimal
	}
	if !withinTolerance(actual, expectedAmount) {
		return nil, false, nil
	}

	var blockTime time.Time
	if tx.BlockTime != nil {
		blockTime = tx.BlockTime.Time()
	}
	return &model.PaymentProof{
		TransactionHash:  sig.String(),
		BlockOrSlot:      tx.Slot,
		SenderAddress:    sender,
		ConfirmationTime: blockTime,
	}, true, nil
}

func withinTolerance(actual, expected decimal.Decimal) bool {
	if expected.IsZero() {
		return actual.IsZero()
	}
	diff := actual.Sub(expected).Abs()
	relative := diff.Div(expected)
	return relative.LessThanOrEqual(toleranceRelative)
}

// containsMatchingMemo reports whether decoded carries an instruction
// addressed to the SPL memo program whose data equals memo byte-for-byte
// (spec §4.6 step 3).
func containsMatchingMemo(tx *solana.Transaction, memo string) bool {
	for _, ix := range tx.Message.Instructions {
		programKey, err := tx.Message.Program(ix.ProgramIDIndex)
		if err != nil || !programKey.Equals(memoProgramID) {
			continue
		}
		if string(ix.Data) == memo {
			return true
		}
	}
	return false
}

// nativeBalanceCredit derives the net lamport credit to the receiving
// address from the transaction's pre/post balance arrays, and attributes
// the sender to whichever other account's balance decreased the most — a
// documented heuristic (spec §9 Open Question), affecting only the audit
// trail, never settlement correctness.
func nativeBalanceCredit(tx *solana.Transaction, meta *rpc.TransactionMeta, receiving solana.PublicKey) (int64, string) {
	var receivingIdx = -1
	for i, key := range tx.Message.AccountKeys {
		if key.Equals(receiving) {
			receivingIdx = i
			break
		}
	}
	if receivingIdx < 0 || receivingIdx >= len(meta.PreBalances) || receivingIdx >= len(meta.PostBalances) {
		return 0, ""
	}
	credit := int64(meta.PostBalances[receivingIdx]) - int64(meta.PreBalances[receivingIdx])

	var senderIdx = -1
	var largestDebit int64
	for i := range tx.Message.AccountKeys {
		if i == receivingIdx || i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			continue
		}
		debit := int64(meta.PreBalances[i]) - int64(meta.PostBalances[i])
		if debit > largestDebit {
			largestDebit = debit
			senderIdx = i
		}
	}
	sender := ""
	if senderIdx >= 0 {
		sender = tx.Message.AccountKeys[senderIdx].String()
	}
	return credit, sender
}

// tokenTransferCredit reads the net SPL-token balance increase to mint at
// the receiving address from the token-balance-change records, attributing
// the sender from whichever other owner's balance of the same mint decreased.
func tokenTransferCredit(meta *rpc.TransactionMeta, receivingOwner, mint string) (int64, string) {
	pre := make(map[string]uint64)
	for _, tb := range meta.PreTokenBalances {
		if tb.Mint.String() != mint || tb.Owner == nil {
			continue
		}
		amt := parseTokenAmount(tb.UiTokenAmount.Amount)
		pre[tb.Owner.String()] = uint64(amt)
	}

	var credit int64
	var senderOwner string
	var largestDebit int64
	for _, tb := range meta.PostTokenBalances {
		if tb.Mint.String() != mint || tb.Owner == nil {
			continue
		}
		owner := tb.Owner.String()
		amt := parseTokenAmount(tb.UiTokenAmount.Amount)
		delta := amt - int64(pre[owner])
		if owner == receivingOwner {
			credit = delta
			continue
		}
		debit := -delta
		if debit > largestDebit {
			largestDebit = debit
			senderOwner = owner
		}
	}
	return credit, senderOwner
}

// parseTokenAmount parses rpc.UiTokenAmount.Amount, which the solana-go
// client types as a raw decimal string (not a numeric type), into the raw
// integer minor-unit amount. An unparseable amount is treated as zero
// rather than erroring, since a single malformed balance record must not
// abort the whole transaction scan.
func parseTokenAmount(raw string) int64 {
	amt, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0
	}
	return amt.Int64()
}

// Package deal implements the locked-deal repository and lock/check
// protocol (spec §4.5): at-most-once PENDING->PAID settlement, memo
// uniqueness, and reservation-secret confidentiality. The Store type
// is grounded on the CurrentStore()-style KV abstraction used throughout
// core/escrow.go and core/resource_marketplace.go; the shipped
// implementation is an in-memory map with per-row locking, the same shape
// as escrowMu-guarded access in core/escrow.go.
package deal

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"negotiation-engine/internal/model"
)

// ChainWatcher is the collaborator consulted by Check when a deal is still
// PENDING and not expired. It is satisfied by internal/chainwatch.Watcher.
type ChainWatcher interface {
	FindPayment(expectedAmount decimal.Decimal, memo, currency string, deadline time.Time) (*model.PaymentProof, error)
}

// Clock abstracts time.Now for deterministic expiration tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// row is the store's internal representation; all mutation happens under
// mu, mirroring escrowMu's single-lock-per-operation discipline but scoped
// per row so unrelated deals never contend.
type row struct {
	mu   sync.Mutex
	deal model.Deal
}

// Store holds locked deals in memory, keyed by deal id, with a separate
// memo-uniqueness index (a per-store sync.Map, the same two-index shape
// core/resource_marketplace.go uses for its listing+deal maps).
type Store struct {
	cipher  *SecretCipher
	clock   Clock
	ttl     time.Duration
	mu      sync.RWMutex
	rows    map[string]*row
	memoIdx sync.Map // set of reserved memos, enforces uniqueness
}

func NewStore(cipher *SecretCipher, ttl time.Duration, clock Clock) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		cipher: cipher,
		clock:  clock,
		ttl:    ttl,
		rows:   make(map[string]*row),
	}
}

// LockParams are the inputs to Lock beyond the final fiat price.
type LockParams struct {
	CorrelationID  string
	ItemID         string
	ItemName       string
	FinalPriceFiat decimal.Decimal
	FiatCurrency   string
	CryptoCurrency string
	CryptoAmount   decimal.Decimal
	WalletAddress  string
	Network        string
}

// Lock creates a new PENDING deal: draws a unique memo, encrypts a freshly
// generated reservation code, and returns the deal plus the payment
// instructions to hand the caller (spec §4.5 Create).
func (s *Store) Lock(p LockParams) (model.Deal, model.PaymentInstructions, error) {
	reservationCode, err := generateReservationCode()
	if err != nil {
		return model.Deal{}, model.PaymentInstructions{}, fmt.Errorf("deal: generate reservation code: %w", err)
	}
	encrypted, err := s.cipher.Encrypt([]byte(reservationCode))
	if err != nil {
		return model.Deal{}, model.PaymentInstructions{}, fmt.Errorf("deal: encrypt reservation code: %w", err)
	}

	memo, err := s.reserveUniqueMemo()
	if err != nil {
		return model.Deal{}, model.PaymentInstructions{}, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	d := model.Deal{
		ID:              uuid.New().String(),
		CorrelationID:   p.CorrelationID,
		ItemID:          p.ItemID,
		ItemName:        p.ItemName,
		FinalPriceFiat:  p.FinalPriceFiat,
		FiatCurrency:    p.FiatCurrency,
		CryptoCurrency:  p.CryptoCurrency,
		CryptoAmount:    p.CryptoAmount,
		Memo:            memo,
		WalletAddress:   p.WalletAddress,
		Network:         p.Network,
		EncryptedSecret: encrypted,
		Status:          model.DealPending,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
	}

	s.mu.Lock()
	s.rows[d.ID] = &row{deal: d}
	s.mu.Unlock()

	instructions := model.PaymentInstructions{
		DealID:        d.ID,
		WalletAddress: d.WalletAddress,
		CryptoAmount:  d.CryptoAmount,
		Currency:      d.CryptoCurrency,
		Memo:          d.Memo,
		Network:       d.Network,
		ExpiresAt:     d.ExpiresAt,
	}
	return d, instructions, nil
}

// reserveUniqueMemo draws memos until one is not already taken, matching
// spec §4.5 step 2's "retry on the unique-memo constraint".
func (s *Store) reserveUniqueMemo() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		memo, err := generateMemo()
		if err != nil {
			return "", fmt.Errorf("deal: generate memo: %w", err)
		}
		if _, loaded := s.memoIdx.LoadOrStore(memo, struct{}{}); !loaded {
			return memo, nil
		}
	}
	return "", fmt.Errorf("deal: exhausted memo generation attempts")
}

// StatusKind is the outcome of Check.
type StatusKind string

const (
	StatusPending  StatusKind = "PENDING"
	StatusPaid     StatusKind = "PAID"
	StatusExpired  StatusKind = "EXPIRED"
	StatusNotFound StatusKind = "NOT_FOUND"
)

// StatusView is what Check returns to the negotiation/status handler.
type StatusView struct {
	Kind                StatusKind
	Deal                model.Deal
	ReservationPlaintext string // set only when Kind == StatusPaid
	Proof               *model.PaymentProof
	Instructions        model.PaymentInstructions
}

// Check implements spec §4.5's read-and-transition algorithm.
func (s *Store) Check(dealID string) (StatusView, error) {
	s.mu.RLock()
	r, ok := s.rows[dealID]
	s.mu.RUnlock()
	if !ok {
		return StatusView{Kind: StatusNotFound}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.deal.Status {
	case model.DealPaid:
		plaintext, err := s.cipher.Decrypt(r.deal.EncryptedSecret)
		if err != nil {
			return StatusView{}, fmt.Errorf("deal: decrypt reservation code: %w", err)
		}
		return StatusView{
			Kind:                 StatusPaid,
			Deal:                 r.deal,
			ReservationPlaintext: string(plaintext),
			Proof:                proofFromDeal(r.deal),
		}, nil
	case model.DealExpired:
		return StatusView{Kind: StatusExpired, Deal: r.deal}, nil
	}

	// PENDING.
	now := s.clock.Now()
	if now.After(r.deal.ExpiresAt) {
		r.deal.Status = model.DealExpired
		return StatusView{Kind: StatusExpired, Deal: r.deal}, nil
	}

	return StatusView{
		Kind: StatusPending,
		Deal: r.deal,
		Instructions: model.PaymentInstructions{
			DealID:        r.deal.ID,
			WalletAddress: r.deal.WalletAddress,
			CryptoAmount:  r.deal.CryptoAmount,
			Currency:      r.deal.CryptoCurrency,
			Memo:          r.deal.Memo,
			Network:       r.deal.Network,
			ExpiresAt:     r.deal.ExpiresAt,
		},
	}, nil
}

// ApplyProof performs the conditional PENDING->PAID update described in
// spec §4.5 step 4: it re-checks status == PENDING immediately before
// writing PAID, so concurrent callers racing on the same deal's proof never
// double-credit it (tested under concurrent ApplyProof callers in store_test.go).
func (s *Store) ApplyProof(dealID string, proof model.PaymentProof) (StatusView, error) {
	s.mu.RLock()
	r, ok := s.rows[dealID]
	s.mu.RUnlock()
	if !ok {
		return StatusView{Kind: StatusNotFound}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deal.Status != model.DealPending {
		// Lost the race, or already resolved by expiry/another caller:
		// return the current view instead of erroring.
		return s.viewLocked(r)
	}

	paidAt := proof.ConfirmationTime
	r.deal.Status = model.DealPaid
	r.deal.PaidAt = &paidAt
	r.deal.TransactionHash = proof.TransactionHash
	r.deal.BlockOrSlot = proof.BlockOrSlot
	r.deal.FromAddress = proof.SenderAddress

	return s.viewLocked(r)
}

// viewLocked must be called with r.mu held.
func (s *Store) viewLocked(r *row) (StatusView, error) {
	switch r.deal.Status {
	case model.DealPaid:
		plaintext, err := s.cipher.Decrypt(r.deal.EncryptedSecret)
		if err != nil {
			return StatusView{}, fmt.Errorf("deal: decrypt reservation code: %w", err)
		}
		return StatusView{
			Kind:                 StatusPaid,
			Deal:                 r.deal,
			ReservationPlaintext: string(plaintext),
			Proof:                proofFromDeal(r.deal),
		}, nil
	case model.DealExpired:
		return StatusView{Kind: StatusExpired, Deal: r.deal}, nil
	default:
		return StatusView{Kind: StatusPending, Deal: r.deal}, nil
	}
}

func proofFromDeal(d model.Deal) *model.PaymentProof {
	if d.PaidAt == nil {
		return nil
	}
	return &model.PaymentProof{
		TransactionHash:  d.TransactionHash,
		BlockOrSlot:      d.BlockOrSlot,
		SenderAddress:    d.FromAddress,
		ConfirmationTime: *d.PaidAt,
	}
}

// generateReservationCode matches the "RES-" + base64 of >=48 bits scheme
// used by the negotiation handler's own no-crypto reservation codes
// (internal/engine.Negotiate), so both code paths look identical to a caller.
func generateReservationCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "RES-" + base64.RawURLEncoding.EncodeToString(buf), nil
}

func generateMemo() (string, error) {
	buf := make([]byte, 6) // 48 bits of entropy, per spec §4.5 step 2
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus is the lifecycle state of a locked deal. Transitions are
// monotonic: PENDING -> {PAID, EXPIRED}, never the reverse.
type DealStatus string

const (
	DealPending DealStatus = "PENDING"
	DealPaid    DealStatus = "PAID"
	DealExpired DealStatus = "EXPIRED"
)

// Deal is a locked settlement record created at Accepted-with-lock time. It
// is mutated only by the chain watcher's proof-confirmation path or by the
// expiration check in Store.Check, and it is never deleted.
type Deal struct {
	ID              string
	CorrelationID   string
	ItemID          string
	ItemName        string
	FinalPriceFiat  decimal.Decimal
	FiatCurrency    string
	CryptoCurrency  string
	CryptoAmount    decimal.Decimal
	Memo            string
	WalletAddress   string
	Network         string
	EncryptedSecret []byte
	Status          DealStatus
	CreatedAt       time.Time
	ExpiresAt       time.Time
	PaidAt          *time.Time
	TransactionHash string
	BlockOrSlot     uint64
	FromAddress     string
}

// PaymentProof is produced by the chain watcher and attached to a Deal on
// its first PENDING->PAID transition.
type PaymentProof struct {
	TransactionHash   string
	BlockOrSlot       uint64
	SenderAddress     string
	ConfirmationTime  time.Time
}

// PaymentInstructions is returned to the caller when a bid is accepted and
// locked behind a payment.
type PaymentInstructions struct {
	DealID        string
	WalletAddress string
	CryptoAmount  decimal.Decimal
	Currency      string
	Memo          string
	Network       string
	ExpiresAt     time.Time
}

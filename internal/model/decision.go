package model

import "github.com/shopspring/decimal"

// Decision is the sum type produced by a PricingStrategy: exactly one of
// Accepted, Countered, Rejected, or UiRequired. It is modeled as an
// interface with an unexported marker method so no other type outside this
// package can satisfy it by accident, keeping the union closed.
type Decision interface {
	isDecision()
	Kind() string
}

// Accepted means the bid clears the floor (and any strategy-specific
// acceptance rule). Reveal is attached by the negotiation handler, not the
// strategy, since it depends on the crypto-settlement toggle.
type Accepted struct {
	FinalPrice decimal.Decimal
	Reveal     Reveal
}

func (Accepted) isDecision()    {}
func (Accepted) Kind() string   { return "accepted" }

// Countered means the bid was below floor (or otherwise strategy-rejected)
// and the engine proposes a different price.
type Countered struct {
	ProposedPrice decimal.Decimal
	ReasonCode    string
	Message       string
}

func (Countered) isDecision()  {}
func (Countered) Kind() string { return "countered" }

// Rejected means no counter-offer is made (e.g. item not found).
type Rejected struct {
	ReasonCode string
}

func (Rejected) isDecision()  {}
func (Rejected) Kind() string { return "rejected" }

// UiRequired asks the caller to render a confirmation step before the
// negotiation can proceed (e.g. a high-value bid).
type UiRequired struct {
	TemplateID string
	Context    map[string]any
}

func (UiRequired) isDecision()  {}
func (UiRequired) Kind() string { return "ui_required" }

// Reveal is the settlement artifact attached to an Accepted decision: either
// an immediate ReservationCode or a deferred PaymentLock. Like Decision, it
// is a closed sum type.
type Reveal interface {
	isReveal()
	Kind() string
}

// ReservationCode is returned immediately when crypto settlement is off.
type ReservationCode struct {
	Code string
}

func (ReservationCode) isReveal()    {}
func (ReservationCode) Kind() string { return "reservation_code" }

// PaymentLock is returned when crypto settlement is on: the caller must pay
// the locked deal before the reservation code is revealed.
type PaymentLock struct {
	DealID string
}

func (PaymentLock) isReveal()    {}
func (PaymentLock) Kind() string { return "payment_lock" }

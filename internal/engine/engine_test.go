package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"negotiation-engine/internal/catalog"
	"negotiation-engine/internal/deal"
	"negotiation-engine/internal/model"
	"negotiation-engine/internal/obslog"
	"negotiation-engine/internal/priceconv"
	"negotiation-engine/internal/strategy"
)

func testCatalog(t *testing.T) *catalog.MemStore {
	t.Helper()
	s := catalog.NewMemStore()
	s.Put(model.Item{
		ID:         "item-1",
		Name:       "Widget",
		BasePrice:  decimal.NewFromInt(200),
		FloorPrice: decimal.NewFromInt(150),
		Currency:   "USD",
		Active:     true,
		UpdatedAt:  time.Now().UTC(),
	})
	return s
}

func testLogger(t *testing.T) *obslog.EngineLogger {
	t.Helper()
	l, err := obslog.NewEngineLogger(false)
	if err != nil {
		t.Fatalf("NewEngineLogger: %v", err)
	}
	return l
}

func ruleStrategy(t *testing.T) strategy.Strategy {
	t.Helper()
	s, err := strategy.Build("rule", map[string]string{"high_value_threshold": "100000"})
	if err != nil {
		t.Fatalf("build strategy: %v", err)
	}
	return s
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type stubWatcher struct {
	proof *model.PaymentProof
	err   error
}

func (w *stubWatcher) FindPayment(expectedAmount decimal.Decimal, memo, currency string, deadline time.Time) (*model.PaymentProof, error) {
	return w.proof, w.err
}

func TestNegotiateAcceptsWithinFloorAndBaseNoCrypto(t *testing.T) {
	e := New(testCatalog(t), ruleStrategy(t), nil, nil, nil, testLogger(t), obslog.NewMetrics(), Options{CryptoEnabled: false})

	decision, err := e.Negotiate(context.Background(), model.NegotiationRequest{
		CorrelationID: "corr-1",
		IdentityID:    "did:key:abc",
		ItemID:        "item-1",
		BidAmount:     decimal.NewFromInt(175),
		CurrencyCode:  "USD",
	})
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	accepted, ok := decision.(model.Accepted)
	if !ok {
		t.Fatalf("expected Accepted, got %T", decision)
	}
	rc, ok := accepted.Reveal.(model.ReservationCode)
	if !ok || rc.Code == "" {
		t.Fatalf("expected a non-empty reservation code, got %+v", accepted.Reveal)
	}
}

func TestNegotiateRejectsUnknownItem(t *testing.T) {
	e := New(testCatalog(t), ruleStrategy(t), nil, nil, nil, testLogger(t), obslog.NewMetrics(), Options{})

	decision, err := e.Negotiate(context.Background(), model.NegotiationRequest{
		CorrelationID: "corr-1",
		ItemID:        "does-not-exist",
		BidAmount:     decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	rejected, ok := decision.(model.Rejected)
	if !ok || rejected.ReasonCode != "ITEM_NOT_FOUND" {
		t.Fatalf("expected Rejected{ITEM_NOT_FOUND}, got %+v", decision)
	}
}

func TestNegotiateCountersBelowFloor(t *testing.T) {
	e := New(testCatalog(t), ruleStrategy(t), nil, nil, nil, testLogger(t), obslog.NewMetrics(), Options{})

	decision, err := e.Negotiate(context.Background(), model.NegotiationRequest{
		CorrelationID: "corr-1",
		ItemID:        "item-1",
		BidAmount:     decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	countered, ok := decision.(model.Countered)
	if !ok || countered.ReasonCode != "BELOW_FLOOR" {
		t.Fatalf("expected Countered{BELOW_FLOOR}, got %+v", decision)
	}
}

func TestNegotiateLocksDealWhenCryptoEnabled(t *testing.T) {
	cipher, err := deal.NewSecretCipher(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewSecretCipher: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := deal.NewStore(cipher, time.Hour, clock)
	oracle := priceconv.NewFixedRateOracle(decimal.NewFromInt(100), decimal.NewFromInt(1), "SOL", "USDC")
	converter := priceconv.NewConverter(oracle)

	e := New(testCatalog(t), ruleStrategy(t), store, converter, &stubWatcher{}, testLogger(t), obslog.NewMetrics(), Options{
		CryptoEnabled:   true,
		CryptoCurrency:  "SOL",
		ReceivingWallet: "wallet-addr",
		Network:         "devnet",
		ChainDeadline:   time.Second,
	})

	decision, err := e.Negotiate(context.Background(), model.NegotiationRequest{
		CorrelationID: "corr-1",
		ItemID:        "item-1",
		BidAmount:     decimal.NewFromInt(175),
	})
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	accepted, ok := decision.(model.Accepted)
	if !ok {
		t.Fatalf("expected Accepted, got %T", decision)
	}
	lock, ok := accepted.Reveal.(model.PaymentLock)
	if !ok || lock.DealID == "" {
		t.Fatalf("expected a non-empty PaymentLock, got %+v", accepted.Reveal)
	}

	status, err := e.CheckDealStatus("corr-2", lock.DealID)
	if err != nil {
		t.Fatalf("CheckDealStatus: %v", err)
	}
	if status.Status != string(deal.StatusPending) {
		t.Fatalf("expected PENDING before a proof is found, got %s", status.Status)
	}
}

func TestCheckDealStatusTransitionsToPaidOnProof(t *testing.T) {
	cipher, err := deal.NewSecretCipher(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewSecretCipher: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := deal.NewStore(cipher, time.Hour, clock)
	oracle := priceconv.NewFixedRateOracle(decimal.NewFromInt(100), decimal.NewFromInt(1), "SOL", "USDC")
	converter := priceconv.NewConverter(oracle)
	proof := &model.PaymentProof{
		TransactionHash:  "tx-hash",
		SenderAddress:    "sender",
		ConfirmationTime: clock.t,
	}

	e := New(testCatalog(t), ruleStrategy(t), store, converter, &stubWatcher{proof: proof}, testLogger(t), obslog.NewMetrics(), Options{
		CryptoEnabled:   true,
		CryptoCurrency:  "SOL",
		ReceivingWallet: "wallet-addr",
		Network:         "devnet",
		ChainDeadline:   time.Second,
	})

	decision, err := e.Negotiate(context.Background(), model.NegotiationRequest{
		CorrelationID: "corr-1",
		ItemID:        "item-1",
		BidAmount:     decimal.NewFromInt(175),
	})
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	lock := decision.(model.Accepted).Reveal.(model.PaymentLock)

	status, err := e.CheckDealStatus("corr-2", lock.DealID)
	if err != nil {
		t.Fatalf("CheckDealStatus: %v", err)
	}
	if status.Status != string(deal.StatusPaid) {
		t.Fatalf("expected PAID, got %s", status.Status)
	}
	if status.ReservationCode == "" {
		t.Fatalf("expected a decrypted reservation code on PAID")
	}
	if status.Proof == nil || status.Proof.TransactionHash != "tx-hash" {
		t.Fatalf("expected the proof to be surfaced, got %+v", status.Proof)
	}
}

func TestCheckDealStatusRejectsWhenCryptoDisabled(t *testing.T) {
	e := New(testCatalog(t), ruleStrategy(t), nil, nil, nil, testLogger(t), obslog.NewMetrics(), Options{CryptoEnabled: false})

	if _, err := e.CheckDealStatus("corr-1", "deal-1"); err == nil {
		t.Fatalf("expected an error when crypto settlement is disabled")
	}
}

package authsig

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"negotiation-engine/internal/apperr"
)

func signedEnvelope(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, ts int64, body []byte) Envelope {
	t.Helper()
	bodyHash, err := canonicalBodyHash(body)
	if err != nil {
		t.Fatalf("canonicalBodyHash: %v", err)
	}
	msg := canonicalMessage("POST", "/v1/negotiate", ts, bodyHash)
	sig := ed25519.Sign(priv, msg)
	return Envelope{
		Method:        "POST",
		Path:          "/v1/negotiate",
		TimestampUnix: ts,
		Body:          body,
		IdentityID:    "did:key:" + hex.EncodeToString(pub),
		SignatureHex:  hex.EncodeToString(sig),
	}
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))
	v := New(mock)

	env := signedEnvelope(t, pub, priv, 1700000000, []byte(`{"item_id":"a","bid_amount":"1.00"}`))
	id, err := v.Verify(env, "corr-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id.ID != env.IdentityID {
		t.Fatalf("identity id mismatch: got %s want %s", id.ID, env.IdentityID)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))
	v := New(mock)

	env := signedEnvelope(t, pub, priv, 1700000000-61, []byte(`{}`))
	_, err := v.Verify(env, "corr-2")
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.AuthExpired {
		t.Fatalf("expected AUTH_EXPIRED, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))
	v := New(mock)

	env := signedEnvelope(t, pub, priv, 1700000000, []byte(`{"bid_amount":"1.00"}`))
	env.Body = []byte(`{"bid_amount":"999.00"}`)
	_, err := v.Verify(env, "corr-3")
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.AuthBadSig {
		t.Fatalf("expected AUTH_BAD_SIG, got %v", err)
	}
}

func TestCanonicalBodyHashIgnoresKeyOrderAndWhitespace(t *testing.T) {
	h1, err := canonicalBodyHash([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, err := canonicalBodyHash([]byte(`{ "b": 2,   "a": 1 }`))
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected matching hashes for reordered json, got %s vs %s", h1, h2)
	}
}

func TestCanonicalBodyHashOfEmptyBodyIsHashOfEmptyString(t *testing.T) {
	got, err := canonicalBodyHash(nil)
	if err != nil {
		t.Fatalf("canonicalBodyHash: %v", err)
	}
	sum := sha256.Sum256(nil)
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Fatalf("expected hash of empty byte string %s, got %s", want, got)
	}
}

func TestVerifyAcceptsValidSignatureOverEmptyBody(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))
	v := New(mock)

	method := "POST"
	path := "/v1/deals/11111111-1111-1111-1111-111111111111/status"
	sig, err := Sign(priv, method, path, 1700000000, nil)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	env := Envelope{
		Method:        method,
		Path:          path,
		TimestampUnix: 1700000000,
		Body:          nil,
		IdentityID:    "did:key:" + hex.EncodeToString(pub),
		SignatureHex:  sig,
	}

	if _, err := v.Verify(env, "corr-5"); err != nil {
		t.Fatalf("expected success verifying empty-body request, got %v", err)
	}
}

func TestVerifyRejectsMalformedIdentity(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))
	v := New(mock)

	env := Envelope{
		Method:        "POST",
		Path:          "/v1/negotiate",
		TimestampUnix: 1700000000,
		Body:          []byte(`{}`),
		IdentityID:    "not-a-did",
		SignatureHex:  hex.EncodeToString(make([]byte, ed25519.SignatureSize)),
	}
	_, err := v.Verify(env, "corr-4")
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.AuthMalformed {
		t.Fatalf("expected AUTH_MALFORMED, got %v", err)
	}
}

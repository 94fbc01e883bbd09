package walletkeys

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"
)

func TestNewRandomWalletRoundTripsThroughMnemonic(t *testing.T) {
	w1, mnemonic, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet: %v", err)
	}
	w2, err := FromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	if w1.Address() != w2.Address() {
		t.Fatalf("address mismatch after mnemonic round trip: %s vs %s", w1.Address(), w2.Address())
	}
}

func TestAddressIsBase58EncodedPublicKey(t *testing.T) {
	w, _, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet: %v", err)
	}
	if len(w.Address()) < 32 {
		t.Fatalf("unexpectedly short address: %q", w.Address())
	}
	decoded, err := base58.Decode(w.Address())
	if err != nil {
		t.Fatalf("address is not valid base58: %v", err)
	}
	if !bytes.Equal(decoded, w.PublicKey) {
		t.Fatalf("address does not decode to the public key")
	}
}

func TestFromBase58PrivateKeyRejectsWrongLength(t *testing.T) {
	if _, err := FromBase58PrivateKey("not-a-valid-key"); err == nil {
		t.Fatalf("expected error for malformed private key")
	}
	// 32 '1' digits decode to 32 zero bytes: valid base58, wrong length.
	if _, err := FromBase58PrivateKey("11111111111111111111111111111111"); err == nil {
		t.Fatalf("expected error for a 32-byte key")
	}
}

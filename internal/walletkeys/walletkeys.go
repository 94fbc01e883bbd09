// Package walletkeys generates and loads the engine's receiving wallet: the
// address that locked-deal payment instructions quote and the chain watcher
// monitors. It is a materially adapted descendant of core/wallet.go's
// Ed25519 keygen — kept are the bip39 mnemonic generation and Ed25519
// keypair derivation; changed is address derivation, which here is the
// Solana convention (the base58 encoding of the raw public key) rather than
// the teacher's own SHA-256/RIPEMD-160 20-byte scheme, since the chain
// watcher targets a Solana-style RPC (spec §4.6).
package walletkeys

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	bip39 "github.com/tyler-smith/go-bip39"
)

// Wallet holds the engine's receiving key material in memory only; callers
// are responsible for handling PrivateKey as a secret.
type Wallet struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// Address is the base58-encoded public key, the same string shape a Solana
// wallet address takes.
func (w *Wallet) Address() string {
	return base58.Encode(w.PublicKey)
}

// NewRandomWallet generates a fresh 24-word mnemonic and derives a wallet
// from it, mirroring core/wallet.go's NewRandomWallet but over a direct
// Ed25519 seed rather than SLIP-0010 HD derivation: the engine needs exactly
// one receiving key, not a derivation tree.
func NewRandomWallet() (*Wallet, string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, "", fmt.Errorf("walletkeys: entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("walletkeys: mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := FromSeed(seed[:32])
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// FromMnemonic reconstructs a wallet from a previously generated mnemonic.
func FromMnemonic(mnemonic, passphrase string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("walletkeys: invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return FromSeed(seed[:32])
}

// FromSeed derives an Ed25519 keypair directly from a 32-byte seed.
func FromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("walletkeys: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{PrivateKey: priv, PublicKey: pub}, nil
}

// EncodeBase58PrivateKey is the inverse of FromBase58PrivateKey, for admin
// tooling that generates a wallet and needs to print it in the
// receiving_wallet_key config format.
func EncodeBase58PrivateKey(w *Wallet) string {
	return base58.Encode(w.PrivateKey)
}

// FromBase58PrivateKey loads a wallet from a base58-encoded 64-byte Ed25519
// private key (seed+pub), the config.Options.ReceivingWalletKey format
// (spec §6.3).
func FromBase58PrivateKey(encoded string) (*Wallet, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("walletkeys: decode base58 key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("walletkeys: private key must decode to %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{PrivateKey: priv, PublicKey: pub}, nil
}

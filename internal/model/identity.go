// Package model holds the shared data types that cross package boundaries:
// identities, catalog items, negotiation requests, the Decision/Reveal sum
// types, and the settlement Deal record. Keeping these in one leaf package
// avoids import cycles between strategy, deal, catalog and the engine.
package model

import (
	"encoding/hex"
	"fmt"
	"regexp"
)

// didPattern matches the caller-identity format required by the request
// authenticator: did:key:<64 hex chars> (a raw 32-byte Ed25519 public key).
var didPattern = regexp.MustCompile(`^did:key:[0-9a-fA-F]{64}$`)

// Identity is a caller verified by the request authenticator.
type Identity struct {
	ID         string
	PublicKey  [32]byte
	Reputation *float64 // nil when the caller supplied none
}

// ParseIdentityID validates the did:key:<hex> format and returns the decoded
// 32-byte public key. It does not verify any signature.
func ParseIdentityID(id string) ([32]byte, error) {
	var pub [32]byte
	if !didPattern.MatchString(id) {
		return pub, fmt.Errorf("model: malformed identity id %q", id)
	}
	raw, err := hex.DecodeString(id[len("did:key:"):])
	if err != nil || len(raw) != 32 {
		return pub, fmt.Errorf("model: identity id does not decode to a 32-byte key")
	}
	copy(pub[:], raw)
	return pub, nil
}

// Package authsig verifies the Ed25519-signed envelope every negotiate
// request must carry at the edge (spec §4.1). It depends only on crypto,
// encoding and time concerns, the way core/wallet.go stays at the lowest
// dependency tier in the teacher codebase.
package authsig

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"negotiation-engine/internal/apperr"
	"negotiation-engine/internal/model"
)

// Window is the maximum allowed drift between a request's timestamp and the
// verifier's clock, in either direction.
const Window = 60 * time.Second

// Envelope is the set of caller-supplied fields needed to verify a request.
type Envelope struct {
	Method        string
	Path          string
	TimestampUnix int64
	Body          []byte
	IdentityID    string
	SignatureHex  string
}

// Verifier checks an Envelope against its claimed identity. It is
// constructed with a clock.Clock so the timestamp window is deterministic in
// tests (benbjohnson/clock's mock clock), mirroring how the teacher pack
// carries that dependency for exactly this purpose.
type Verifier struct {
	clock clock.Clock
}

func New(c clock.Clock) *Verifier {
	if c == nil {
		c = clock.New()
	}
	return &Verifier{clock: c}
}

// Verify validates the timestamp window, decodes the identity's public key,
// canonicalizes the body, and checks the Ed25519 signature over the
// unseparated concatenation "METHOD"+"PATH"+"TIMESTAMP"+"BODY_HASH". It
// returns the verified Identity or a typed *apperr.Error naming which of
// the four failure kinds occurred.
func (v *Verifier) Verify(env Envelope, correlationID string) (model.Identity, error) {
	if env.SignatureHex == "" || env.IdentityID == "" {
		return model.Identity{}, apperr.New(apperr.AuthMissing, correlationID, "missing identity or signature")
	}

	now := v.clock.Now().UTC()
	ts := time.Unix(env.TimestampUnix, 0).UTC()
	drift := now.Sub(ts)
	if drift < 0 {
		drift = -drift
	}
	if drift > Window {
		return model.Identity{}, apperr.New(apperr.AuthExpired, correlationID, "timestamp outside allowed window")
	}

	pub, err := model.ParseIdentityID(env.IdentityID)
	if err != nil {
		return model.Identity{}, apperr.Wrap(apperr.AuthMalformed, correlationID, "malformed identity id", err)
	}

	sig, err := hex.DecodeString(env.SignatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return model.Identity{}, apperr.New(apperr.AuthMalformed, correlationID, "malformed signature encoding")
	}

	bodyHash, err := canonicalBodyHash(env.Body)
	if err != nil {
		return model.Identity{}, apperr.Wrap(apperr.AuthMalformed, correlationID, "malformed request body", err)
	}

	msg := canonicalMessage(env.Method, env.Path, env.TimestampUnix, bodyHash)
	if !ed25519.Verify(pub[:], msg, sig) {
		return model.Identity{}, apperr.New(apperr.AuthBadSig, correlationID, "signature verification failed")
	}

	return model.Identity{ID: env.IdentityID, PublicKey: pub}, nil
}

// Sign produces the hex-encoded Ed25519 signature a caller must attach as
// X-Signature for the given method/path/timestamp/body. It is the inverse of
// Verify and exists so callers (and this package's own tests) can produce a
// conforming envelope without duplicating the canonicalization logic.
func Sign(priv ed25519.PrivateKey, method, path string, ts int64, body []byte) (string, error) {
	bodyHash, err := canonicalBodyHash(body)
	if err != nil {
		return "", fmt.Errorf("authsig: sign: %w", err)
	}
	msg := canonicalMessage(method, path, ts, bodyHash)
	sig := ed25519.Sign(priv, msg)
	return hex.EncodeToString(sig), nil
}

// canonicalMessage is the literal, unseparated concatenation
// METHOD ∥ PATH ∥ TIMESTAMP ∥ BODY_HASH required by spec §4.1: no
// delimiters between fields, BODY_HASH already lowercase hex.
func canonicalMessage(method, path string, ts int64, bodyHashHex string) []byte {
	return []byte(method + path + strconv.FormatInt(ts, 10) + bodyHashHex)
}

// canonicalBodyHash returns the lowercase hex SHA-256 of the canonical body
// encoding (spec §4.1): the empty byte string for an empty body, otherwise
// the body re-marshaled with object keys sorted at every nesting level (so
// two byte-different but semantically identical JSON bodies — reordered
// keys, insignificant whitespace — hash identically).
func canonicalBodyHash(body []byte) (string, error) {
	if len(body) == 0 {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("authsig: body is not valid json: %w", err)
	}
	canon, err := canonicalizeJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalizeJSON(v any) ([]byte, error) {
	sorted := sortKeys(v)
	return json.Marshal(sorted)
}

// sortKeys recursively rewrites map[string]any values into an ordered
// representation by rebuilding them through encoding/json's own map
// marshaling, which already sorts keys; this walks nested maps/slices so
// every level gets the same treatment, not just the top one.
func sortKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = sortKeys(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return v
	}
}

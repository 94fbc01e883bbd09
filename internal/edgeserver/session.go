package edgeserver

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// sessionToken is an opaque per-response token (spec §6.1's session_token);
// it carries no state of its own, it is just an identifier a client can
// quote back in support requests.
func sessionToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("edgeserver: generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

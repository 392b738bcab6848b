// Package identity generates the 20-byte peer-id this client presents
// to trackers and peers. Spec §6 flags the source's fixed literal
// ("1337cafebabedeadbeef") as something a real implementation should
// randomize per process; this package does that with a uuid.
package identity

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// clientTag is the fixed Azureus-style prefix identifying this client
// and a nominal version, kept from the teacher's "-GO0001-" idiom.
const clientTag = "-GT0001-"

// NewPeerID returns a fresh 20-byte peer-id: the fixed client tag
// followed by 12 bytes derived from a random uuid.
func NewPeerID() [20]byte {
	var id [20]byte
	copy(id[:], clientTag)
	u := uuid.New()
	suffix := hex.EncodeToString(u[:])
	copy(id[len(clientTag):], suffix)
	return id
}

// Fixed returns the literal peer-id the original source always sent,
// useful for tests that need a deterministic identity.
func Fixed() [20]byte {
	var id [20]byte
	copy(id[:], "1337cafebabedeadbeef")
	return id
}

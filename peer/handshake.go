package peer

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// protocolID is the fixed 19-byte protocol identifier (spec §4.4/§6).
const protocolID = "BitTorrent protocol"

// handshakeLen is the fixed wire size: 1 + 19 + 8 + 20 + 20.
const handshakeLen = 1 + len(protocolID) + 8 + 20 + 20

// Handshake is the 68-byte frame exchanged before any length-prefixed
// messages flow.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// Serialize encodes the handshake frame.
func (h Handshake) Serialize() []byte {
	buf := make([]byte, handshakeLen)
	buf[0] = byte(len(protocolID))
	cursor := 1
	cursor += copy(buf[cursor:], protocolID)
	cursor += 8 // reserved, already zero
	cursor += copy(buf[cursor:], h.InfoHash[:])
	copy(buf[cursor:], h.PeerID[:])
	return buf
}

// ReadHandshake reads exactly handshakeLen bytes from r and decodes
// them, rejecting a reply whose protocol name is not protocolID. It
// does not compare the info-hash against any expectation; callers that
// care (we do, in Dial) compare the result themselves.
func ReadHandshake(r io.Reader) (Handshake, error) {
	buf := make([]byte, handshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Handshake{}, errors.Wrap(err, "read handshake")
	}
	pstrlen := int(buf[0])
	if 1+pstrlen+8+20+20 != handshakeLen || pstrlen != len(protocolID) {
		return Handshake{}, ErrPeerHandshakeFailed{Reason: "unexpected protocol name length"}
	}
	if string(buf[1:1+pstrlen]) != protocolID {
		return Handshake{}, ErrPeerHandshakeFailed{Reason: "unexpected protocol name"}
	}
	var h Handshake
	cursor := 1 + pstrlen + 8
	copy(h.InfoHash[:], buf[cursor:cursor+20])
	cursor += 20
	copy(h.PeerID[:], buf[cursor:cursor+20])
	return h, nil
}

// ErrPeerHandshakeFailed reports any handshake negotiation failure,
// including the info-hash mismatch the original source skipped
// checking (spec §9, implemented here per its own "SHOULD").
type ErrPeerHandshakeFailed struct{ Reason string }

func (e ErrPeerHandshakeFailed) Error() string {
	return "peer handshake failed: " + e.Reason
}

func verifyHandshake(got Handshake, wantInfoHash [20]byte) error {
	if !bytes.Equal(got.InfoHash[:], wantInfoHash[:]) {
		return ErrPeerHandshakeFailed{Reason: "remote info-hash does not match ours"}
	}
	return nil
}

// Package message implements the post-handshake peer-wire frame: a
// u32 big-endian length prefix followed by a one-byte message type and
// its payload (spec §4.4).
package message

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ID is a peer-wire message type tag.
type ID uint8

const (
	Choke         ID = 0
	Unchoke       ID = 1
	Interested    ID = 2
	NotInterested ID = 3
	Have          ID = 4
	BitfieldID    ID = 5
	Request       ID = 6
	Piece         ID = 7
	Cancel        ID = 8
)

// BlockSize is the fixed wire block size used for Request/Piece
// payloads (2^14 bytes, spec §4.4).
const BlockSize = 16384

// Message is a decoded peer-wire frame. A nil *Message represents a
// keep-alive (length-0 frame).
type Message struct {
	ID      ID
	Payload []byte
}

// Serialize encodes m to its wire form. A nil receiver serializes to
// the 4-byte keep-alive frame.
func (m *Message) Serialize() []byte {
	if m == nil {
		return make([]byte, 4)
	}
	length := uint32(len(m.Payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// Read decodes one frame from r. A keep-alive frame (length 0) yields
// (nil, nil).
func Read(r io.Reader) (*Message, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, errors.Wrap(err, "read message length prefix")
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length == 0 {
		return nil, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "read message body")
	}

	id := ID(body[0])
	if err := validateKnownID(id); err != nil {
		return nil, err
	}
	return &Message{ID: id, Payload: body[1:]}, nil
}

func validateKnownID(id ID) error {
	switch id {
	case Choke, Unchoke, Interested, NotInterested, Have, BitfieldID, Request, Piece, Cancel:
		return nil
	default:
		return ErrUnknownMessageID{ID: id}
	}
}

// ErrUnknownMessageID reports a message tag outside 0-8, which spec
// §4.4 treats as a fatal decode error (garbage on the wire).
type ErrUnknownMessageID struct{ ID ID }

func (e ErrUnknownMessageID) Error() string {
	return fmt.Sprintf("unknown peer message id %d", e.ID)
}

// NewRequest builds a Request message for one block.
func NewRequest(index, begin, length int) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return &Message{ID: Request, Payload: payload}
}

// NewHave builds a Have message.
func NewHave(index int) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(index))
	return &Message{ID: Have, Payload: payload}
}

// Simple builds a payload-less message (Choke/Unchoke/Interested/NotInterested).
func Simple(id ID) *Message { return &Message{ID: id} }

// ParseHave extracts the piece index from a Have message.
func ParseHave(m *Message) (int, error) {
	if m.ID != Have {
		return 0, errors.Errorf("expected have message, got id %d", m.ID)
	}
	if len(m.Payload) != 4 {
		return 0, errors.Errorf("have message has wrong payload length %d", len(m.Payload))
	}
	return int(binary.BigEndian.Uint32(m.Payload)), nil
}

// Block is one piece of a Piece message's payload: the piece it
// belongs to, its byte offset within the piece, and its data. Blocks
// order lexicographically on (PieceIndex, Begin), which is how
// out-of-order arrivals get reassembled (spec §3/§4.4).
type Block struct {
	PieceIndex int
	Begin      int
	Data       []byte
}

// Less implements the (PieceIndex, Begin) total order used by the
// reassembly heap.
func (b Block) Less(other Block) bool {
	if b.PieceIndex != other.PieceIndex {
		return b.PieceIndex < other.PieceIndex
	}
	return b.Begin < other.Begin
}

// ParsePiece extracts a Block from a Piece message, validating that it
// belongs to pieceIndex and fits within a buffer of the given size.
func ParsePiece(pieceIndex int, bufSize int, m *Message) (Block, error) {
	if m.ID != Piece {
		return Block{}, errors.Errorf("expected piece message, got id %d", m.ID)
	}
	if len(m.Payload) < 8 {
		return Block{}, errors.Errorf("piece payload too short: %d bytes", len(m.Payload))
	}
	index := int(binary.BigEndian.Uint32(m.Payload[0:4]))
	if index != pieceIndex {
		return Block{}, errors.Errorf("piece message for index %d, expected %d", index, pieceIndex)
	}
	begin := int(binary.BigEndian.Uint32(m.Payload[4:8]))
	if begin < 0 || begin >= bufSize {
		return Block{}, errors.Errorf("piece begin offset %d out of range", begin)
	}
	data := m.Payload[8:]
	if begin+len(data) > bufSize {
		return Block{}, errors.Errorf("piece data of length %d at offset %d overruns buffer", len(data), begin)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return Block{PieceIndex: pieceIndex, Begin: begin, Data: out}, nil
}

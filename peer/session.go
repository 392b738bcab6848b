package peer

import (
	"container/heap"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"gotorrent/helpers/bitfield"
	"gotorrent/internal/logging"
	"gotorrent/message"
)

// dialTimeout bounds the initial TCP connect + handshake.
const dialTimeout = 5 * time.Second

// pieceTimeout bounds how long a single piece download may take before
// the session gives up on the peer. The core contract has no built-in
// timeouts (spec §5); this is the hardening the spec allows ("MAY add
// read/connect timeouts").
const pieceTimeout = 60 * time.Second

// Session owns one open peer-wire connection and its negotiated state.
// Closing a Session closes its socket (spec §3 "Lifetimes").
type Session struct {
	Conn     net.Conn
	Choked   bool
	Bitfield bitfield.Bitfield
	PeerID   [20]byte

	remote   Peer
	infoHash [20]byte
}

// ErrDownloadPieceFailed wraps any failure while downloading one piece.
type ErrDownloadPieceFailed struct{ PieceIndex int }

func (e ErrDownloadPieceFailed) Error() string {
	return fmt.Sprintf("download piece %d failed", e.PieceIndex)
}

// Dial opens a TCP connection to p and completes the handshake.
func Dial(p Peer, localPeerID, infoHash [20]byte) (*Session, error) {
	conn, err := net.DialTimeout("tcp", p.Addr(), dialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to peer %s", p)
	}

	if err := conn.SetDeadline(time.Now().Add(dialTimeout)); err != nil {
		conn.Close()
		return nil, err
	}
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(Handshake{InfoHash: infoHash, PeerID: localPeerID}.Serialize()); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "send handshake")
	}
	remoteHS, err := ReadHandshake(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := verifyHandshake(remoteHS, infoHash); err != nil {
		conn.Close()
		return nil, err
	}

	return &Session{
		Conn:     conn,
		Choked:   true,
		PeerID:   remoteHS.PeerID,
		remote:   p,
		infoHash: infoHash,
	}, nil
}

// Close closes the session's socket.
func (s *Session) Close() error { return s.Conn.Close() }

func (s *Session) send(m *message.Message) error {
	_, err := s.Conn.Write(m.Serialize())
	return errors.Wrap(err, "send peer message")
}

func (s *Session) SendInterested() error    { return s.send(message.Simple(message.Interested)) }
func (s *Session) SendNotInterested() error { return s.send(message.Simple(message.NotInterested)) }
func (s *Session) SendUnchoke() error       { return s.send(message.Simple(message.Unchoke)) }
func (s *Session) SendHave(index int) error { return s.send(message.NewHave(index)) }

func (s *Session) read() (*message.Message, error) {
	return message.Read(s.Conn)
}

// blockHeap is a min-heap of message.Block ordered by (PieceIndex,
// Begin), the priority queue spec §9's design notes call out for
// piece reassembly: blocks may arrive out of request order, and this
// drains them back into order once every block has arrived.
type blockHeap []message.Block

func (h blockHeap) Len() int            { return len(h) }
func (h blockHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h blockHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *blockHeap) Push(x interface{}) { *h = append(*h, x.(message.Block)) }
func (h *blockHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DownloadPiece runs the per-piece state machine from spec §4.4: send
// Interested, pipeline one Request per block once unchoked, collect
// Piece replies into a min-heap keyed on (index, begin), and drain them
// back into piece order once every block has arrived. It does not
// verify the assembled piece's hash — callers compare against the
// expected digest (see torrent.DownloadAll).
func (s *Session) DownloadPiece(index int, pieceLength int64) ([]byte, error) {
	if err := s.Conn.SetDeadline(time.Now().Add(pieceTimeout)); err != nil {
		return nil, err
	}
	defer s.Conn.SetDeadline(time.Time{})

	if err := s.SendInterested(); err != nil {
		return nil, ErrDownloadPieceFailed{PieceIndex: index}
	}

	numBlocks := numBlocksForPiece(pieceLength)
	received := make([]bool, numBlocks)
	receivedCount := 0
	requested := false

	var pq blockHeap
	heap.Init(&pq)

	for receivedCount < numBlocks {
		msg, err := s.read()
		if err != nil {
			return nil, errors.Wrapf(err, "download piece %d", index)
		}
		if msg == nil {
			continue // keep-alive
		}

		switch msg.ID {
		case message.Unchoke:
			s.Choked = false
			if !requested {
				if err := s.requestAllBlocks(index, pieceLength, numBlocks); err != nil {
					return nil, err
				}
				requested = true
			}
		case message.Choke:
			s.Choked = true
		case message.BitfieldID:
			s.Bitfield = append(bitfield.Bitfield(nil), msg.Payload...)
		case message.Have:
			haveIndex, err := message.ParseHave(msg)
			if err != nil {
				return nil, errors.Wrap(err, "parse have message")
			}
			s.Bitfield.SetPiece(haveIndex)
		case message.Piece:
			block, err := message.ParsePiece(index, int(pieceLength), msg)
			if err != nil {
				return nil, errors.Wrapf(err, "parse piece %d message", index)
			}
			blockIdx := block.Begin / message.BlockSize
			if blockIdx < 0 || blockIdx >= numBlocks {
				return nil, ErrDownloadPieceFailed{PieceIndex: index}
			}
			if !received[blockIdx] {
				received[blockIdx] = true
				receivedCount++
				heap.Push(&pq, block)
			}
		default:
			logging.Log.WithField("id", msg.ID).Debug("ignoring peer message during piece download")
		}
	}

	return drainBlocksInOrder(&pq, int(pieceLength))
}

func (s *Session) requestAllBlocks(index int, pieceLength int64, numBlocks int) error {
	for i := 0; i < numBlocks; i++ {
		begin := i * message.BlockSize
		length := blockLength(pieceLength, i)
		if err := s.send(message.NewRequest(index, begin, length)); err != nil {
			return ErrDownloadPieceFailed{PieceIndex: index}
		}
	}
	return nil
}

func numBlocksForPiece(pieceLength int64) int {
	return int((pieceLength + message.BlockSize - 1) / message.BlockSize)
}

// blockLength returns the length of block i within a piece of
// pieceLength bytes: BlockSize for every block except possibly the
// last, which is truncated to the residual (spec §9's corrected
// formula — the source's own version swaps this, see DESIGN.md).
func blockLength(pieceLength int64, i int) int {
	begin := int64(i) * message.BlockSize
	end := begin + message.BlockSize
	if end > pieceLength {
		end = pieceLength
	}
	return int(end - begin)
}

func drainBlocksInOrder(pq *blockHeap, pieceLength int) ([]byte, error) {
	buf := make([]byte, 0, pieceLength)
	i := 0
	for pq.Len() > 0 {
		block := heap.Pop(pq).(message.Block)
		if block.Begin != i*message.BlockSize {
			return nil, errors.Errorf("expected block at offset %d, got %d", i*message.BlockSize, block.Begin)
		}
		buf = append(buf, block.Data...)
		i++
	}
	return buf, nil
}

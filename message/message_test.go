package message

import (
	"bytes"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeReadRoundTrip(t *testing.T) {
	m := NewRequest(1, 2, 3)
	got, err := Read(bytes.NewReader(m.Serialize()))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Payload, got.Payload)
}

func TestReadKeepAliveIsNil(t *testing.T) {
	m, err := Read(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestReadUnknownIDIsFatal(t *testing.T) {
	frame := []byte{0, 0, 0, 1, 200}
	_, err := Read(bytes.NewReader(frame))
	require.Error(t, err)
}

func TestParsePieceValidatesIndexAndBounds(t *testing.T) {
	m := &Message{ID: Piece, Payload: append([]byte{0, 0, 0, 5, 0, 0, 0, 10}, []byte("hello")...)}
	_, err := m.parseForTest(3, 100)
	assert.Error(t, err)

	_, err = m.parseForTest(5, 12)
	assert.Error(t, err)

	blk, err := m.parseForTest(5, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, blk.PieceIndex)
	assert.Equal(t, 10, blk.Begin)
	assert.Equal(t, []byte("hello"), blk.Data)
}

func (m *Message) parseForTest(pieceIndex, bufSize int) (Block, error) {
	return ParsePiece(pieceIndex, bufSize, m)
}

func TestBlockAssemblyOrderingIsPermutationInvariant(t *testing.T) {
	const blockSize = 16
	const numBlocks = 8
	original := make([]byte, blockSize*numBlocks)
	_, err := rand.Read(original)
	require.NoError(t, err)

	blocks := make([]Block, numBlocks)
	for i := 0; i < numBlocks; i++ {
		blocks[i] = Block{PieceIndex: 0, Begin: i * blockSize, Data: original[i*blockSize : (i+1)*blockSize]}
	}

	rand.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Less(blocks[j]) })

	var reassembled []byte
	for _, b := range blocks {
		reassembled = append(reassembled, b.Data...)
	}
	assert.Equal(t, original, reassembled)
}

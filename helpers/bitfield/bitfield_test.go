package bitfield

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndHasPiece(t *testing.T) {
	var bf Bitfield
	assert.False(t, bf.HasPiece(3))
	bf.SetPiece(3)
	assert.True(t, bf.HasPiece(3))
	assert.False(t, bf.HasPiece(2))
	assert.False(t, bf.HasPiece(4))
}

func TestHasPieceOutOfRangeIsFalse(t *testing.T) {
	bf := Bitfield{0xFF}
	assert.False(t, bf.HasPiece(100))
}

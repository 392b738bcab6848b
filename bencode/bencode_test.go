package bencode

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDictPreservesInsertionOrder(t *testing.T) {
	v, rest, err := Decode([]byte("d3:cow3:moo4:spam4:eggse"), NoByteMode)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Equal(t, KindDict, v.Kind)
	assert.Equal(t, []string{"cow", "spam"}, v.Dict.Keys())

	cow, ok := v.Dict.Get("cow")
	require.True(t, ok)
	assert.Equal(t, "moo", cow.Value.Str)

	spam, ok := v.Dict.Get("spam")
	require.True(t, ok)
	assert.Equal(t, "eggs", spam.Value.Str)
}

func TestDecodeNegativeInteger(t *testing.T) {
	v, rest, err := Decode([]byte("i-42e"), NoByteMode)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, KindInteger, v.Kind)
	assert.EqualValues(t, -42, v.Int)
}

func TestDecodePiecesChunking(t *testing.T) {
	pieces := make([]byte, 40)
	for i := range pieces {
		pieces[i] = byte(i)
	}
	input := append([]byte("d6:pieces40:"), pieces...)
	input = append(input, 'e')

	v, rest, err := Decode(input, func(key string) (int, bool) {
		if key == "pieces" {
			return 20, true
		}
		return 0, false
	})
	require.NoError(t, err)
	assert.Empty(t, rest)

	dv, ok := v.Dict.Get("pieces")
	require.True(t, ok)
	require.True(t, dv.IsBytes())
	require.Len(t, dv.Bytes.Chunks, 2)
	assert.Equal(t, pieces[:20], dv.Bytes.Chunks[0])
	assert.Equal(t, pieces[20:], dv.Bytes.Chunks[1])

	encoded, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, input, encoded)
}

func TestRoundTripScalarsAndNesting(t *testing.T) {
	cases := []string{
		"i0e",
		"i123456789e",
		"0:",
		"5:hello",
		"le",
		"l4:spam4:eggse",
		"de",
		"d3:fooli1ei2eee",
		"d3:bar4:spam3:fooi42ee",
	}
	for _, c := range cases {
		v, rest, err := Decode([]byte(c), NoByteMode)
		require.NoError(t, err, c)
		assert.Empty(t, rest, c)
		encoded, err := Encode(v)
		require.NoError(t, err, c)
		assert.Equal(t, c, string(encoded), c)
	}
}

func TestByteChunksFidelityPrefix(t *testing.T) {
	b := &ByteChunks{Width: 6, Chunks: [][]byte{
		{1, 2, 3, 4, 5, 6},
		{7, 8, 9, 10, 11, 12},
	}}
	encoded := encodeByteChunks(b)
	assert.Equal(t, "12:", string(encoded[:3]))
	assert.Len(t, encoded, 3+12)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]any{
		"x":          ErrUnexpectedToken{},
		"e":          ErrMisplacedClosing{},
		"5:ab":       ErrTruncation{},
		"i5":         ErrMissingToken{},
		"5":          ErrMissingToken{},
		string([]byte{'2', ':', 0xff, 0xfe}): ErrNonUTF8String{},
	}
	for input, wantType := range cases {
		_, _, err := Decode([]byte(input), NoByteMode)
		require.Error(t, err, input)
		assert.IsType(t, wantType, errors.Cause(err), input)
	}
}

func TestDecodeTruncatedByteChunksIsTruncation(t *testing.T) {
	_, _, err := Decode([]byte("d6:pieces5:abcde"), func(key string) (int, bool) {
		if key == "pieces" {
			return 20, true
		}
		return 0, false
	})
	require.Error(t, err)
	assert.IsType(t, ErrTruncation{}, errors.Cause(err))
}

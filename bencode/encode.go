package bencode

import (
	"strconv"

	"github.com/pkg/errors"
)

// Encode serializes v back to its bencode wire form. Encode is the
// exact inverse of Decode: for any (v, rest) produced by Decode(b, p),
// Decode(Encode(v), p) reproduces v byte for byte, including the raw
// bytes behind any ByteChunks dict value.
func Encode(v *Value) ([]byte, error) {
	switch v.Kind {
	case KindString:
		return encodeString(v.Str), nil
	case KindInteger:
		return []byte("i" + strconv.FormatInt(v.Int, 10) + "e"), nil
	case KindList:
		return encodeList(v.List)
	case KindDict:
		return encodeDict(v.Dict)
	default:
		return nil, errors.Errorf("bencode: unknown value kind %d", v.Kind)
	}
}

func encodeString(s string) []byte {
	prefix := strconv.Itoa(len(s)) + ":"
	out := make([]byte, 0, len(prefix)+len(s))
	out = append(out, prefix...)
	out = append(out, s...)
	return out
}

func encodeList(items []*Value) ([]byte, error) {
	out := []byte{'l'}
	for _, item := range items {
		enc, err := Encode(item)
		if err != nil {
			return nil, errors.Wrap(err, "encode bencode list element")
		}
		out = append(out, enc...)
	}
	out = append(out, 'e')
	return out, nil
}

func encodeDict(d *Dict) ([]byte, error) {
	out := []byte{'d'}
	for _, key := range d.Keys() {
		dv, _ := d.Get(key)
		out = append(out, encodeString(key)...)
		enc, err := encodeDictValue(dv)
		if err != nil {
			return nil, errors.Wrapf(err, "encode bencode dict value %q", key)
		}
		out = append(out, enc...)
	}
	out = append(out, 'e')
	return out, nil
}

func encodeDictValue(dv *DictValue) ([]byte, error) {
	if dv.IsBytes() {
		return encodeByteChunks(dv.Bytes), nil
	}
	return Encode(dv.Value)
}

// encodeByteChunks emits "<N*W>:" followed by the concatenated chunk
// bytes verbatim — this is what preserves a ByteChunks payload exactly
// across a decode/encode round trip.
func encodeByteChunks(b *ByteChunks) []byte {
	total := b.Width * len(b.Chunks)
	prefix := strconv.Itoa(total) + ":"
	out := make([]byte, 0, len(prefix)+total)
	out = append(out, prefix...)
	for _, chunk := range b.Chunks {
		out = append(out, chunk...)
	}
	return out
}

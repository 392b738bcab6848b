// Package bencode implements BitTorrent's bencode serialization format:
// byte strings, signed integers, lists and ordered dictionaries.
//
// Dictionary values support a second, opaque shape in addition to plain
// recursive bencode: ByteChunks, a sequence of fixed-width byte arrays
// backing a single bencoded byte-string. Which dictionary keys decode
// into ByteChunks (instead of a nested Value) is controlled by the
// ByteModeFunc passed to Decode, since the grammar alone can't tell a
// 20-byte SHA-1 hash stream from an ordinary string.
package bencode

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind tags the four shapes a Value can take.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindList
	KindDict
)

// Value is a decoded bencode node.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	List []*Value
	Dict *Dict
}

func String(s string) *Value { return &Value{Kind: KindString, Str: s} }
func Integer(i int64) *Value { return &Value{Kind: KindInteger, Int: i} }
func List(vs []*Value) *Value { return &Value{Kind: KindList, List: vs} }
func DictValueOf(d *Dict) *Value { return &Value{Kind: KindDict, Dict: d} }

// ByteChunks is the opaque byte-chunked string shape: a single bencoded
// byte-string of length N*Width, split into N chunks of Width bytes.
type ByteChunks struct {
	Width  int
	Chunks [][]byte
}

// DictValue is what a dictionary key maps to: either a nested Value or
// an opaque ByteChunks. Exactly one of Value/Bytes is set.
type DictValue struct {
	Value *Value
	Bytes *ByteChunks
}

func dictValueOf(v *Value) *DictValue           { return &DictValue{Value: v} }
func bytesDictValueOf(b *ByteChunks) *DictValue { return &DictValue{Bytes: b} }

// IsBytes reports whether this dict value is an opaque ByteChunks.
func (dv *DictValue) IsBytes() bool { return dv.Bytes != nil }

// Dict is an insertion-ordered string-keyed mapping. Bencode requires
// dict key order to survive a decode/encode round trip — Go's builtin
// map gives no such guarantee, so Dict keeps an explicit key slice
// alongside the lookup map, the same role Rust's IndexMap plays in the
// original source.
type Dict struct {
	keys   []string
	values map[string]*DictValue
}

func NewDict() *Dict {
	return &Dict{values: make(map[string]*DictValue)}
}

// Set inserts or overwrites key. Overwriting an existing key keeps its
// original position in Keys().
func (d *Dict) Set(key string, v *DictValue) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// SetValue is a convenience wrapper for Set(key, dictValueOf(v)).
func (d *Dict) SetValue(key string, v *Value) { d.Set(key, dictValueOf(v)) }

// SetBytes is a convenience wrapper for Set(key, bytesDictValueOf(b)).
func (d *Dict) SetBytes(key string, b *ByteChunks) { d.Set(key, bytesDictValueOf(b)) }

// Get returns the value stored under key, if any.
func (d *Dict) Get(key string) (*DictValue, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns dict keys in insertion order.
func (d *Dict) Keys() []string { return d.keys }

func (d *Dict) Len() int { return len(d.keys) }

// ByteModeFunc decides, per dictionary key, whether the value should be
// parsed as an opaque ByteChunks of the returned width rather than a
// recursive Value. A zero ok return means "decode normally".
type ByteModeFunc func(key string) (width int, ok bool)

// NoByteMode never requests byte-chunked decoding.
func NoByteMode(string) (int, bool) { return 0, false }

// Decode parses one bencode value from the front of data and returns it
// together with the unconsumed remainder.
func Decode(data []byte, byteMode ByteModeFunc) (*Value, []byte, error) {
	if len(data) == 0 {
		return nil, nil, errors.Wrap(ErrMissingToken{Token: 'e'}, "decode bencode value")
	}
	switch c := data[0]; {
	case c >= '0' && c <= '9':
		return decodeString(data)
	case c == 'i':
		return decodeInteger(data[1:])
	case c == 'l':
		return decodeList(data[1:], byteMode)
	case c == 'd':
		return decodeDict(data[1:], byteMode)
	case c == 'e':
		return nil, nil, ErrMisplacedClosing{}
	default:
		return nil, nil, ErrUnexpectedToken{Token: c}
	}
}

func decodeString(data []byte) (*Value, []byte, error) {
	s, rest, err := decodeRawString(data)
	if err != nil {
		return nil, nil, err
	}
	if !utf8.Valid(s) {
		return nil, nil, ErrNonUTF8String{}
	}
	return String(string(s)), rest, nil
}

// decodeRawString decodes "<len>:<body>" without a UTF-8 check, shared
// by string values, dict keys and ByteChunks length parsing.
func decodeRawString(data []byte) (body []byte, rest []byte, err error) {
	colon := -1
	for i, c := range data {
		if c == ':' {
			colon = i
			break
		}
		if c < '0' || c > '9' {
			return nil, nil, ErrMissingToken{Token: ':'}
		}
	}
	if colon < 0 {
		return nil, nil, ErrMissingToken{Token: ':'}
	}
	length, err := parseLength(data[:colon])
	if err != nil {
		return nil, nil, err
	}
	if colon+1+length > len(data) {
		return nil, nil, ErrTruncation{}
	}
	return data[colon+1 : colon+1+length], data[colon+1+length:], nil
}

func parseLength(digits []byte) (int, error) {
	if len(digits) == 0 {
		return 0, ErrMissingToken{Token: ':'}
	}
	n := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, ErrUnexpectedToken{Token: c}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func decodeInteger(data []byte) (*Value, []byte, error) {
	end := -1
	for i, c := range data {
		if c == 'e' {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, nil, ErrMissingToken{Token: 'e'}
	}
	s := string(data[:end])
	n, err := parseInt64(s)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decode bencode integer %q", s)
	}
	return Integer(n), data[end+1:], nil
}

func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty integer")
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(s) {
		return 0, errors.New("malformed integer")
	}
	var n int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errors.Errorf("malformed integer byte %q", c)
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func decodeList(data []byte, byteMode ByteModeFunc) (*Value, []byte, error) {
	var items []*Value
	rest := data
	for {
		if len(rest) == 0 {
			return nil, nil, ErrMissingToken{Token: 'e'}
		}
		if rest[0] == 'e' {
			return List(items), rest[1:], nil
		}
		v, r, err := Decode(rest, byteMode)
		if err != nil {
			return nil, nil, errors.Wrap(err, "decode bencode list element")
		}
		items = append(items, v)
		rest = r
	}
}

func decodeDict(data []byte, byteMode ByteModeFunc) (*Value, []byte, error) {
	d := NewDict()
	rest := data
	for {
		if len(rest) == 0 {
			return nil, nil, ErrMissingToken{Token: 'e'}
		}
		if rest[0] == 'e' {
			return DictValueOf(d), rest[1:], nil
		}
		keyBytes, r, err := decodeRawString(rest)
		if err != nil {
			return nil, nil, errors.Wrap(err, "decode bencode dict key")
		}
		if !utf8.Valid(keyBytes) {
			return nil, nil, ErrNonUTF8String{}
		}
		key := string(keyBytes)
		rest = r

		if width, ok := byteMode(key); ok {
			chunks, r, err := decodeByteChunks(rest, width)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "decode bencode dict value %q", key)
			}
			d.Set(key, bytesDictValueOf(chunks))
			rest = r
			continue
		}

		v, r, err := Decode(rest, byteMode)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "decode bencode dict value %q", key)
		}
		d.Set(key, dictValueOf(v))
		rest = r
	}
}

func decodeByteChunks(data []byte, width int) (*ByteChunks, []byte, error) {
	body, rest, err := decodeRawString(data)
	if err != nil {
		return nil, nil, err
	}
	if width <= 0 || len(body)%width != 0 {
		return nil, nil, ErrTruncation{}
	}
	n := len(body) / width
	chunks := make([][]byte, n)
	for i := 0; i < n; i++ {
		chunk := make([]byte, width)
		copy(chunk, body[i*width:(i+1)*width])
		chunks[i] = chunk
	}
	return &ByteChunks{Width: width, Chunks: chunks}, rest, nil
}

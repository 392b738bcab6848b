package torrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotorrent/bencode"
)

func buildTrackerResponse(interval int64, peerBytes []byte, width int) []byte {
	d := bencode.NewDict()
	d.SetValue("interval", bencode.Integer(interval))
	n := len(peerBytes) / width
	chunks := make([][]byte, n)
	for i := 0; i < n; i++ {
		chunks[i] = peerBytes[i*width : (i+1)*width]
	}
	d.SetBytes("peers", &bencode.ByteChunks{Width: width, Chunks: chunks})
	encoded, err := bencode.Encode(bencode.DictValueOf(d))
	if err != nil {
		panic(err)
	}
	return encoded
}

func TestParseResponseDecodesPeersAndInterval(t *testing.T) {
	peers := []byte{192, 168, 0, 1, 0x1A, 0xE1, 10, 0, 0, 2, 0x1A, 0xE2}
	body := buildTrackerResponse(1800, peers, 6)

	c := NewClient()
	got, err := c.parseResponse(body)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "192.168.0.1:6881", got[0].Addr())
	assert.Equal(t, "10.0.0.2:6882", got[1].Addr())
	assert.Equal(t, int64(1800), int64(c.Interval.Seconds()))
}

func TestParseResponseRejectsNonCompactPeers(t *testing.T) {
	d := bencode.NewDict()
	d.SetValue("peers", bencode.String("not-compact"))
	encoded, err := bencode.Encode(bencode.DictValueOf(d))
	require.NoError(t, err)

	c := NewClient()
	_, err = c.parseResponse(encoded)
	require.Error(t, err)
}

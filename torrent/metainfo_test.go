package torrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotorrent/bencode"
)

func buildSingleFileMetainfo(announce string, name string, pieceLength int64, length int64, numPieces int, announceFirst bool) []byte {
	info := bencode.NewDict()
	info.SetValue("length", bencode.Integer(length))
	info.SetValue("name", bencode.String(name))
	info.SetValue("piece length", bencode.Integer(pieceLength))
	chunks := make([][]byte, numPieces)
	for i := range chunks {
		chunk := make([]byte, 20)
		for j := range chunk {
			chunk[j] = byte(i)
		}
		chunks[i] = chunk
	}
	info.SetBytes("pieces", &bencode.ByteChunks{Width: 20, Chunks: chunks})

	root := bencode.NewDict()
	if announceFirst {
		root.SetValue("announce", bencode.String(announce))
		root.SetValue("info", bencode.DictValueOf(info))
	} else {
		root.SetValue("info", bencode.DictValueOf(info))
		root.SetValue("announce", bencode.String(announce))
	}

	encoded, err := bencode.Encode(bencode.DictValueOf(root))
	if err != nil {
		panic(err)
	}
	return encoded
}

func TestParseSingleFileMetainfo(t *testing.T) {
	data := buildSingleFileMetainfo("http://t/", "a.bin", 16384, 10000, 1, true)
	tor, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "http://t/", tor.Announce)
	assert.Equal(t, "a.bin", tor.Info.Name)
	assert.EqualValues(t, 16384, tor.Info.PieceLength)
	assert.False(t, tor.Info.FileType.IsMultiFile())
	assert.EqualValues(t, 10000, tor.GetFileLength())
}

func TestInfoHashStableAcrossSiblingKeyOrder(t *testing.T) {
	first := buildSingleFileMetainfo("http://t/", "a.bin", 16384, 10000, 2, true)
	second := buildSingleFileMetainfo("http://t/", "a.bin", 16384, 10000, 2, false)

	t1, err := Parse(first)
	require.NoError(t, err)
	t2, err := Parse(second)
	require.NoError(t, err)

	h1, err := t1.InfoHash()
	require.NoError(t, err)
	h2, err := t2.InfoHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestURLEncodedInfoHashIs60Chars(t *testing.T) {
	data := buildSingleFileMetainfo("http://t/", "a.bin", 16384, 10000, 1, true)
	tor, err := Parse(data)
	require.NoError(t, err)
	hash, err := tor.InfoHash()
	require.NoError(t, err)
	encoded := URLEncodedInfoHash(hash)
	assert.Len(t, encoded, 60)
	for i := 0; i < len(encoded); i += 3 {
		assert.Equal(t, byte('%'), encoded[i])
	}
}

func TestMultiFileRecognitionSumsLength(t *testing.T) {
	info := bencode.NewDict()
	files := []*bencode.Value{}
	mk := func(length int64, path []string) *bencode.Value {
		fd := bencode.NewDict()
		fd.SetValue("length", bencode.Integer(length))
		items := make([]*bencode.Value, len(path))
		for i, p := range path {
			items[i] = bencode.String(p)
		}
		fd.SetValue("path", bencode.List(items))
		return bencode.DictValueOf(fd)
	}
	files = append(files, mk(100, []string{"dir", "a.txt"}), mk(200, []string{"dir", "b.txt"}))
	info.SetValue("files", bencode.List(files))
	info.SetValue("name", bencode.String("dir"))
	info.SetValue("piece length", bencode.Integer(16384))
	chunk := make([]byte, 20)
	info.SetBytes("pieces", &bencode.ByteChunks{Width: 20, Chunks: [][]byte{chunk}})

	root := bencode.NewDict()
	root.SetValue("info", bencode.DictValueOf(info))
	encoded, err := bencode.Encode(bencode.DictValueOf(root))
	require.NoError(t, err)

	tor, err := Parse(encoded)
	require.NoError(t, err)
	assert.True(t, tor.Info.FileType.IsMultiFile())
	assert.EqualValues(t, 300, tor.GetFileLength())
	require.Len(t, tor.Info.FileType.Files(), 2)
	assert.Equal(t, []string{"dir", "a.txt"}, tor.Info.FileType.Files()[0].Path)
}

func TestMissingInfoDictIsInvalid(t *testing.T) {
	root := bencode.NewDict()
	root.SetValue("announce", bencode.String("http://t/"))
	encoded, err := bencode.Encode(bencode.DictValueOf(root))
	require.NoError(t, err)

	_, err = Parse(encoded)
	require.Error(t, err)
	assert.IsType(t, ErrInvalidTorrentFile{}, err)
}

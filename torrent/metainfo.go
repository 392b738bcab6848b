// Package torrent projects a bencode tree into a typed metainfo
// descriptor, derives its info-hash, and talks to the HTTP tracker.
package torrent

import (
	"crypto/sha1"
	"fmt"

	"github.com/pkg/errors"

	"gotorrent/bencode"
)

const pieceHashWidth = 20

// FileType is the tagged SingleFile/MultiFile variant from spec §3.
// Exactly one of the two shapes is populated; IsMultiFile reports which.
type FileType struct {
	multi  bool
	length int64
	files  []FileEntry
}

// FileEntry is one file inside a MultiFile torrent.
type FileEntry struct {
	Length int64
	Path   []string
}

// SingleFile builds a single-file FileType.
func SingleFile(length int64) FileType { return FileType{length: length} }

// MultiFile builds a multi-file FileType.
func MultiFile(files []FileEntry) FileType { return FileType{multi: true, files: files} }

func (ft FileType) IsMultiFile() bool  { return ft.multi }
func (ft FileType) Length() int64      { return ft.length }
func (ft FileType) Files() []FileEntry { return ft.files }

// InfoDict is the projected `info` sub-dictionary of a metainfo file.
type InfoDict struct {
	Name        string
	PieceLength int64
	Pieces      [][pieceHashWidth]byte
	FileType    FileType
}

// Torrent is the projected metainfo descriptor.
type Torrent struct {
	Announce string
	Info     InfoDict
}

// ErrInvalidTorrentFile reports a missing or ill-typed required field.
type ErrInvalidTorrentFile struct{ Reason string }

func (e ErrInvalidTorrentFile) Error() string {
	return fmt.Sprintf("not a valid torrent file: %s", e.Reason)
}

// ErrInvalidAnnounceURL reports an announce URL that isn't http(s).
type ErrInvalidAnnounceURL struct{ URL string }

func (e ErrInvalidAnnounceURL) Error() string {
	return fmt.Sprintf("invalid announce url %q: only http/https trackers are supported", e.URL)
}

// byteModeForMetainfo marks "pieces" as a byte-chunked string of width
// 20, per spec §4.2.
func byteModeForMetainfo(key string) (int, bool) {
	if key == "pieces" {
		return pieceHashWidth, true
	}
	return 0, false
}

// Parse decodes raw metainfo bytes into a Torrent.
func Parse(data []byte) (*Torrent, error) {
	v, _, err := bencode.Decode(data, byteModeForMetainfo)
	if err != nil {
		return nil, errors.Wrap(err, "decode metainfo bencode")
	}
	return projectTorrent(v)
}

func projectTorrent(v *bencode.Value) (*Torrent, error) {
	if v.Kind != bencode.KindDict {
		return nil, ErrInvalidTorrentFile{Reason: "metainfo root must be a dictionary"}
	}
	root := v.Dict

	var announce string
	if dv, ok := root.Get("announce"); ok && !dv.IsBytes() && dv.Value.Kind == bencode.KindString {
		announce = dv.Value.Str
	}

	infoDV, ok := root.Get("info")
	if !ok || infoDV.IsBytes() || infoDV.Value.Kind != bencode.KindDict {
		return nil, ErrInvalidTorrentFile{Reason: "info dictionary does not exist"}
	}
	info, err := projectInfo(infoDV.Value.Dict)
	if err != nil {
		return nil, err
	}

	return &Torrent{Announce: announce, Info: *info}, nil
}

func projectInfo(d *bencode.Dict) (*InfoDict, error) {
	name, err := requireString(d, "name")
	if err != nil {
		return nil, err
	}

	pieceLength, err := requireInt(d, "piece length")
	if err != nil {
		return nil, err
	}
	if pieceLength < 1 {
		return nil, ErrInvalidTorrentFile{Reason: "piece length must be at least 1"}
	}

	pieces, err := projectPieces(d)
	if err != nil {
		return nil, err
	}

	fileType, err := resolveFileType(d)
	if err != nil {
		return nil, err
	}

	return &InfoDict{
		Name:        name,
		PieceLength: pieceLength,
		Pieces:      pieces,
		FileType:    fileType,
	}, nil
}

func projectPieces(d *bencode.Dict) ([][pieceHashWidth]byte, error) {
	dv, ok := d.Get("pieces")
	if !ok || !dv.IsBytes() {
		return nil, ErrInvalidTorrentFile{Reason: "no pieces found"}
	}
	chunks := dv.Bytes.Chunks
	if len(chunks) == 0 {
		return nil, ErrInvalidTorrentFile{Reason: "pieces must be nonempty"}
	}
	out := make([][pieceHashWidth]byte, len(chunks))
	for i, c := range chunks {
		if len(c) != pieceHashWidth {
			return nil, ErrInvalidTorrentFile{Reason: "invalid piece hash length"}
		}
		copy(out[i][:], c)
	}
	return out, nil
}

func resolveFileType(d *bencode.Dict) (FileType, error) {
	if lengthDV, ok := d.Get("length"); ok && !lengthDV.IsBytes() && lengthDV.Value.Kind == bencode.KindInteger {
		return SingleFile(lengthDV.Value.Int), nil
	}

	filesDV, ok := d.Get("files")
	if !ok || filesDV.IsBytes() || filesDV.Value.Kind != bencode.KindList {
		return FileType{}, ErrInvalidTorrentFile{Reason: "could not determine file type"}
	}

	files := make([]FileEntry, 0, len(filesDV.Value.List))
	for _, item := range filesDV.Value.List {
		entry, err := projectFileEntry(item)
		if err != nil {
			return FileType{}, err
		}
		files = append(files, entry)
	}
	return MultiFile(files), nil
}

func projectFileEntry(v *bencode.Value) (FileEntry, error) {
	if v.Kind != bencode.KindDict {
		return FileEntry{}, ErrInvalidTorrentFile{Reason: "invalid files list entry"}
	}
	length, err := requireInt(v.Dict, "length")
	if err != nil {
		return FileEntry{}, err
	}
	pathDV, ok := v.Dict.Get("path")
	if !ok || pathDV.IsBytes() || pathDV.Value.Kind != bencode.KindList || len(pathDV.Value.List) == 0 {
		return FileEntry{}, ErrInvalidTorrentFile{Reason: "file does not have a valid, nonempty path"}
	}
	path := make([]string, 0, len(pathDV.Value.List))
	for _, seg := range pathDV.Value.List {
		if seg.Kind != bencode.KindString {
			return FileEntry{}, ErrInvalidTorrentFile{Reason: "invalid file path segment"}
		}
		path = append(path, seg.Str)
	}
	return FileEntry{Length: length, Path: path}, nil
}

func requireString(d *bencode.Dict, key string) (string, error) {
	dv, ok := d.Get(key)
	if !ok || dv.IsBytes() || dv.Value.Kind != bencode.KindString {
		return "", ErrInvalidTorrentFile{Reason: fmt.Sprintf("should have %s", key)}
	}
	return dv.Value.Str, nil
}

func requireInt(d *bencode.Dict, key string) (int64, error) {
	dv, ok := d.Get(key)
	if !ok || dv.IsBytes() || dv.Value.Kind != bencode.KindInteger {
		return 0, ErrInvalidTorrentFile{Reason: fmt.Sprintf("should have %s", key)}
	}
	return dv.Value.Int, nil
}

// GetFileLength returns the total payload length: the single file's
// length, or the sum of every MultiFile entry.
func (t *Torrent) GetFileLength() int64 {
	if !t.Info.FileType.IsMultiFile() {
		return t.Info.FileType.Length()
	}
	var total int64
	for _, f := range t.Info.FileType.Files() {
		total += f.Length
	}
	return total
}

// PieceLength returns the actual byte length of piece index, truncated
// for the final piece when the total length isn't a multiple of the
// nominal piece length.
func (t *Torrent) PieceLength(index int) int64 {
	begin := int64(index) * t.Info.PieceLength
	end := begin + t.Info.PieceLength
	if total := t.GetFileLength(); end > total {
		end = total
	}
	return end - begin
}

// InfoHash returns the SHA-1 digest of the canonical bencode encoding
// of the info subtree (spec §4.2).
func (t *Torrent) InfoHash() ([20]byte, error) {
	canon, err := canonicalInfoDict(&t.Info)
	if err != nil {
		return [20]byte{}, err
	}
	encoded, err := bencode.Encode(bencode.DictValueOf(canon))
	if err != nil {
		return [20]byte{}, errors.Wrap(err, "encode canonical info dict")
	}
	return sha1.Sum(encoded), nil
}

// canonicalInfoDict rebuilds the info dict in the literal key order the
// source emits: length|files, name, piece length, pieces. This is a
// deliberate departure from BEP 3's sorted-key canonical form — see
// spec §9 and DESIGN.md.
func canonicalInfoDict(info *InfoDict) (*bencode.Dict, error) {
	d := bencode.NewDict()

	if info.FileType.IsMultiFile() {
		filesList := make([]*bencode.Value, 0, len(info.FileType.Files()))
		for _, f := range info.FileType.Files() {
			fd := bencode.NewDict()
			fd.SetValue("length", bencode.Integer(f.Length))
			pathItems := make([]*bencode.Value, len(f.Path))
			for i, seg := range f.Path {
				pathItems[i] = bencode.String(seg)
			}
			fd.SetValue("path", bencode.List(pathItems))
			filesList = append(filesList, bencode.DictValueOf(fd))
		}
		d.SetValue("files", bencode.List(filesList))
	} else {
		d.SetValue("length", bencode.Integer(info.FileType.Length()))
	}

	d.SetValue("name", bencode.String(info.Name))
	d.SetValue("piece length", bencode.Integer(info.PieceLength))

	chunks := make([][]byte, len(info.Pieces))
	for i := range info.Pieces {
		chunk := make([]byte, pieceHashWidth)
		copy(chunk, info.Pieces[i][:])
		chunks[i] = chunk
	}
	d.SetBytes("pieces", &bencode.ByteChunks{Width: pieceHashWidth, Chunks: chunks})

	return d, nil
}

// URLEncodedInfoHash hex-encodes the info-hash and inserts a '%' before
// every hex pair, yielding the 60-character form trackers expect
// verbatim in the info_hash query parameter.
func URLEncodedInfoHash(hash [20]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, 60)
	for _, b := range hash {
		out = append(out, '%', hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(out)
}

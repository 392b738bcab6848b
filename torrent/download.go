package torrent

import (
	"bytes"
	"crypto/sha1"
	"fmt"

	"github.com/pkg/errors"

	"gotorrent/internal/logging"
	"gotorrent/peer"
)

// ErrPieceHashMismatch reports a piece whose SHA-1 digest doesn't
// match the metainfo's recorded hash. The original source never
// performs this check (spec §9); SPEC_FULL adds it per the spec's own
// "implementations SHOULD" guidance.
type ErrPieceHashMismatch struct{ PieceIndex int }

func (e ErrPieceHashMismatch) Error() string {
	return fmt.Sprintf("piece %d failed hash verification", e.PieceIndex)
}

// DownloadAll downloads every piece of t sequentially over sess (the
// single peer chosen by the driver, spec §4.4 "Full download"),
// verifies each piece's hash, and returns the concatenated file bytes.
func DownloadAll(sess *peer.Session, t *Torrent) ([]byte, error) {
	total := t.GetFileLength()
	out := make([]byte, 0, total)

	for index, hash := range t.Info.Pieces {
		length := t.PieceLength(index)
		buf, err := sess.DownloadPiece(index, length)
		if err != nil {
			return nil, errors.Wrapf(err, "download piece %d", index)
		}
		if sum := sha1.Sum(buf); !bytes.Equal(sum[:], hash[:]) {
			return nil, ErrPieceHashMismatch{PieceIndex: index}
		}
		if err := sess.SendHave(index); err != nil {
			return nil, errors.Wrap(err, "send have")
		}
		out = append(out, buf...)

		logging.Log.WithField("piece", index).
			WithField("of", len(t.Info.Pieces)).
			Debug("piece downloaded and verified")
	}

	return out, nil
}

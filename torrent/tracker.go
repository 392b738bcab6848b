package torrent

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"gotorrent/bencode"
	"gotorrent/peer"
)

// ErrMalformedTrackerResponse reports a tracker response whose `peers`
// field isn't a compact byte-string.
type ErrMalformedTrackerResponse struct{ Reason string }

func (e ErrMalformedTrackerResponse) Error() string {
	return fmt.Sprintf("malformed tracker response: %s", e.Reason)
}

const peerCompactWidth = 6

func byteModeForTracker(key string) (int, bool) {
	if key == "peers" {
		return peerCompactWidth, true
	}
	return 0, false
}

// Client is a tracker HTTP client. It remembers the last time it
// queried the tracker and the refresh interval the tracker advertised,
// matching spec §4.3 ("the tracker service tracks its last request
// time and refresh interval; it is otherwise stateless across calls").
type Client struct {
	HTTP        *http.Client
	Interval    time.Duration
	LastUpdated time.Time
}

// NewClient returns a tracker client using a default HTTP client.
func NewClient() *Client {
	return &Client{HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// GetPeers issues the tracker GET described in spec §4.3 and returns
// the decoded peer list.
func (c *Client) GetPeers(t *Torrent, peerID [20]byte, port uint16, uploaded, downloaded, left int64) ([]peer.Peer, error) {
	reqURL, err := c.buildTrackerURL(t, peerID, port, uploaded, downloaded, left)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Get(reqURL)
	if err != nil {
		return nil, errors.Wrap(err, "tracker GET request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read tracker response")
	}

	peers, err := c.parseResponse(body)
	if err != nil {
		return nil, err
	}
	c.LastUpdated = time.Now()
	return peers, nil
}

func (c *Client) buildTrackerURL(t *Torrent, peerID [20]byte, port uint16, uploaded, downloaded, left int64) (string, error) {
	base, err := url.Parse(t.Announce)
	if err != nil {
		return "", errors.Wrap(err, "parse announce url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", ErrInvalidAnnounceURL{URL: t.Announce}
	}

	hash, err := t.InfoHash()
	if err != nil {
		return "", err
	}

	params := url.Values{
		"peer_id":    {string(peerID[:])},
		"port":       {strconv.Itoa(int(port))},
		"uploaded":   {strconv.FormatInt(uploaded, 10)},
		"downloaded": {strconv.FormatInt(downloaded, 10)},
		"left":       {strconv.FormatInt(left, 10)},
		"compact":    {"1"},
	}
	base.RawQuery = params.Encode()
	// info_hash is concatenated pre-encoded rather than run through
	// url.Values.Encode, since its percent-escaping is byte-for-byte,
	// not the subset url.QueryEscape treats as reserved.
	base.RawQuery += "&info_hash=" + URLEncodedInfoHash(hash)
	return base.String(), nil
}

func (c *Client) parseResponse(body []byte) ([]peer.Peer, error) {
	v, _, err := bencode.Decode(body, byteModeForTracker)
	if err != nil {
		return nil, errors.Wrap(err, "decode tracker response")
	}
	if v.Kind != bencode.KindDict {
		return nil, ErrMalformedTrackerResponse{Reason: "response is not a dictionary"}
	}

	if intervalDV, ok := v.Dict.Get("interval"); ok && !intervalDV.IsBytes() && intervalDV.Value.Kind == bencode.KindInteger {
		c.Interval = time.Duration(intervalDV.Value.Int) * time.Second
	}

	peersDV, ok := v.Dict.Get("peers")
	if !ok || !peersDV.IsBytes() {
		return nil, ErrMalformedTrackerResponse{Reason: "peers field missing or not compact"}
	}

	peers := make([]peer.Peer, 0, len(peersDV.Bytes.Chunks))
	for _, chunk := range peersDV.Bytes.Chunks {
		p, err := peer.FromCompact(chunk)
		if err != nil {
			return nil, errors.Wrap(err, "decode compact peer")
		}
		peers = append(peers, p)
	}
	return peers, nil
}

package main

import (
	"os"

	"github.com/pkg/errors"

	"gotorrent/torrent"
)

// listenPort is the port this client advertises to the tracker. There
// is no inbound listener (this client never seeds, per spec
// Non-goals); it is only a tracker-protocol formality.
const listenPort = 6881

func loadTorrentFile(path string) (*torrent.Torrent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read torrent file %s", path)
	}
	t, err := torrent.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse torrent file %s", path)
	}
	return t, nil
}

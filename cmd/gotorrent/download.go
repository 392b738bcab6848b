package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gotorrent/internal/identity"
	"gotorrent/internal/logging"
	"gotorrent/peer"
	"gotorrent/torrent"
)

func newDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download <file>",
		Short: "Download a single-file torrent sequentially from its first peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTorrentFile(args[0])
			if err != nil {
				return err
			}
			if t.Info.FileType.IsMultiFile() {
				return errors.New("multi-file torrents are recognized but not downloadable")
			}

			peerID := identity.NewPeerID()
			tc := torrent.NewClient()
			peers, err := tc.GetPeers(t, peerID, listenPort, 0, 0, t.GetFileLength())
			if err != nil {
				return errors.Wrap(err, "discover peers")
			}
			if len(peers) == 0 {
				return errors.New("tracker returned no peers")
			}

			hash, err := t.InfoHash()
			if err != nil {
				return err
			}

			chosen := peers[0]
			logging.Log.WithField("peer", chosen.Addr()).Info("connecting")
			sess, err := peer.Dial(chosen, peerID, hash)
			if err != nil {
				return errors.Wrapf(err, "dial peer %s", chosen)
			}
			defer sess.Close()

			data, err := torrent.DownloadAll(sess, t)
			if err != nil {
				return errors.Wrap(err, "download torrent")
			}

			if err := os.WriteFile(t.Info.Name, data, 0o644); err != nil {
				return errors.Wrapf(err, "write output file %s", t.Info.Name)
			}

			green := color.New(color.FgGreen)
			green.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", t.Info.Name, len(data))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gotorrent/internal/identity"
	"gotorrent/torrent"
)

func newInfoCommand() *cobra.Command {
	var peerDiscovery bool
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print a torrent's metainfo, optionally discovering peers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTorrentFile(args[0])
			if err != nil {
				return err
			}

			hash, err := t.InfoHash()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			bold.Fprintln(out, "Name:", t.Info.Name)
			fmt.Fprintln(out, "Announce:", t.Announce)
			fmt.Fprintf(out, "Info hash: %x\n", hash)
			fmt.Fprintln(out, "Piece length:", t.Info.PieceLength)
			fmt.Fprintln(out, "Pieces:", len(t.Info.Pieces))
			fmt.Fprintln(out, "Length:", t.GetFileLength())
			if t.Info.FileType.IsMultiFile() {
				fmt.Fprintln(out, "Multi-file torrent (download not supported):")
				for _, f := range t.Info.FileType.Files() {
					fmt.Fprintf(out, "  %v (%d bytes)\n", f.Path, f.Length)
				}
			}

			if !peerDiscovery {
				return nil
			}

			peerID := identity.NewPeerID()
			tc := torrent.NewClient()
			peers, err := tc.GetPeers(t, peerID, listenPort, 0, 0, t.GetFileLength())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d peers:\n", len(peers))
			for _, p := range peers {
				fmt.Fprintln(out, p.Addr())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&peerDiscovery, "peer-discovery", "p", false, "query the tracker and list peers")
	return cmd
}

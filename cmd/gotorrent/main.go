// Command gotorrent is a minimal BitTorrent client: decode bencode
// literals, discover a torrent's peers, and download a single-file
// torrent sequentially from the first peer the tracker offers.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gotorrent/internal/logging"
)

var verbose bool

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "gotorrent",
		Short:   "A minimal, sequential, single-peer BitTorrent client",
		Version: "0.1.0",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetVerbose(verbose)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newDecodeCommand())
	root.AddCommand(newInfoCommand())
	root.AddCommand(newDownloadCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

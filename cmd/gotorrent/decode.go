package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gotorrent/bencode"
)

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <bencode-string>",
		Short: "Decode a bencode literal and print its value tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _, err := bencode.Decode([]byte(args[0]), bencode.NoByteMode)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderValue(v))
			return nil
		},
	}
}

// renderValue prints a decoded Value as a compact, JSON-like literal,
// preserving dict key order (a real encoding/json.Marshal would not).
func renderValue(v *bencode.Value) string {
	switch v.Kind {
	case bencode.KindString:
		return strconv.Quote(v.Str)
	case bencode.KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case bencode.KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case bencode.KindDict:
		keys := v.Dict.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			dv, _ := v.Dict.Get(k)
			parts[i] = strconv.Quote(k) + ":" + renderDictValue(dv)
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "null"
	}
}

func renderDictValue(dv *bencode.DictValue) string {
	if dv.IsBytes() {
		return strconv.Quote(fmt.Sprintf("<%d raw bytes>", dv.Bytes.Width*len(dv.Bytes.Chunks)))
	}
	return renderValue(dv.Value)
}

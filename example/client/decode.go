package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	iec104 "github.com/9d77v/iec104client"
)

type decodeFlags struct {
	catalog string
	utc     bool
}

func newDecodeCmd() *cobra.Command {
	flags := &decodeFlags{}
	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode APDUs given as hex strings",
		Example: `  iec104client decode "68 19 00 00 00 00 24 01 03 00 01 00 64 00 00 00 00 48 41 00 f4 01 1e 0e 0f 03 18"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dec, err := newDecoder(flags.catalog, flags.utc)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, arg := range args {
				data, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
				if err != nil {
					return fmt.Errorf("invalid hex %q: %w", arg, err)
				}
				if _, err := iec104.ParseFrame(data); err != nil {
					return err
				}
				asdu, err := dec.DecodeAPDU(data)
				if err != nil {
					return err
				}
				if err := enc.Encode(asdu); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.catalog, "catalog", "", "type catalogue yaml (default: built-in)")
	cmd.Flags().BoolVar(&flags.utc, "utc", false, "interpret CP56Time2a in UTC instead of local time")
	return cmd
}

func newDecoder(catalogPath string, utc bool) (*iec104.Decoder, error) {
	catalog := iec104.DefaultCatalog()
	if catalogPath != "" {
		f, err := os.Open(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()
		if catalog, err = iec104.LoadCatalog(f); err != nil {
			return nil, err
		}
	}
	var opts []iec104.DecoderOption
	if utc {
		opts = append(opts, iec104.WithLocation(time.UTC))
	}
	return iec104.NewDecoder(catalog, opts...), nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	iec104 "github.com/9d77v/iec104client"
)

type captureFlags struct {
	input   string
	port    uint16
	catalog string
	utc     bool
}

func newCaptureCmd() *cobra.Command {
	flags := &captureFlags{}
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Decode IEC 104 frames from a PCAP file",
		Long: `Decode IEC 104 frames from a PCAP file. Frames split over several TCP
segments are reassembled per flow. If --input is omitted, the first positional
argument is used.`,
		Example: `  iec104client capture --input rtu.pcap --port 2404`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.input == "" && len(args) > 0 {
				flags.input = args[0]
			}
			if flags.input == "" {
				return fmt.Errorf("required flag --input not set")
			}
			return runCapture(flags)
		},
	}
	cmd.Flags().StringVar(&flags.input, "input", "", "input PCAP file (required)")
	cmd.Flags().Uint16Var(&flags.port, "port", iec104.DefaultPort, "IEC 104 TCP port")
	cmd.Flags().StringVar(&flags.catalog, "catalog", "", "type catalogue yaml (default: built-in)")
	cmd.Flags().BoolVar(&flags.utc, "utc", false, "interpret CP56Time2a in UTC instead of local time")
	return cmd
}

type captureLine struct {
	Timestamp time.Time    `json:"timestamp"`
	Flow      string       `json:"flow"`
	Frame     string       `json:"frame,omitempty"`
	APDU      *iec104.APDU `json:"apdu,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func runCapture(flags *captureFlags) error {
	dec, err := newDecoder(flags.catalog, flags.utc)
	if err != nil {
		return err
	}
	f, err := os.Open(flags.input)
	if err != nil {
		return fmt.Errorf("open pcap: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(os.Stdout)
	return iec104.DecodeCapture(f, flags.port, dec, func(rec iec104.CaptureRecord) {
		line := captureLine{Timestamp: rec.Timestamp, Flow: rec.Flow, APDU: rec.APDU}
		switch fr := rec.Frame.(type) {
		case iec104.UFrame:
			line.Frame = fr.Function.String()
		case iec104.SFrame:
			line.Frame = fmt.Sprintf("S(recv=%d)", fr.Recv)
		case iec104.IFrame:
			line.Frame = fmt.Sprintf("I(send=%d,recv=%d)", fr.Send, fr.Recv)
		}
		if rec.Err != nil {
			line.Error = rec.Err.Error()
		}
		_ = enc.Encode(line)
	})
}

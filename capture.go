package iec104

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

//CaptureRecord 抓包文件中解析出的一帧
type CaptureRecord struct {
	Timestamp time.Time
	Flow      string
	Frame     Frame
	APDU      *APDU //仅I帧
	Err       error
}

//DecodeCapture 解析pcap文件中端口为port的104报文
//同一TCP流的数据按顺序拼接,跨包的帧可以正确切分
func DecodeCapture(r io.Reader, port uint16, dec *Decoder, fn func(CaptureRecord)) error {
	if dec == nil {
		dec = NewDecoder(nil)
	}
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return fmt.Errorf("open pcap: %w", err)
	}
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	streams := make(map[string][]byte)
	for {
		packet, err := source.NextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read packet: %w", err)
		}
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, _ := tcpLayer.(*layers.TCP)
		if uint16(tcp.SrcPort) != port && uint16(tcp.DstPort) != port {
			continue
		}
		if len(tcp.Payload) == 0 || packet.NetworkLayer() == nil {
			continue
		}
		flow := packet.NetworkLayer().NetworkFlow()
		key := fmt.Sprintf("%s:%d->%s:%d", flow.Src(), uint16(tcp.SrcPort), flow.Dst(), uint16(tcp.DstPort))
		ts := packet.Metadata().Timestamp
		streams[key] = splitFrames(append(streams[key], tcp.Payload...), func(data []byte, ferr error) {
			rec := CaptureRecord{Timestamp: ts, Flow: key, Err: ferr}
			if ferr == nil {
				rec.Frame, rec.Err = ParseFrame(data)
			}
			if f, ok := rec.Frame.(IFrame); ok {
				apdu, err := dec.newAPDU(data, f, ts)
				rec.APDU = &apdu
				rec.Err = err
			}
			fn(rec)
		})
	}
}

//splitFrames 切分完整的帧,返回剩余的不完整数据
//连续的非法字节合并为一个错误
func splitFrames(buf []byte, fn func([]byte, error)) []byte {
	r := bytes.NewReader(buf)
	var (
		skipped []byte
		first   error
		count   int
	)
	flush := func() {
		switch {
		case count == 1:
			fn(nil, first)
		case count > 1:
			fn(nil, newFramingError(fmt.Sprintf("跳过%d个字节重新同步", len(skipped)), skipped))
		}
		skipped, first, count = nil, nil, 0
	}
	for {
		offset := len(buf) - r.Len()
		data, err := readFrame(r)
		var fe *FramingError
		switch {
		case err == nil:
			flush()
			fn(data, nil)
		case errors.As(err, &fe):
			if count == 0 {
				first = err
			}
			count++
			skipped = append(skipped, fe.Data...)
		default:
			flush()
			//数据不完整,等待下一个包
			rest := make([]byte, len(buf)-offset)
			copy(rest, buf[offset:])
			return rest
		}
	}
}

package iec104

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePacket struct {
	srcPort uint16
	dstPort uint16
	payload string
}

func writeTestPCAP(t *testing.T, packets []capturePacket) *bytes.Buffer {
	t.Helper()
	out := &bytes.Buffer{}
	writer := pcapgo.NewWriter(out)
	require.NoError(t, writer.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, p := range packets {
		data := buildTCPPacket(t, p.srcPort, p.dstPort, uint32(i+1), parseHexString(p.payload))
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000+int64(i), 0),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, writer.WritePacket(ci, data))
	}
	return out
}

func buildTCPPacket(t *testing.T, srcPort, dstPort uint16, seq uint32, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       []byte{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    []byte{10, 0, 0, 1},
		DstIP:    []byte{10, 0, 0, 2},
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     seq,
		ACK:     true,
		PSH:     true,
		Window:  14600,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestDecodeCapture(t *testing.T) {
	pcap := writeTestPCAP(t, []capturePacket{
		{srcPort: 2404, dstPort: 50000, payload: "68 04 0b 00 00 00 68 19 00 00 00 00 24 01 03 00 01 00"},
		{srcPort: 2404, dstPort: 50000, payload: "64 00 00 00 00 48 41 00 f4 01 1e 0e 0f 03 18"},
		{srcPort: 50000, dstPort: 2404, payload: "68 04 01 00 02 00"},
		{srcPort: 50000, dstPort: 502, payload: "68 04 07 00 00 00"},
	})

	var records []CaptureRecord
	err := DecodeCapture(pcap, 2404, newTestDecoder(t), func(rec CaptureRecord) {
		records = append(records, rec)
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, UFrame{Function: StartDtCon}, records[0].Frame)
	assert.Equal(t, "10.0.0.1:2404->10.0.0.2:50000", records[0].Flow)
	assert.Nil(t, records[0].APDU)

	//跨包的I帧在第二个包到达后输出
	rec := records[1]
	require.NoError(t, rec.Err)
	assert.Equal(t, time.Unix(1700000001, 0).UTC(), rec.Timestamp.UTC())
	f, ok := rec.Frame.(IFrame)
	require.True(t, ok)
	assert.Equal(t, uint16(0), f.Send)
	require.NotNil(t, rec.APDU)
	require.NotNil(t, rec.APDU.ASDU)
	require.Len(t, rec.APDU.ASDU.Objects, 1)
	v, ok := rec.APDU.ASDU.Objects[0].Field(FieldFloat)
	require.True(t, ok)
	assert.Equal(t, float32(12.5), v.Float32)

	assert.Equal(t, SFrame{Recv: 1}, records[2].Frame)
	assert.Equal(t, "10.0.0.1:50000->10.0.0.2:2404", records[2].Flow)
}

func TestDecodeCaptureNotPCAP(t *testing.T) {
	err := DecodeCapture(bytes.NewReader([]byte("not a pcap file")), 2404, nil, func(CaptureRecord) {})
	assert.Error(t, err)
}

func TestSplitFrames(t *testing.T) {
	var frames [][]byte
	var errs []error
	collect := func(data []byte, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		frames = append(frames, data)
	}

	rest := splitFrames(parseHexString("68 04 43 00 00 00 00 68 04 01"), collect)
	assert.Equal(t, parseHexString("68 04 01"), rest)
	require.Len(t, frames, 1)
	assert.Equal(t, EncodeUFrame(TestFrAct), frames[0])
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrFraming)

	rest = splitFrames(append(rest, 0x00, 0x04, 0x00), collect)
	assert.Empty(t, rest)
	require.Len(t, frames, 2)
	assert.Equal(t, EncodeSFrame(2), frames[1])
}

func TestSplitFramesMergesGarbage(t *testing.T) {
	var (
		frames [][]byte
		errs   []error
	)
	rest := splitFrames(parseHexString("aa bb cc 68 04 0b 00 00 00 dd ee"), func(data []byte, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		frames = append(frames, data)
	})
	assert.Empty(t, rest)
	require.Len(t, frames, 1)
	assert.Equal(t, EncodeUFrame(StartDtCon), frames[0])

	require.Len(t, errs, 2)
	var fe *FramingError
	require.ErrorAs(t, errs[0], &fe)
	assert.Equal(t, parseHexString("aa bb cc"), fe.Data)
	require.ErrorAs(t, errs[1], &fe)
	assert.Equal(t, parseHexString("dd ee"), fe.Data)
	assert.ErrorIs(t, errs[1], ErrFraming)
}

package iec104

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//parseHexString 解析带空格的十六进制字符串
func parseHexString(s string) []byte {
	data, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return data
}

func TestEncodeUFrame(t *testing.T) {
	tests := []struct {
		name string
		f    UFunction
		want string
	}{
		{"StartDtAct", StartDtAct, "68 04 07 00 00 00"},
		{"StartDtCon", StartDtCon, "68 04 0b 00 00 00"},
		{"StopDtAct", StopDtAct, "68 04 13 00 00 00"},
		{"StopDtCon", StopDtCon, "68 04 23 00 00 00"},
		{"TestFrAct", TestFrAct, "68 04 43 00 00 00"},
		{"TestFrCon", TestFrCon, "68 04 83 00 00 00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := EncodeUFrame(tt.f)
			assert.Equal(t, parseHexString(tt.want), data)

			frame, err := ParseFrame(data)
			require.NoError(t, err)
			assert.Equal(t, UFrame{Function: tt.f}, frame)
		})
	}
}

func TestSFrameSequenceRoundTrip(t *testing.T) {
	for _, seq := range []uint16{0, 1, 127, 128, 255, 256, 16383, 16384, 32766, 32767} {
		data := EncodeSFrame(seq)
		assert.Equal(t, byte(0x01), data[2])
		assert.Equal(t, byte(0x00), data[4]&0x01, "reserved bit of seq %d", seq)
		assert.Equal(t, byte((seq<<1)&0xFF), data[4])
		assert.Equal(t, byte((seq>>7)&0xFF), data[5])

		frame, err := ParseFrame(data)
		require.NoError(t, err)
		assert.Equal(t, SFrame{Recv: seq}, frame)
	}
}

func TestEncodeIFrame(t *testing.T) {
	asdu := parseHexString("64 01 06 00 01 00 00 00 00 14")
	data, err := EncodeIFrame(32767, 5, asdu)
	require.NoError(t, err)
	assert.Equal(t, parseHexString("68 0e fe ff 0a 00 64 01 06 00 01 00 00 00 00 14"), data)

	frame, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, IFrame{Send: 32767, Recv: 5, ASDU: asdu}, frame)

	_, err = EncodeIFrame(0, 0, make([]byte, maxASDULen+1))
	assert.ErrorIs(t, err, ErrFrameTooLong)
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name   string
		hexStr string
	}{
		{"Empty", ""},
		{"OnlyStart", "68"},
		{"BadStartByte", "67 04 07 00 00 00"},
		{"LengthTooShort", "68 03 07 00 00"},
		{"Truncated", "68 04 07 00 00"},
		{"LongerThanDeclared", "68 04 07 00 00 00 00"},
		{"SFrameWithPayload", "68 05 01 00 00 00 01"},
		{"UFrameWithPayload", "68 05 07 00 00 00 01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(parseHexString(tt.hexStr))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFraming), "want framing error, got %v", err)
		})
	}
}

func TestReadFrame(t *testing.T) {
	stream := parseHexString("68 04 0b 00 00 00 ff 68 04 01 00 02 00 68 04 43 00")
	r := bytes.NewReader(stream)

	data, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, EncodeUFrame(StartDtCon), data)

	//起始符错误只消耗一个字节
	_, err = readFrame(r)
	assert.ErrorIs(t, err, ErrFraming)

	data, err = readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, EncodeSFrame(1), data)

	_, err = readFrame(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = readFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

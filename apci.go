package iec104

import (
	"fmt"
	"io"
)

//startFrame 起始符
const startFrame = 0x68

const (
	//apciLen APCI长度(起始符+长度+4个控制域)
	apciLen = 6
	//ctrLen 控制域长度
	ctrLen = 4
	//maxAPDULen 长度域最大值
	maxAPDULen = 253
	//maxASDULen I帧可携带的最大ASDU长度
	maxASDULen = maxAPDULen - ctrLen
)

//UFunction U帧控制功能
type UFunction byte

//U帧控制域第一个字节
const (
	StartDtAct UFunction = 0x07 //启动激活帧
	StartDtCon UFunction = 0x0b //启动确认帧
	StopDtAct  UFunction = 0x13 //停止激活帧
	StopDtCon  UFunction = 0x23 //停止确认帧
	TestFrAct  UFunction = 0x43 //测试激活帧
	TestFrCon  UFunction = 0x83 //测试确认帧
)

func (f UFunction) String() string {
	switch f {
	case StartDtAct:
		return "STARTDT_ACT"
	case StartDtCon:
		return "STARTDT_CON"
	case StopDtAct:
		return "STOPDT_ACT"
	case StopDtCon:
		return "STOPDT_CON"
	case TestFrAct:
		return "TESTFR_ACT"
	case TestFrCon:
		return "TESTFR_CON"
	default:
		return fmt.Sprintf("U(0x%02X)", byte(f))
	}
}

//FrameType 帧类型
type FrameType byte

const (
	iFrame FrameType = 0
	sFrame FrameType = 1
	uFrame FrameType = 3
)

func (t FrameType) String() string {
	switch t {
	case iFrame:
		return "I"
	case sFrame:
		return "S"
	case uFrame:
		return "U"
	default:
		return "?"
	}
}

//Frame APCI帧
type Frame interface {
	Type() FrameType
}

//IFrame I帧
type IFrame struct {
	Send uint16
	Recv uint16
	ASDU []byte
}

//Type ..
func (IFrame) Type() FrameType { return iFrame }

//SFrame S帧
type SFrame struct {
	Recv uint16
}

//Type ..
func (SFrame) Type() FrameType { return sFrame }

//UFrame U帧
type UFrame struct {
	Function UFunction
}

//Type ..
func (UFrame) Type() FrameType { return uFrame }

//APCI 控制域
type APCI struct {
	ApduLen int
	Ctr1    byte
	Ctr2    byte
	Ctr3    byte
	Ctr4    byte
}

//putSeq 15位序号写入两个控制域字节,最低位保留为0
func putSeq(seq uint16) (lo, hi byte) {
	return byte(seq<<1) & 0xFF, byte(seq>>7) & 0xFF
}

//getSeq 从两个控制域字节解析15位序号
func getSeq(lo, hi byte) uint16 {
	return (uint16(lo)>>1 | uint16(hi)<<7) & seqMask
}

//EncodeUFrame 编码U帧
func EncodeUFrame(f UFunction) []byte {
	return []byte{startFrame, ctrLen, byte(f), 0x00, 0x00, 0x00}
}

//EncodeSFrame 编码S帧
func EncodeSFrame(recv uint16) []byte {
	lo, hi := putSeq(recv)
	return []byte{startFrame, ctrLen, 0x01, 0x00, lo, hi}
}

//EncodeIFrame 编码I帧
func EncodeIFrame(send, recv uint16, asdu []byte) ([]byte, error) {
	if len(asdu) > maxASDULen {
		return nil, fmt.Errorf("%w: asdu长度%d", ErrFrameTooLong, len(asdu))
	}
	sLo, sHi := putSeq(send)
	rLo, rHi := putSeq(recv)
	data := make([]byte, 0, apciLen+len(asdu))
	data = append(data, startFrame, byte(ctrLen+len(asdu)), sLo, sHi, rLo, rHi)
	data = append(data, asdu...)
	return data, nil
}

//ParseFrame 解析完整的APDU报文,先校验起始符和长度
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < 2 {
		return nil, newFramingError("报文不完整", data)
	}
	if data[0] != startFrame {
		return nil, newFramingError(fmt.Sprintf("起始符错误0x%02X", data[0]), data)
	}
	length := int(data[1])
	if length < ctrLen || length > maxAPDULen {
		return nil, newFramingError(fmt.Sprintf("长度域非法%d", length), data)
	}
	if len(data)-2 != length {
		return nil, newFramingError(fmt.Sprintf("长度不一致,声明%d,实际%d", length, len(data)-2), data)
	}
	apci := &APCI{
		ApduLen: length,
		Ctr1:    data[2],
		Ctr2:    data[3],
		Ctr3:    data[4],
		Ctr4:    data[5],
	}
	return apci.ParseCtr(data[apciLen:])
}

//ParseCtr 解析控制域
func (apci *APCI) ParseCtr(asdu []byte) (Frame, error) {
	switch {
	case apci.Ctr1&1 == byte(iFrame):
		return apci.parseIFrame(asdu), nil
	case apci.Ctr1&3 == byte(sFrame):
		if len(asdu) > 0 {
			return nil, newFramingError("S帧携带数据", asdu)
		}
		return apci.parseSFrame(), nil
	default:
		if len(asdu) > 0 {
			return nil, newFramingError("U帧携带数据", asdu)
		}
		return apci.parseUFrame(), nil
	}
}

//parseIFrame 解析I帧
func (apci *APCI) parseIFrame(asdu []byte) IFrame {
	payload := make([]byte, len(asdu))
	copy(payload, asdu)
	return IFrame{
		Send: getSeq(apci.Ctr1, apci.Ctr2),
		Recv: getSeq(apci.Ctr3, apci.Ctr4),
		ASDU: payload,
	}
}

func (apci *APCI) parseSFrame() SFrame {
	return SFrame{
		Recv: getSeq(apci.Ctr3, apci.Ctr4),
	}
}

func (apci *APCI) parseUFrame() UFrame {
	return UFrame{
		Function: UFunction(apci.Ctr1),
	}
}

//readFrame 从流中读取一帧
//起始符错误时只消耗一个字节,下次读取从下一个字节重新同步
func readFrame(r io.Reader) ([]byte, error) {
	head := make([]byte, 1, 2)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	if head[0] != startFrame {
		return nil, newFramingError(fmt.Sprintf("起始符错误0x%02X", head[0]), head)
	}
	head = head[:2]
	if _, err := io.ReadFull(r, head[1:]); err != nil {
		return nil, err
	}
	length := int(head[1])
	if length < ctrLen {
		return nil, newFramingError(fmt.Sprintf("长度域非法%d", length), head)
	}
	//长度不够继续读取,直至达到期望长度
	data := make([]byte, 2+length)
	copy(data, head)
	if _, err := io.ReadFull(r, data[2:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if length > maxAPDULen {
		return nil, newFramingError(fmt.Sprintf("长度域非法%d", length), data)
	}
	return data, nil
}

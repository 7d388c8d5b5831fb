package iec104

import (
	"errors"
	"fmt"
)

//错误定义
var (
	ErrTransport      = errors.New("iec104: transport error")
	ErrFraming        = errors.New("iec104: framing error")
	ErrDecode         = errors.New("iec104: decode error")
	ErrNotActive      = errors.New("iec104: link is not active")
	ErrClientStopped  = errors.New("iec104: client stopped")
	ErrAlreadyStarted = errors.New("iec104: client already started")
	ErrFrameTooLong   = errors.New("iec104: frame too long")
)

//TransportError 连接、读、写异常,非主动停止时触发重连
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("iec104: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

//Is 匹配ErrTransport
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

//FramingError 起始符或长度非法,丢弃该帧但不断开连接
type FramingError struct {
	Reason string
	Data   []byte
}

func newFramingError(reason string, data []byte) *FramingError {
	b := make([]byte, len(data))
	copy(b, data)
	return &FramingError{Reason: reason, Data: b}
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("iec104: 帧格式错误: %s [% X]", e.Reason, e.Data)
}

//Is 匹配ErrFraming
func (e *FramingError) Is(target error) bool { return target == ErrFraming }

//DecodeError ASDU解析异常,跳过对应的信息体或字段
type DecodeError struct {
	TypeID uint8
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("iec104: 类型%d解析失败: %s", e.TypeID, e.Reason)
	}
	return fmt.Sprintf("iec104: 类型%d字段[%s]解析失败: %s", e.TypeID, e.Field, e.Reason)
}

//Is 匹配ErrDecode
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

package iec104

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

//ValueKind 字段值类型
type ValueKind uint8

const (
	//KindRaw 未进一步解析的原始字节
	KindRaw ValueKind = iota
	//KindFloat32 IEEE STD 754短浮点数
	KindFloat32
	//KindTimestamp CP56Time2a时标
	KindTimestamp
)

func (k ValueKind) String() string {
	switch k {
	case KindFloat32:
		return "float32"
	case KindTimestamp:
		return "timestamp"
	default:
		return "raw"
	}
}

//Value 信息体字段值
type Value struct {
	Kind    ValueKind
	Float32 float32
	Time    time.Time
	Raw     []byte
}

//FloatValue ..
func FloatValue(f float32) Value { return Value{Kind: KindFloat32, Float32: f} }

//TimeValue ..
func TimeValue(t time.Time) Value { return Value{Kind: KindTimestamp, Time: t} }

//RawValue ..
func RawValue(b []byte) Value {
	raw := make([]byte, len(b))
	copy(raw, b)
	return Value{Kind: KindRaw, Raw: raw}
}

//MarshalJSON 浮点数输出数值,时标输出RFC3339,原始字节输出十六进制
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindFloat32:
		return json.Marshal(v.Float32)
	case KindTimestamp:
		return json.Marshal(v.Time.Format(time.RFC3339Nano))
	default:
		return json.Marshal(hex.EncodeToString(v.Raw))
	}
}

//Field 按格式顺序解析出的字段
type Field struct {
	Name  string
	Value Value
}

//InformationObject 信息体
type InformationObject struct {
	Address uint32  //信息体地址,3个字节
	Info    []byte  //信息元素原始字节
	Fields  []Field //按类型格式解析出的字段
}

//Field 按名称取字段值
func (o InformationObject) Field(name string) (Value, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

//MarshalJSON ..
func (o InformationObject) MarshalJSON() ([]byte, error) {
	fields := make(map[string]Value, len(o.Fields))
	for _, f := range o.Fields {
		fields[f.Name] = f.Value
	}
	return json.Marshal(struct {
		Address uint32           `json:"address"`
		Info    string           `json:"info"`
		Fields  map[string]Value `json:"fields,omitempty"`
	}{
		Address: o.Address,
		Info:    hex.EncodeToString(o.Info),
		Fields:  fields,
	})
}

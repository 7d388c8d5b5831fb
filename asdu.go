package iec104

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

//ASDU 应用服务数据单元
type ASDU struct {
	TypeID            uint8               `json:"type_id"`            //类型标识
	Sequence          bool                `json:"sq"`                 //是否连续
	Count             int                 `json:"count"`              //信息体数目
	Test              bool                `json:"test"`               //试验
	Negative          bool                `json:"negative"`           //否定确认
	Cause             uint8               `json:"cot"`                //传输原因
	OriginatorAddress uint8               `json:"originator_address"` //源发站地址
	CommonAddress     uint16              `json:"common_address"`     //公共地址
	Objects           []InformationObject `json:"objects"`
}

//数据类型
const (
	//MSpNa1 单点遥信
	MSpNa1 = 1
	//MDpNa1 双点遥信
	MDpNa1 = 3
	//MMeNa1 归一化遥测值
	MMeNa1 = 9
	//MMeNc1 短浮点遥测值
	MMeNc1 = 13
	//MItNa1 电度总量
	MItNa1 = 15
	//MSpTb1 带CP56Time2a时标的单点遥信
	MSpTb1 = 30
	//MMeTf1 带CP56Time2a时标的短浮点遥测值
	MMeTf1 = 36
	//MEiNA1 初始化结束
	MEiNA1 = 70
	//CIcNa1 总召唤
	CIcNa1 = 100
	//CCiNa1 电度总召唤
	CCiNa1 = 101
)

//传输原因
const (
	CotPeriodic = 1
	CotSpont    = 3
	CotAct      = 6
	CotActCon   = 7
	CotActTerm  = 10
	CotInrogen  = 20
)

const (
	//asduHeaderLen 类型标识+可变结构限定词+传输原因+源发站地址+公共地址
	asduHeaderLen = 6
	//ioaLen 信息体地址长度
	ioaLen = 3
)

//总召唤限定词
const (
	qoiStation = 20
	qccGeneral = 5
)

//Decoder ASDU解析器,类型目录只读
type Decoder struct {
	catalog *Catalog
	loc     *time.Location
	logger  logrus.FieldLogger
}

//DecoderOption ..
type DecoderOption func(*Decoder)

//WithLocation 时标所在时区,默认time.Local
func WithLocation(loc *time.Location) DecoderOption {
	return func(d *Decoder) {
		if loc != nil {
			d.loc = loc
		}
	}
}

//WithLogger ..
func WithLogger(logger logrus.FieldLogger) DecoderOption {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

//NewDecoder catalog为nil时使用内置类型目录
func NewDecoder(catalog *Catalog, opts ...DecoderOption) *Decoder {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	d := &Decoder{
		catalog: catalog,
		loc:     time.Local,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

//Catalog ..
func (d *Decoder) Catalog() *Catalog {
	return d.catalog
}

//DecodeAPDU 跳过6个字节的APCI解析ASDU
func (d *Decoder) DecodeAPDU(apdu []byte) (*ASDU, error) {
	if len(apdu) < apciLen {
		return nil, &DecodeError{Reason: fmt.Sprintf("APDU报文[%X]非法", apdu)}
	}
	return d.DecodeASDU(apdu[apciLen:])
}

// DecodeASDU 解析ASDU头及信息体
func (d *Decoder) DecodeASDU(b []byte) (*ASDU, error) {
	if len(b) < asduHeaderLen {
		return nil, &DecodeError{Reason: fmt.Sprintf("asdu[%X]长度不足", b)}
	}
	asdu := &ASDU{TypeID: b[0]}
	asdu.Sequence, asdu.Count = parseVariable(b[1])
	asdu.Test = b[2]&0x80 != 0
	asdu.Negative = b[2]&0x40 != 0
	asdu.Cause = b[2] & 0x3F
	asdu.OriginatorAddress = b[3]
	asdu.CommonAddress = binary.LittleEndian.Uint16(b[4:6])
	asdu.Objects = d.DecodeInformationObjects(b[asduHeaderLen:], asdu.TypeID, asdu.Sequence, asdu.Count)
	return asdu, nil
}

// parseVariable 解析可变结构限定词,最高位为SQ
func parseVariable(b byte) (sq bool, count int) {
	return b&0x80 != 0, int(b & 0x7F)
}

// DecodeInformationObjects 按类型目录切分信息体
// 未知类型返回空列表;数据不足时停止,不返回错误
func (d *Decoder) DecodeInformationObjects(payload []byte, typeID uint8, sq bool, count int) []InformationObject {
	objects := make([]InformationObject, 0, count)
	def, ok := d.catalog.Lookup(typeID)
	if !ok {
		d.logger.WithField("type_id", typeID).Debug("未定义的类型,跳过信息体")
		return objects
	}
	size := def.ElementLength
	index := 0
	var address uint32
	if sq {
		if len(payload) < ioaLen {
			return objects
		}
		address = parseIOA(payload)
		index = ioaLen
	}
	for len(objects) < count {
		if !sq {
			if index+ioaLen > len(payload) {
				break
			}
			address = parseIOA(payload[index:])
			index += ioaLen
		}
		if index+size > len(payload) {
			break
		}
		info := make([]byte, size)
		copy(info, payload[index:index+size])
		index += size
		obj := InformationObject{Address: address, Info: info}
		if len(def.Format) > 0 {
			fields, err := d.decodeFields(def, info)
			if err != nil {
				d.logger.WithFields(logrus.Fields{
					"type_id": typeID,
					"address": address,
				}).Warnf("解析信息体异常: %v", err)
			}
			obj.Fields = fields
		}
		objects = append(objects, obj)
	}
	if len(objects) < count {
		d.logger.WithField("type_id", typeID).Debugf("报文长度不足,期望%d个信息体,实际%d个", count, len(objects))
	}
	return objects
}

//parseIOA 3个字节小端信息体地址
func parseIOA(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// DecodeObjectStructure 按类型格式解析信息元素
func (d *Decoder) DecodeObjectStructure(typeID uint8, info []byte) ([]Field, error) {
	def, ok := d.catalog.Lookup(typeID)
	if !ok || len(def.Format) == 0 {
		return nil, &DecodeError{TypeID: typeID, Reason: "未找到类型格式"}
	}
	return d.decodeFields(def, info)
}

//decodeFields 依次消费各字段长度,出错时返回已解析的字段
func (d *Decoder) decodeFields(def TypeDef, info []byte) ([]Field, error) {
	fields := make([]Field, 0, len(def.Format))
	cursor := 0
	for _, name := range def.Format {
		length, ok := d.catalog.ElementLength(name)
		if !ok {
			//长度未知无法继续移动游标
			return fields, &DecodeError{TypeID: def.ID, Field: name, Reason: "未找到字段长度"}
		}
		if cursor+length > len(info) {
			return fields, &DecodeError{TypeID: def.ID, Field: name, Reason: fmt.Sprintf("需要%d个字节,剩余%d个", length, len(info)-cursor)}
		}
		value, err := d.decodeValue(name, info[cursor:cursor+length])
		if err != nil {
			return fields, &DecodeError{TypeID: def.ID, Field: name, Reason: err.Error()}
		}
		fields = append(fields, Field{Name: name, Value: value})
		cursor += length
	}
	return fields, nil
}

func (d *Decoder) decodeValue(name string, b []byte) (Value, error) {
	switch name {
	case FieldFloat:
		if len(b) != 4 {
			return Value{}, fmt.Errorf("浮点数长度应为4,实际%d", len(b))
		}
		return FloatValue(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case FieldCP56Time:
		t, err := ParseCP56Time2a(b, d.loc)
		if err != nil {
			return Value{}, err
		}
		return TimeValue(t), nil
	default:
		return RawValue(b), nil
	}
}

//buildCommand 单个信息体的控制方向ASDU,信息体地址为0
func buildCommand(typeID uint8, commonAddress uint16, qualifier byte) []byte {
	ca := make([]byte, 2)
	binary.LittleEndian.PutUint16(ca, commonAddress)
	return []byte{typeID, 0x01, CotAct, 0x00, ca[0], ca[1], 0x00, 0x00, 0x00, qualifier}
}

package iec104

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

//APDU 收到的I帧及其解析结果,入队后不再修改
type APDU struct {
	Send     uint16    //对端发送序号
	Recv     uint16    //对端接收序号
	Raw      []byte    //完整报文
	ASDU     *ASDU     //解析失败时为nil
	Received time.Time //接收时间
}

//newAPDU 解析I帧
func (d *Decoder) newAPDU(raw []byte, f IFrame, received time.Time) (APDU, error) {
	apdu := APDU{
		Send:     f.Send,
		Recv:     f.Recv,
		Raw:      raw,
		Received: received,
	}
	asdu, err := d.DecodeAPDU(raw)
	if err != nil {
		return apdu, err
	}
	apdu.ASDU = asdu
	return apdu, nil
}

//MarshalJSON ..
func (a APDU) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Send     uint16    `json:"send"`
		Recv     uint16    `json:"recv"`
		Raw      string    `json:"raw"`
		ASDU     *ASDU     `json:"asdu,omitempty"`
		Received time.Time `json:"received"`
	}{a.Send, a.Recv, hex.EncodeToString(a.Raw), a.ASDU, a.Received})
}

package iec104

import (
	"encoding/binary"
	"fmt"
	"time"
)

//cp56Len CP56Time2a长度
const cp56Len = 7

// ParseCP56Time2a 解析7个字节时标
// 字节0-1为分钟内毫秒数(小端,低14位),字节2-6依次为分、时、日、月、年(2000年起)
// 低14位最大表示16.383秒,高位被忽略
func ParseCP56Time2a(b []byte, loc *time.Location) (time.Time, error) {
	if len(b) != cp56Len {
		return time.Time{}, fmt.Errorf("CP56Time2a长度应为%d,实际%d", cp56Len, len(b))
	}
	if loc == nil {
		loc = time.Local
	}
	milliseconds := int(binary.LittleEndian.Uint16(b[0:2]) & 0x3FFF)
	minute := int(b[2] & 0x3F)
	hour := int(b[3] & 0x1F)
	day := int(b[4] & 0x1F)
	month := int(b[5] & 0x0F)
	year := int(b[6]) + 2000
	if minute > 59 || hour > 23 || day < 1 || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("CP56Time2a取值非法[% X]", b)
	}
	second := milliseconds / 1000
	microsecond := (milliseconds % 1000) * 1000
	t := time.Date(year, time.Month(month), day, hour, minute, second, microsecond*int(time.Microsecond), loc)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("CP56Time2a日期非法[% X]", b)
	}
	return t, nil
}

// CP56Time2a 将时间编码为7个字节时标
// 毫秒数按16位写入,秒数超过16.383时ParseCP56Time2a读回的值不同
func CP56Time2a(t time.Time) []byte {
	b := make([]byte, cp56Len)
	ms := uint16(t.Second()*1000 + t.Nanosecond()/int(time.Millisecond))
	binary.LittleEndian.PutUint16(b[0:2], ms)
	b[2] = byte(t.Minute())
	b[3] = byte(t.Hour())
	//高3位为星期,周一为1
	dow := (int(t.Weekday())+6)%7 + 1
	b[4] = byte(t.Day()) | byte(dow)<<5
	b[5] = byte(t.Month())
	b[6] = byte(t.Year() - 2000)
	return b
}

package worker

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	iec104 "github.com/9d77v/iec104client"
)

//pollTimeout 队列为空时的等待时间
const pollTimeout = time.Second

//Handler 处理接收到的已解析数据,每条数据输出一行json
//ctx取消后先输出队列中剩余的数据再退出
func Handler(ctx context.Context, q *iec104.Queue, out io.Writer, logger *logrus.Logger) {
	logger.Info("数据处理协程启动")
	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			n := 0
			for q.Len() > 0 {
				apdu, ok := q.Get(0)
				if !ok {
					break
				}
				write(enc, apdu, logger)
				n++
			}
			logger.Infof("数据处理协程停止,输出队列剩余%d条", n)
			return
		default:
		}
		apdu, ok := q.Get(pollTimeout)
		if !ok {
			continue
		}
		write(enc, apdu, logger)
	}
}

func write(enc *json.Encoder, apdu iec104.APDU, logger *logrus.Logger) {
	if apdu.ASDU != nil {
		logger.Debugf("接收到数据类型:%d,原因:%d,长度:%d", apdu.ASDU.TypeID, apdu.ASDU.Cause, len(apdu.ASDU.Objects))
	}
	if err := enc.Encode(apdu); err != nil {
		logger.Errorf("输出数据失败: %v", err)
	}
}

package iec104

import (
	"fmt"
	"time"
)

//Timer 104规约超时定时器
type Timer int

const (
	//T0 连接建立超时
	T0 Timer = iota
	//T1 发送I帧后等待确认超时
	T1
	//T2 收到I帧后无数据时发送S帧确认超时
	T2
	//T3 链路空闲时发送测试帧超时
	T3
	timerCount
)

func (t Timer) String() string {
	if t < T0 || t >= timerCount {
		return fmt.Sprintf("Timer(%d)", int(t))
	}
	return fmt.Sprintf("T%d", int(t))
}

//TimeoutEvent 定时器超时事件,T0、T1交给调用方处理
type TimeoutEvent struct {
	Timer   Timer
	Elapsed time.Duration
}

//timerSet 四个相互独立的超时判断
type timerSet struct {
	limits [timerCount]time.Duration
	last   [timerCount]time.Time
	armed  [timerCount]bool
}

func newTimerSet(t0, t1, t2, t3 time.Duration) *timerSet {
	return &timerSet{limits: [timerCount]time.Duration{t0, t1, t2, t3}}
}

//arm 启动定时器,或刷新最后活动时间
func (ts *timerSet) arm(t Timer, now time.Time) {
	ts.last[t] = now
	ts.armed[t] = true
}

func (ts *timerSet) disarm(t Timer) {
	ts.armed[t] = false
}

func (ts *timerSet) isArmed(t Timer) bool {
	return ts.armed[t]
}

func (ts *timerSet) elapsed(t Timer, now time.Time) time.Duration {
	return now.Sub(ts.last[t])
}

//expired 已启动且超过阈值
func (ts *timerSet) expired(t Timer, now time.Time) bool {
	return ts.armed[t] && ts.elapsed(t, now) > ts.limits[t]
}

func (ts *timerSet) reset() {
	for t := T0; t < timerCount; t++ {
		ts.armed[t] = false
		ts.last[t] = time.Time{}
	}
}

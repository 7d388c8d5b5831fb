package iec104

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

//State 链路状态
type State string

//链路状态
const (
	StateDisconnected    State = "disconnected"
	StateConnecting      State = "connecting"
	StateAwaitingConfirm State = "awaiting_confirm"
	StateActive          State = "active"
	StateStopping        State = "stopping"
	StateReconnecting    State = "reconnecting"
)

//状态迁移事件
const (
	eventDial    = "dial"
	eventDialed  = "dialed"
	eventConfirm = "confirm"
	eventAbort   = "abort"
	eventRetry   = "retry"
	eventFail    = "fail"
	eventStop    = "stop"
	eventStopped = "stopped"
)

//lifecycle 连接、握手、运行、停止、重连状态机
type lifecycle struct {
	fsm *fsm.FSM
	log logrus.FieldLogger
}

func newLifecycle(log logrus.FieldLogger) *lifecycle {
	l := &lifecycle{log: log}
	l.fsm = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventDial, Src: []string{string(StateDisconnected), string(StateReconnecting)}, Dst: string(StateConnecting)},
			{Name: eventDialed, Src: []string{string(StateConnecting)}, Dst: string(StateAwaitingConfirm)},
			{Name: eventConfirm, Src: []string{string(StateAwaitingConfirm)}, Dst: string(StateActive)},
			{Name: eventAbort, Src: []string{string(StateConnecting)}, Dst: string(StateDisconnected)},
			{Name: eventRetry, Src: []string{string(StateConnecting)}, Dst: string(StateReconnecting)},
			{Name: eventFail, Src: []string{string(StateAwaitingConfirm), string(StateActive)}, Dst: string(StateReconnecting)},
			{Name: eventStop, Src: []string{
				string(StateConnecting),
				string(StateAwaitingConfirm),
				string(StateActive),
				string(StateReconnecting),
			}, Dst: string(StateStopping)},
			{Name: eventStopped, Src: []string{string(StateStopping)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("链路状态 %s -> %s", e.Src, e.Dst)
			},
		},
	)
	return l
}

//fire 触发迁移,状态不变时不视为错误
func (l *lifecycle) fire(event string) error {
	err := l.fsm.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err == nil || errors.As(err, &noTransition) {
		return nil
	}
	l.log.Debugf("忽略状态事件%s: %v", event, err)
	return err
}

func (l *lifecycle) current() State {
	return State(l.fsm.Current())
}

func (l *lifecycle) is(s State) bool {
	return l.fsm.Is(string(s))
}

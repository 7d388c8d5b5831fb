package iec104

import (
	"sync"
	"time"
)

//Queue 已解析I帧的先进先出队列
//capacity为0时不限长度,否则满时丢弃最早的数据
type Queue struct {
	mu       sync.Mutex
	items    []APDU
	capacity int
	dropped  uint64
	notify   chan struct{}
}

//NewQueue ..
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

//Put 入队,返回是否丢弃了最早的数据
func (q *Queue) Put(a APDU) (dropped bool) {
	q.mu.Lock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.items[0] = APDU{}
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, a)
	q.mu.Unlock()
	q.signal()
	return dropped
}

//Get 出队,队列为空时最多等待timeout
func (q *Queue) Get(timeout time.Duration) (APDU, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if a, ok := q.pop(); ok {
			return a, true
		}
		select {
		case <-q.notify:
		case <-timer.C:
			return q.pop()
		}
	}
}

func (q *Queue) pop() (APDU, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return APDU{}, false
	}
	a := q.items[0]
	q.items[0] = APDU{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		//还有数据时唤醒其他消费者
		q.signal()
	}
	return a, true
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

//Len 当前队列长度,不出队
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

//Dropped 因队列已满丢弃的数量
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

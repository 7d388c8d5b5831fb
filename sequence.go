package iec104

import "time"

const (
	//seqModulo 序号为15位,按32768取模
	seqModulo = 32768
	seqMask   = seqModulo - 1
)

//seqAdd 序号加n,按32768回绕
func seqAdd(seq uint16, n int) uint16 {
	return uint16((int(seq&seqMask) + n) % seqModulo)
}

//seqDistance from到to的前向距离
func seqDistance(from, to uint16) int {
	return (int(to&seqMask) - int(from&seqMask) + seqModulo) % seqModulo
}

//DiscrepancyEvent 严格模式下对端发送序号与本地接收序号不一致
type DiscrepancyEvent struct {
	Expected uint16
	Received uint16
}

type sentIFrame struct {
	seq uint16
	at  time.Time
}

//sequence 收发序号及确认策略
type sequence struct {
	strict     bool
	maxUnacked int

	ssn     uint16
	rsn     uint16
	peerSSN uint16
	//unacked 上次发送S帧以来收到的I帧数量
	unacked int
	//pending 已发送未被确认的I帧
	pending []sentIFrame
}

func newSequence(strict bool, maxUnacked int) *sequence {
	if maxUnacked < 1 {
		maxUnacked = 1
	}
	return &sequence{strict: strict, maxUnacked: maxUnacked}
}

//reset 新建TCP连接时序号清零
func (s *sequence) reset() {
	s.ssn = 0
	s.rsn = 0
	s.peerSSN = 0
	s.unacked = 0
	s.pending = nil
}

//received 收到I帧,返回是否需要立即发送S帧
//严格模式下比较对端发送序号与本地接收序号,信任模式直接采用对端序号
func (s *sequence) received(peer uint16) (ackDue bool, d *DiscrepancyEvent) {
	peer &= seqMask
	s.peerSSN = peer
	if s.strict {
		if peer != s.rsn {
			d = &DiscrepancyEvent{Expected: s.rsn, Received: peer}
		}
		s.rsn = seqAdd(s.rsn, 1)
	} else {
		s.rsn = seqAdd(peer, 1)
	}
	s.unacked++
	return s.unacked >= s.maxUnacked, d
}

//ackSeq S帧中的接收序号
func (s *sequence) ackSeq() uint16 {
	if s.strict {
		return s.rsn
	}
	return s.peerSSN
}

//acked S帧或I帧发出后清空待确认计数
func (s *sequence) acked() {
	s.unacked = 0
}

//sent I帧发送成功后登记并递增发送序号
func (s *sequence) sent(now time.Time) {
	s.pending = append(s.pending, sentIFrame{seq: s.ssn, at: now})
	s.ssn = seqAdd(s.ssn, 1)
	s.unacked = 0
}

//confirm 对端确认到recv(不含)为止的I帧,返回确认数量
//确认了从未发送的序号时ok为false
func (s *sequence) confirm(recv uint16) (n int, ok bool) {
	if len(s.pending) == 0 {
		return 0, recv&seqMask == s.ssn
	}
	n = seqDistance(s.pending[0].seq, recv)
	if n > len(s.pending) {
		return 0, false
	}
	s.pending = s.pending[n:]
	return n, true
}

//oldestPending 最早一个未被确认I帧的发送时间
func (s *sequence) oldestPending() (time.Time, bool) {
	if len(s.pending) == 0 {
		return time.Time{}, false
	}
	return s.pending[0].at, true
}

package iec104

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

//Client 104客户端
type Client struct {
	cfg     Config
	decoder *Decoder
	queue   *Queue
	state   *lifecycle
	Logger  *logrus.Logger
	log     *logrus.Entry
	now     func() time.Time

	//lock 保护以下所有会话状态,发送报文也在锁内完成
	lock            sync.Mutex
	conn            net.Conn
	connCancel      context.CancelFunc
	seq             *sequence
	timers          *timerSet
	awaitingConfirm bool
	stopped         bool
	lastCall        time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onConnect        func(c *Client)
	onConnectionLost func(c *Client, err error)
	onTimeout        func(c *Client, e TimeoutEvent)
	onDiscrepancy    func(c *Client, e DiscrepancyEvent)
}

//NewClient 初始化客户端,decoder为nil时使用内置类型目录
func NewClient(cfg Config, decoder *Decoder, logger *logrus.Logger) (*Client, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	log := logger.WithField("remote", cfg.Address())
	if decoder == nil {
		decoder = NewDecoder(nil, WithLogger(log))
	}
	c := &Client{
		cfg:     cfg,
		decoder: decoder,
		queue:   NewQueue(cfg.QueueCapacity),
		state:   newLifecycle(log),
		Logger:  logger,
		log:     log,
		now:     time.Now,
		seq:     newSequence(cfg.StrictSequence, cfg.MaxUnacked),
		timers:  newTimerSet(cfg.T0, cfg.T1, cfg.T2, cfg.T3),
	}
	c.onConnect = func(*Client) {}
	c.onConnectionLost = func(*Client, error) {}
	c.onTimeout = func(c *Client, e TimeoutEvent) {
		c.log.Warnf("%s超时,已过%s", e.Timer, e.Elapsed)
	}
	c.onDiscrepancy = func(c *Client, e DiscrepancyEvent) {
		c.log.Warnf("序号不一致,期望%d,收到%d", e.Expected, e.Received)
	}
	return c, nil
}

//SetConnectHandler 收到启动确认后调用
//所有处理函数都在独立协程中执行,不保证先后顺序
func (c *Client) SetConnectHandler(f func(c *Client)) *Client {
	if f != nil {
		c.onConnect = f
	}
	return c
}

//SetConnectionLostHandler 连接断开、开始重连前调用
func (c *Client) SetConnectionLostHandler(f func(c *Client, err error)) *Client {
	if f != nil {
		c.onConnectionLost = f
	}
	return c
}

//SetTimeoutHandler T0、T1超时时调用,可在其中调用Reconnect或Stop
func (c *Client) SetTimeoutHandler(f func(c *Client, e TimeoutEvent)) *Client {
	if f != nil {
		c.onTimeout = f
	}
	return c
}

//SetDiscrepancyHandler 严格模式下序号不一致时调用
func (c *Client) SetDiscrepancyHandler(f func(c *Client, e DiscrepancyEvent)) *Client {
	if f != nil {
		c.onDiscrepancy = f
	}
	return c
}

//Queue 已解析数据队列
func (c *Client) Queue() *Queue {
	return c.queue
}

//State 当前链路状态
func (c *Client) State() State {
	return c.state.current()
}

//IsActive 是否已收到启动确认
func (c *Client) IsActive() bool {
	return c.state.is(StateActive)
}

//Start 连接服务器并发送启动激活帧,连接失败时直接返回错误,不重试
//连接过程中调用Stop时返回ErrClientStopped
func (c *Client) Start(ctx context.Context) error {
	c.lock.Lock()
	if c.cancel != nil {
		c.lock.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.ctx, c.cancel = runCtx, cancel
	c.stopped = false
	c.lock.Unlock()

	c.log.Info("开始连接服务器")
	_ = c.state.fire(eventDial)
	conn, err := c.dial(runCtx)
	if err != nil {
		c.log.Errorf("连接服务器失败: %v", err)
		cancel()
		c.lock.Lock()
		stopped := c.stopped
		if c.ctx == runCtx {
			c.cancel = nil
		}
		//Stop已接管状态迁移
		if c.state.is(StateConnecting) {
			_ = c.state.fire(eventAbort)
		}
		c.lock.Unlock()
		if stopped {
			return ErrClientStopped
		}
		return err
	}
	c.log.Info("连接服务器成功")
	if !c.begin(conn) {
		return ErrClientStopped
	}
	return nil
}

//Stop 发送停止激活帧,关闭连接并等待读协程和定时协程退出
func (c *Client) Stop() {
	c.lock.Lock()
	if c.cancel == nil {
		c.lock.Unlock()
		return
	}
	c.log.Info("断开服务器连接")
	_ = c.state.fire(eventStop)
	c.cancel()
	conn := c.conn
	if conn != nil {
		if err := c.sendUFrameLocked(StopDtAct, c.now()); err != nil {
			c.log.Warnf("发送停止激活帧失败: %v", err)
		}
	}
	c.conn = nil
	c.awaitingConfirm = false
	c.stopped = true
	c.lock.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Debugf("关闭连接: %v", err)
		}
	}
	c.wg.Wait()

	c.lock.Lock()
	c.cancel = nil
	c.lock.Unlock()
	_ = c.state.fire(eventStopped)
	c.log.Info("客户端已停止")
}

//Reconnect 关闭当前连接,由读协程重新建立连接
func (c *Client) Reconnect() {
	c.lock.Lock()
	conn := c.conn
	c.lock.Unlock()
	if conn != nil {
		c.log.Info("主动断开连接,开始重连")
		conn.Close()
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Address())
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return conn, nil
}

//begin 新连接建立后重置会话状态,发送启动激活帧并启动读协程和定时协程
//客户端已停止时关闭连接并返回false
func (c *Client) begin(conn net.Conn) bool {
	now := c.now()
	c.lock.Lock()
	if c.ctx.Err() != nil {
		c.lock.Unlock()
		conn.Close()
		return false
	}
	connCtx, connCancel := context.WithCancel(c.ctx)
	c.conn = conn
	c.connCancel = connCancel
	c.seq.reset()
	c.timers.reset()
	c.awaitingConfirm = true
	c.lastCall = time.Time{}
	c.timers.arm(T0, now)
	_ = c.state.fire(eventDialed)
	c.wg.Add(2)
	go c.receive(conn)
	go c.tick(connCtx)
	err := c.sendUFrameLocked(StartDtAct, now)
	c.lock.Unlock()
	if err != nil {
		c.log.Errorf("发送启动激活帧失败: %v", err)
		conn.Close()
	}
	return true
}

//receive 读协程,连接异常时负责重连
func (c *Client) receive(conn net.Conn) {
	defer c.wg.Done()
	c.log.Debug("socket读协程启动")
	for {
		data, err := readFrame(conn)
		if err != nil {
			if errors.Is(err, ErrFraming) {
				c.log.Warnf("丢弃报文: %v", err)
				continue
			}
			if c.ctx.Err() != nil {
				c.log.Debug("socket读协程停止")
				return
			}
			if errors.Is(err, io.EOF) {
				c.log.Info("服务器关闭连接")
			} else {
				c.log.Errorf("socket读操作异常: %v", err)
			}
			c.connectionLost(conn, &TransportError{Op: "read", Err: err})
			return
		}
		c.handleFrame(data)
	}
}

//connectionLost 关闭连接,停止定时协程并重连
func (c *Client) connectionLost(conn net.Conn, err error) {
	c.lock.Lock()
	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}
	if c.conn == conn {
		c.conn = nil
	}
	c.awaitingConfirm = false
	c.lock.Unlock()
	conn.Close()

	_ = c.state.fire(eventFail)
	c.notify(func() { c.onConnectionLost(c, err) })
	c.reconnect()
}

//reconnect 每隔ReconnectInterval重试,直到成功或客户端停止
func (c *Client) reconnect() {
	c.log.Info("断开服务器连接,开始重连")
	for i := 1; ; i++ {
		if c.ctx.Err() != nil {
			return
		}
		_ = c.state.fire(eventDial)
		conn, err := c.dial(c.ctx)
		if err == nil {
			c.log.Info("重连服务器成功")
			c.begin(conn)
			return
		}
		_ = c.state.fire(eventRetry)
		c.log.Infof("连接服务器失败,%s后开始第%d次重试: %v", c.cfg.ReconnectInterval, i, err)
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

//tick 定时协程
func (c *Client) tick(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkTimers(c.now())
		}
	}
}

//checkTimers 分别检查四个定时器
func (c *Client) checkTimers(now time.Time) {
	var (
		events []TimeoutEvent
		failed error
	)
	c.lock.Lock()
	for t := T0; t < timerCount; t++ {
		if !c.timers.expired(t, now) {
			continue
		}
		elapsed := c.timers.elapsed(t, now)
		switch t {
		case T0:
			c.timers.disarm(T0)
			if c.awaitingConfirm {
				events = append(events, TimeoutEvent{Timer: T0, Elapsed: elapsed})
			}
		case T1:
			c.timers.disarm(T1)
			events = append(events, TimeoutEvent{Timer: T1, Elapsed: elapsed})
		case T2:
			c.timers.disarm(T2)
			c.log.Debug("T2超时,发送S帧确认")
			if err := c.sendSFrameLocked(now); err != nil {
				failed = err
			}
		case T3:
			c.log.Debug("T3超时,发送测试激活帧")
			if err := c.sendUFrameLocked(TestFrAct, now); err != nil {
				failed = err
			}
		}
	}
	if failed == nil && c.cfg.InterrogationInterval > 0 && c.state.is(StateActive) &&
		now.Sub(c.lastCall) >= c.cfg.InterrogationInterval {
		c.log.Infof("每隔%s发送一次总召唤", c.cfg.InterrogationInterval)
		failed = c.interrogateLocked(now)
	}
	conn := c.conn
	c.lock.Unlock()

	if failed != nil && conn != nil {
		c.log.Errorf("定时发送失败,关闭连接: %v", failed)
		conn.Close()
	}
	for _, e := range events {
		e := e
		c.notify(func() { c.onTimeout(c, e) })
	}
}

//handleFrame 解析并处理收到的报文
func (c *Client) handleFrame(data []byte) {
	now := c.now()
	frame, err := ParseFrame(data)
	if err != nil {
		c.log.Warnf("丢弃报文: %v", err)
		c.lock.Lock()
		c.timers.arm(T3, now)
		c.lock.Unlock()
		return
	}
	c.log.Debugf("收到%s帧: [% X]", frame.Type(), data)

	var after []func()
	c.lock.Lock()
	c.timers.arm(T3, now)
	switch f := frame.(type) {
	case UFrame:
		after = c.handleUFrameLocked(f, now)
	case SFrame:
		c.confirmLocked(f.Recv, now)
	case IFrame:
		after = c.handleIFrameLocked(data, f, now)
	}
	c.lock.Unlock()

	for _, fn := range after {
		c.notify(fn)
	}
}

//notify 在独立协程中调用事件处理函数,处理函数中可以调用Stop或Reconnect
func (c *Client) notify(fn func()) {
	go fn()
}

func (c *Client) handleUFrameLocked(f UFrame, now time.Time) (after []func()) {
	switch f.Function {
	case StartDtCon:
		if !c.awaitingConfirm {
			c.log.Debug("重复的启动确认帧")
			return nil
		}
		c.awaitingConfirm = false
		c.timers.disarm(T0)
		_ = c.state.fire(eventConfirm)
		c.log.Info("收到启动确认帧,链路已建立")
		if c.cfg.InterrogationInterval > 0 {
			if err := c.interrogateLocked(now); err != nil {
				c.log.Errorf("发送总召唤失败: %v", err)
			}
		}
		after = append(after, func() { c.onConnect(c) })
	case TestFrAct:
		c.log.Debug("收到测试激活帧,发送测试确认帧")
		if err := c.sendUFrameLocked(TestFrCon, now); err != nil {
			c.log.Errorf("发送测试确认帧失败: %v", err)
		}
	case TestFrCon:
		c.log.Debug("收到测试确认帧")
	case StopDtCon:
		c.log.Info("收到停止确认帧")
	default:
		c.log.Infof("收到未分类的U帧: %s", f.Function)
	}
	return after
}

func (c *Client) handleIFrameLocked(raw []byte, f IFrame, now time.Time) (after []func()) {
	c.confirmLocked(f.Recv, now)
	c.timers.arm(T2, now)

	apdu, err := c.decoder.newAPDU(raw, f, now)
	if err != nil {
		c.log.Warnf("解析ASDU异常: %v", err)
	}
	if c.queue.Put(apdu) {
		c.log.Warn("数据队列已满,丢弃最早的数据")
	}

	ackDue, discrepancy := c.seq.received(f.Send)
	if discrepancy != nil {
		e := *discrepancy
		after = append(after, func() { c.onDiscrepancy(c, e) })
	}
	if apdu.ASDU != nil && apdu.ASDU.TypeID == CIcNa1 && apdu.ASDU.Cause == CotActTerm && c.cfg.CounterInterrogation {
		c.log.Info("接收总召唤结束帧,发送电度总召唤")
		if err := c.sendIFrameLocked(buildCommand(CCiNa1, c.cfg.CommonAddress, qccGeneral), now); err != nil {
			c.log.Errorf("发送电度总召唤失败: %v", err)
		}
		return after
	}
	if ackDue {
		if err := c.sendSFrameLocked(now); err != nil {
			c.log.Errorf("发送S帧失败: %v", err)
		}
	}
	return after
}

//confirmLocked 对端确认了已发送的I帧
func (c *Client) confirmLocked(recv uint16, now time.Time) {
	n, ok := c.seq.confirm(recv)
	if !ok {
		c.log.Warnf("对端确认序号%d非法,本地发送序号%d", recv, c.seq.ssn)
		return
	}
	if n == 0 {
		return
	}
	if at, pending := c.seq.oldestPending(); pending {
		c.timers.arm(T1, at)
	} else {
		c.timers.disarm(T1)
	}
}

//Interrogate 发送总召唤
func (c *Client) Interrogate() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.interrogateLocked(c.now())
}

func (c *Client) interrogateLocked(now time.Time) error {
	c.lastCall = now
	return c.sendIFrameLocked(buildCommand(CIcNa1, c.cfg.CommonAddress, qoiStation), now)
}

//CounterInterrogate 发送电度总召唤
func (c *Client) CounterInterrogate() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.sendIFrameLocked(buildCommand(CCiNa1, c.cfg.CommonAddress, qccGeneral), c.now())
}

//SendASDU 以I帧发送ASDU,链路未建立时返回ErrNotActive,已停止时返回ErrClientStopped
func (c *Client) SendASDU(asdu []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.sendIFrameLocked(asdu, c.now())
}

func (c *Client) sendIFrameLocked(asdu []byte, now time.Time) error {
	if c.stopped {
		return ErrClientStopped
	}
	if !c.state.is(StateActive) {
		return ErrNotActive
	}
	data, err := EncodeIFrame(c.seq.ssn, c.seq.rsn, asdu)
	if err != nil {
		return err
	}
	if err := c.sendLocked(data, now); err != nil {
		return err
	}
	c.seq.sent(now)
	if !c.timers.isArmed(T1) {
		c.timers.arm(T1, now)
	}
	c.timers.disarm(T2)
	return nil
}

//sendSFrameLocked 发送S帧
func (c *Client) sendSFrameLocked(now time.Time) error {
	data := EncodeSFrame(c.seq.ackSeq())
	if err := c.sendLocked(data, now); err != nil {
		return err
	}
	c.seq.acked()
	//已确认全部收到的I帧
	c.timers.disarm(T2)
	return nil
}

//sendUFrameLocked 发送U帧
func (c *Client) sendUFrameLocked(f UFunction, now time.Time) error {
	return c.sendLocked(EncodeUFrame(f), now)
}

//sendLocked 写socket,无论成功与否都刷新T3
func (c *Client) sendLocked(data []byte, now time.Time) error {
	defer c.timers.arm(T3, now)
	if c.conn == nil {
		return &TransportError{Op: "write", Err: ErrNotActive}
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if _, err := c.conn.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	c.log.Debugf("发送报文: [% X],ssn:%d,rsn:%d", data, c.seq.ssn, c.seq.rsn)
	return nil
}

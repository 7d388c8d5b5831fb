package iec104

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

//默认参数及取值范围
const (
	DefaultPort              = 2404
	DefaultT0                = 30 * time.Second
	DefaultT1                = 15 * time.Second
	DefaultT2                = 10 * time.Second
	DefaultT3                = 20 * time.Second
	DefaultMaxUnacked        = 5
	DefaultReconnectInterval = 5 * time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultTickInterval      = time.Second
	DefaultCommonAddress     = 1

	TimeoutMin    = time.Second
	TimeoutMax    = 255 * time.Second
	MaxUnackedMax = seqModulo - 1
)

//Config 客户端配置
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	//StrictSequence 为false时信任对端发送序号,不检查序号差异
	StrictSequence bool `yaml:"strict_sequence"`

	T0 time.Duration `yaml:"t0"`
	T1 time.Duration `yaml:"t1"`
	T2 time.Duration `yaml:"t2"`
	T3 time.Duration `yaml:"t3"`
	//MaxUnacked 收到多少个I帧后发送S帧,T2超时也会发送
	MaxUnacked int `yaml:"max_unacked"`

	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	TickInterval      time.Duration `yaml:"tick_interval"`

	//QueueCapacity 为0时队列不限长度
	QueueCapacity int `yaml:"queue_capacity"`

	CommonAddress uint16 `yaml:"common_address"`
	//InterrogationInterval 启动确认后及每隔该时间发送总召唤,为0时不发送
	InterrogationInterval time.Duration `yaml:"interrogation_interval"`
	//CounterInterrogation 总召唤结束后发送电度总召唤
	CounterInterrogation bool `yaml:"counter_interrogation"`
}

//DefaultConfig ..
func DefaultConfig() Config {
	return Config{
		Port:              DefaultPort,
		StrictSequence:    true,
		T0:                DefaultT0,
		T1:                DefaultT1,
		T2:                DefaultT2,
		T3:                DefaultT3,
		MaxUnacked:        DefaultMaxUnacked,
		ReconnectInterval: DefaultReconnectInterval,
		DialTimeout:       DefaultDialTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		TickInterval:      DefaultTickInterval,
		CommonAddress:     DefaultCommonAddress,
	}
}

//Valid 零值取默认值并检查取值范围
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("配置为空")
	}
	if c.Host == "" {
		return errors.New("未配置服务器地址")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("端口%d超出范围", c.Port)
	}

	timers := []struct {
		name string
		v    *time.Duration
		def  time.Duration
	}{
		{"t0", &c.T0, DefaultT0},
		{"t1", &c.T1, DefaultT1},
		{"t2", &c.T2, DefaultT2},
		{"t3", &c.T3, DefaultT3},
	}
	for _, t := range timers {
		if *t.v == 0 {
			*t.v = t.def
		}
		if *t.v < TimeoutMin || *t.v > TimeoutMax {
			return fmt.Errorf("%s取值%s超出范围[%s, %s]", t.name, *t.v, TimeoutMin, TimeoutMax)
		}
	}
	if c.T2 >= c.T1 {
		return fmt.Errorf("t2(%s)必须小于t1(%s)", c.T2, c.T1)
	}

	if c.MaxUnacked == 0 {
		c.MaxUnacked = DefaultMaxUnacked
	}
	if c.MaxUnacked < 1 || c.MaxUnacked > MaxUnackedMax {
		return fmt.Errorf("max_unacked取值%d超出范围[1, %d]", c.MaxUnacked, MaxUnackedMax)
	}

	durations := []struct {
		name string
		v    *time.Duration
		def  time.Duration
	}{
		{"reconnect_interval", &c.ReconnectInterval, DefaultReconnectInterval},
		{"dial_timeout", &c.DialTimeout, DefaultDialTimeout},
		{"write_timeout", &c.WriteTimeout, DefaultWriteTimeout},
		{"tick_interval", &c.TickInterval, DefaultTickInterval},
	}
	for _, d := range durations {
		if *d.v == 0 {
			*d.v = d.def
		}
		if *d.v < 0 {
			return fmt.Errorf("%s取值%s非法", d.name, *d.v)
		}
	}
	if c.InterrogationInterval < 0 {
		return fmt.Errorf("interrogation_interval取值%s非法", c.InterrogationInterval)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity取值%d非法", c.QueueCapacity)
	}
	if c.CommonAddress == 0 {
		c.CommonAddress = DefaultCommonAddress
	}
	return nil
}

//Address host:port
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

package retention

import (
	"runtime"
	"time"
)

type ErrorHandler func(err error)

// Policy 为单张表的保留策略；两个条件同时生效，零值表示不按该条件清理
type Policy struct {
	// KeepFor 保留最近多长时间内写入的记录
	KeepFor time.Duration `mapstructure:"keep_for"`
	// KeepLatest 最多保留的记录条数
	KeepLatest int `mapstructure:"keep_latest"`
}

type Config struct {
	// Enabled 控制 chat 会话期间是否在后台周期性清理
	Enabled bool `mapstructure:"enabled"`
	// Interval 为后台清理周期
	Interval time.Duration `mapstructure:"interval"`
	// Workers 为并发执行清理任务的 worker 数量
	Workers int `mapstructure:"workers"`
	// BatchRows 为单次 DELETE 的最大行数
	BatchRows int `mapstructure:"batch_rows"`
	// IdleSleep 为两个批次之间的休眠，给前台写入让出 sqlite 写锁
	IdleSleep time.Duration `mapstructure:"idle_sleep"`

	Audit     Policy `mapstructure:"audit"`
	QueryLogs Policy `mapstructure:"query_logs"`

	// OnError 为异步错误回调；默认丢弃
	OnError ErrorHandler `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Interval:  time.Hour,
		Workers:   2,
		BatchRows: 500,
		IdleSleep: 50 * time.Millisecond,
		Audit:     Policy{KeepFor: 30 * 24 * time.Hour},
		QueryLogs: Policy{KeepFor: 7 * 24 * time.Hour},
	}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = min(2, runtime.NumCPU())
	}
	if c.BatchRows <= 0 {
		c.BatchRows = 500
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	return c
}

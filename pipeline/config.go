package pipeline

import (
	"log/slog"
	"time"
)

// 默认值
const (
	DefaultMaxConcurrent  = 8
	DefaultPredictTimeout = 10 * time.Second
)

// Option 配置 Pipeline
type Option func(*Pipeline)

// WithMaxConcurrent 设置同时执行的请求数上限
func WithMaxConcurrent(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxConcurrent = int64(n)
		}
	}
}

// WithPredictTimeout 设置单次预测超时
func WithPredictTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.predictTimeout = d
		}
	}
}

// WithObserver 设置执行观察者
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithStages 替换默认 Stage 链（测试或自定义编排使用）
func WithStages(stages ...Stage) Option {
	return func(p *Pipeline) {
		p.Stages = stages
	}
}

package pipeline

import (
	"context"
	"time"
)

// Observer 观察 Pipeline 的执行（server 包中的 Prometheus 实现用于 /metrics）。
type Observer interface {
	// ObserveStage 每个 Stage 执行后调用
	ObserveStage(ctx context.Context, kind Kind, name string, d time.Duration, err error)
	// ObserveRun 每次请求结束后调用，participants 为成功预测的记录数
	ObserveRun(ctx context.Context, participants int, d time.Duration, err error)
	// ObserveDegradation 每次分析降级调用
	ObserveDegradation(ctx context.Context, component string)
}

// NopObserver 不做任何记录
type NopObserver struct{}

func (NopObserver) ObserveStage(context.Context, Kind, string, time.Duration, error) {}
func (NopObserver) ObserveRun(context.Context, int, time.Duration, error)            {}
func (NopObserver) ObserveDegradation(context.Context, string)                       {}

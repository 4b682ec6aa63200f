// Package audit 记录每次评分的结果事件，供离线对账和模型监控使用。
//
// 记录是异步非阻塞的：Record 只写缓冲，发送失败不影响评分响应。
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/scorekit/core"
)

// Source 评分请求来源
type Source string

const (
	SourceFile Source = "file" // /predict-csv 或 multipart /predict
	SourceJSON Source = "json" // 单条 JSON 记录
)

// ScoreEvent 单个参与者的评分事件（轻量级，只包含必要信息）
type ScoreEvent struct {
	RequestID string   `json:"request_id"`
	Source    Source   `json:"source"`
	Model     string   `json:"model"`
	Row       int      `json:"row"` // 1 起始
	Score     float64  `json:"score"`
	Actual    *float64 `json:"actual,omitempty"`
	Error     *float64 `json:"error,omitempty"`
	Timestamp int64    `json:"timestamp"` // Unix 时间戳（秒）
}

// Collector 评分事件收集器接口（异步非阻塞）
type Collector interface {
	// Record 异步记录一批事件（不阻塞）
	Record(ctx context.Context, events []ScoreEvent) error

	// Close 优雅关闭（等待缓冲数据发送完成）
	Close() error
}

// Events 把一次成功的评分响应展开为逐行事件。
// 有对比结果时带上真实值与误差。
func Events(requestID string, source Source, model string, resp *core.PredictionResponse, now time.Time) []ScoreEvent {
	if resp == nil {
		return nil
	}
	events := make([]ScoreEvent, len(resp.Predictions))
	ts := now.Unix()
	for i, score := range resp.Predictions {
		events[i] = ScoreEvent{
			RequestID: requestID,
			Source:    source,
			Model:     model,
			Row:       i + 1,
			Score:     score,
			Timestamp: ts,
		}
		if i < len(resp.Comparison) {
			events[i].Actual = resp.Comparison[i].Actual
			events[i].Error = resp.Comparison[i].Error
		}
	}
	return events
}

// NopCollector 丢弃所有事件
type NopCollector struct{}

func (NopCollector) Record(context.Context, []ScoreEvent) error { return nil }
func (NopCollector) Close() error                               { return nil }

// MemoryCollector 内存收集器，用于测试和本地调试
type MemoryCollector struct {
	mu     sync.Mutex
	events []ScoreEvent
}

// NewMemoryCollector 创建内存收集器
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

func (m *MemoryCollector) Record(_ context.Context, events []ScoreEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

// Events 返回已记录事件的副本
func (m *MemoryCollector) Events() []ScoreEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScoreEvent(nil), m.events...)
}

func (m *MemoryCollector) Close() error { return nil }

var (
	_ Collector = NopCollector{}
	_ Collector = (*MemoryCollector)(nil)
	_ Collector = (*KafkaCollector)(nil)
)

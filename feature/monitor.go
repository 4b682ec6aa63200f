package feature

import (
	"context"
	"sync"
)

// Monitor 是特征监控接口，用于观察地区回退率和编码错误率。
// 生产环境使用 server 包中的 Prometheus 实现。
type Monitor interface {
	// RecordFallback 记录一次查找表未命中（value 为空表示字段缺失）
	RecordFallback(ctx context.Context, feature string, value string)
	// RecordError 记录一次编码错误
	RecordError(ctx context.Context, feature string, err error)
}

// NopMonitor 不做任何记录
type NopMonitor struct{}

func (NopMonitor) RecordFallback(context.Context, string, string) {}
func (NopMonitor) RecordError(context.Context, string, error)     {}

// FeatureStats 单个特征的监控计数
type FeatureStats struct {
	FeatureName   string
	FallbackCount int64
	ErrorCount    int64
	// UnseenValues 未命中查找表的取值及次数
	UnseenValues map[string]int64
}

// MemoryFeatureMonitor 是内存特征监控实现，用于测试和 CLI。
type MemoryFeatureMonitor struct {
	mu    sync.RWMutex
	stats map[string]*FeatureStats
}

// NewMemoryFeatureMonitor 创建内存特征监控
func NewMemoryFeatureMonitor() *MemoryFeatureMonitor {
	return &MemoryFeatureMonitor{stats: make(map[string]*FeatureStats)}
}

func (m *MemoryFeatureMonitor) get(feature string) *FeatureStats {
	stats := m.stats[feature]
	if stats == nil {
		stats = &FeatureStats{
			FeatureName:  feature,
			UnseenValues: make(map[string]int64),
		}
		m.stats[feature] = stats
	}
	return stats
}

func (m *MemoryFeatureMonitor) RecordFallback(ctx context.Context, feature string, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.get(feature)
	stats.FallbackCount++
	stats.UnseenValues[value]++
}

func (m *MemoryFeatureMonitor) RecordError(ctx context.Context, feature string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.get(feature).ErrorCount++
}

// GetFeatureStats 返回统计副本，特征从未被记录时返回 false
func (m *MemoryFeatureMonitor) GetFeatureStats(feature string) (FeatureStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.stats[feature]
	if !ok {
		return FeatureStats{}, false
	}
	cp := FeatureStats{
		FeatureName:   stats.FeatureName,
		FallbackCount: stats.FallbackCount,
		ErrorCount:    stats.ErrorCount,
		UnseenValues:  make(map[string]int64, len(stats.UnseenValues)),
	}
	for k, v := range stats.UnseenValues {
		cp.UnseenValues[k] = v
	}
	return cp, true
}

// MultiMonitor 把记录转发给多个 Monitor
type MultiMonitor []Monitor

func (mm MultiMonitor) RecordFallback(ctx context.Context, feature string, value string) {
	for _, m := range mm {
		m.RecordFallback(ctx, feature, value)
	}
}

func (mm MultiMonitor) RecordError(ctx context.Context, feature string, err error) {
	for _, m := range mm {
		m.RecordError(ctx, feature, err)
	}
}

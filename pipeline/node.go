package pipeline

import (
	"context"

	"github.com/rushteam/scorekit/analysis"
	"github.com/rushteam/scorekit/core"
)

// Kind 用于标记 Stage 类型，方便观测（例如按阶段打点）。
type Kind string

const (
	KindNormalize Kind = "normalize" // 列名翻译与必需列校验
	KindEncode    Kind = "encode"    // 特征编码
	KindPredict   Kind = "predict"   // 模型预测
	KindAnalyze   Kind = "analyze"   // 统计、洞察、对比与响应组装
)

// State 是一次请求在各 Stage 之间传递的状态，每个 Stage 填充自己负责的字段。
type State struct {
	Table        *core.Table
	Batch        *core.Batch
	Features     *core.FeatureMatrix
	Predictions  []float64
	Response     *core.PredictionResponse
	Degradations []analysis.Degradation
}

// Stage 是 Pipeline 的最小单元。
// 统一采用“读取 State -> 写入 State”的形态，任一 Stage 返回错误则整个请求失败。
type Stage interface {
	Name() string
	Kind() Kind

	Process(ctx context.Context, st *State) error
}

// Package scorekit 是一个参与者评分推理工具包（Score Kit）。
//
// 设计要点：
// - Pipeline-first: 一次评分由 Stage 串联（Normalize → Encode → Predict → Analyze）
// - Predictor 可插拔: 本地线性/树模型与远程 RPC、KServe、TF Serving 共用一个接口
// - 分析降级: 重要性、图表、洞察失败只记录日志，不影响预测结果
package scorekit

import (
	"github.com/rushteam/scorekit/analysis"
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
	"github.com/rushteam/scorekit/pipeline"
)

// 轻量 facade：便于用户直接 import "scorekit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Stage = pipeline.Stage
type State = pipeline.State
type Kind = pipeline.Kind

const (
	KindNormalize = pipeline.KindNormalize
	KindEncode    = pipeline.KindEncode
	KindPredict   = pipeline.KindPredict
	KindAnalyze   = pipeline.KindAnalyze
)

// NewPipeline 使用内置查找表、默认列名映射和默认洞察规则组装流水线，
// 并校验编码器输出与预测器期望的特征列一致。
func NewPipeline(predictor core.Predictor, opts ...pipeline.Option) (*Pipeline, error) {
	tables, err := feature.DefaultLookupTables()
	if err != nil {
		return nil, err
	}
	insighter, err := analysis.NewInsighter(nil)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(
		feature.NewColumnNormalizer(),
		feature.NewEncoder(tables),
		predictor,
		analysis.NewAnalyzer(insighter),
		opts...,
	)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Package pipeline 把一次评分请求拆成可组合的 Stage 链：
// normalize → encode → predict → analyze。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rushteam/scorekit/analysis"
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
)

// Pipeline 是评分服务的核心抽象。
// 查找表、编码器与预测器在构造后只读，Run 可并发调用，并发数受信号量限制。
type Pipeline struct {
	Stages []Stage

	normalizer *feature.ColumnNormalizer
	encoder    *feature.Encoder
	predictor  core.Predictor

	maxConcurrent  int64
	predictTimeout time.Duration
	sem            *semaphore.Weighted
	observer       Observer
	logger         *slog.Logger
}

// New 创建默认 Stage 链的 Pipeline
func New(
	normalizer *feature.ColumnNormalizer,
	encoder *feature.Encoder,
	predictor core.Predictor,
	analyzer *analysis.Analyzer,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		normalizer:     normalizer,
		encoder:        encoder,
		predictor:      predictor,
		maxConcurrent:  DefaultMaxConcurrent,
		predictTimeout: DefaultPredictTimeout,
		observer:       NopObserver{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Stages == nil {
		p.Stages = []Stage{
			&NormalizeStage{Normalizer: normalizer},
			&EncodeStage{Encoder: encoder},
			&PredictStage{Predictor: predictor, Timeout: p.predictTimeout},
			&AnalyzeStage{Analyzer: analyzer, Predictor: predictor},
		}
	}
	p.sem = semaphore.NewWeighted(p.maxConcurrent)
	return p
}

// Predictor 返回当前使用的预测器
func (p *Pipeline) Predictor() core.Predictor { return p.predictor }

// Encoder 返回当前使用的编码器
func (p *Pipeline) Encoder() *feature.Encoder { return p.encoder }

// Validate 启动时校验编码器产出的特征列与预测器期望的特征列一致。
// 位置输入模式下还要求顺序一致。预测器未声明期望特征时跳过。
func (p *Pipeline) Validate() error {
	ef, ok := p.predictor.(core.ExpectedFeatures)
	if !ok {
		return nil
	}
	expected := ef.ExpectedFeatureNames()
	if len(expected) == 0 {
		return nil
	}
	ordered := p.predictor.InputMode() == core.InputPositional
	if err := feature.CheckFeatureColumns(expected, p.encoder.FeatureNames(), ordered); err != nil {
		return fmt.Errorf("predictor %s: %w", p.predictor.Name(), err)
	}
	return nil
}

// Run 执行一次完整的评分请求
func (p *Pipeline) Run(ctx context.Context, table *core.Table) (*core.PredictionResponse, error) {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire pipeline slot: %w", err)
	}
	defer p.sem.Release(1)

	st := &State{Table: table}
	err := p.run(ctx, st)

	participants := 0
	if err == nil {
		participants = len(st.Predictions)
	}
	p.observer.ObserveRun(ctx, participants, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	for _, d := range st.Degradations {
		p.observer.ObserveDegradation(ctx, d.Component)
	}
	p.logger.InfoContext(ctx, "scored batch",
		"participants", participants,
		"degradations", len(st.Degradations),
		"duration", time.Since(start),
	)
	return st.Response, nil
}

func (p *Pipeline) run(ctx context.Context, st *State) error {
	for _, stage := range p.Stages {
		stageStart := time.Now()
		err := stage.Process(ctx, st)
		p.observer.ObserveStage(ctx, stage.Kind(), stage.Name(), time.Since(stageStart), err)
		if err != nil {
			p.logger.DebugContext(ctx, "stage failed", "stage", stage.Name(), "kind", stage.Kind(), "error", err)
			return err
		}
	}
	if st.Response == nil {
		return fmt.Errorf("pipeline produced no response")
	}
	return nil
}

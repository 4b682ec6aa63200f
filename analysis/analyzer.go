package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rushteam/scorekit/chart"
	"github.com/rushteam/scorekit/core"
)

// 可降级的分析组件
const (
	ComponentImportance = "importance"
	ComponentChart      = "chart"
	ComponentInsights   = "insights"
)

// Degradation 记录一次分析降级（对应字段以 null 返回，不视为错误）
type Degradation struct {
	Component string
	Err       error
}

// Analyzer 在预测完成后生成分析结果。
// 重要性图表只依赖预测器，渲染成功后缓存复用。
type Analyzer struct {
	insighter     *Insighter
	renderer      chart.Renderer
	renderTimeout time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	plotCache string
}

// Option 配置 Analyzer
type Option func(*Analyzer)

// WithRenderer 设置图表渲染器
func WithRenderer(r chart.Renderer) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.renderer = r
		}
	}
}

// WithRenderTimeout 设置单次渲染超时
func WithRenderTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.renderTimeout = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer 创建 Analyzer，默认不渲染图表
func NewAnalyzer(insighter *Insighter, opts ...Option) *Analyzer {
	a := &Analyzer{
		insighter:     insighter,
		renderer:      chart.NopRenderer{},
		renderTimeout: 5 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze 生成完整响应。重要性、图表、洞察失败时对应字段为空，并在返回值中列出。
func (a *Analyzer) Analyze(
	ctx context.Context,
	batch *core.Batch,
	features *core.FeatureMatrix,
	predictions []float64,
	predictor core.Predictor,
) (*core.PredictionResponse, []Degradation) {
	var degraded []Degradation
	degrade := func(component string, err error) {
		a.logger.WarnContext(ctx, "analytics degraded", "component", component, "error", err)
		degraded = append(degraded, Degradation{Component: component, Err: err})
	}

	res := Result{
		Batch:       batch,
		Features:    features,
		Predictions: predictions,
	}

	imp, err := ExtractImportance(predictor)
	if err != nil {
		degrade(ComponentImportance, err)
	}
	if imp != nil {
		res.Importance = imp
		plot, err := a.plot(ctx, imp)
		if err != nil {
			degrade(ComponentChart, err)
		}
		res.Plot = plot
	}

	insights, err := a.insighter.Insights(batch)
	if err != nil {
		degrade(ComponentInsights, err)
	}
	res.Insights = insights

	return Assemble(res), degraded
}

func (a *Analyzer) plot(ctx context.Context, imp *Importance) (string, error) {
	a.mu.Lock()
	cached := a.plotCache
	a.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.renderTimeout)
	defer cancel()
	plot, err := a.renderer.Render(ctx, imp.Names, imp.Scores)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.plotCache = plot
	a.mu.Unlock()
	return plot, nil
}

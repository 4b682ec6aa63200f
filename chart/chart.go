// Package chart 渲染特征重要性图表。
package chart

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Renderer 把特征重要性渲染为 base64 编码的图片。
// 渲染失败不影响预测结果，调用方应降级为不返回图表。
type Renderer interface {
	Render(ctx context.Context, names []string, scores []float64) (string, error)
}

// NopRenderer 不渲染，总是返回空串
type NopRenderer struct{}

func (NopRenderer) Render(context.Context, []string, []float64) (string, error) { return "", nil }

// PlotRenderer 使用 gonum/plot 渲染水平条形图（PNG）。
type PlotRenderer struct {
	Width  vg.Length
	Height vg.Length
}

// NewPlotRenderer 创建渲染器，宽高单位为英寸，<= 0 时使用 10x6
func NewPlotRenderer(widthInch, heightInch float64) *PlotRenderer {
	if widthInch <= 0 {
		widthInch = 10
	}
	if heightInch <= 0 {
		heightInch = 6
	}
	return &PlotRenderer{
		Width:  vg.Length(widthInch) * vg.Inch,
		Height: vg.Length(heightInch) * vg.Inch,
	}
}

type bar struct {
	name  string
	score float64
}

// Render 按重要性升序排列（最重要的在最上方），标题 "Feature Importance"，
// x 轴 "Importance Score"。渲染在独立 goroutine 中执行，ctx 取消时立即返回。
func (r *PlotRenderer) Render(ctx context.Context, names []string, scores []float64) (string, error) {
	if len(names) != len(scores) {
		return "", fmt.Errorf("chart: %d names for %d scores", len(names), len(scores))
	}
	if len(names) == 0 {
		return "", fmt.Errorf("chart: nothing to render")
	}

	type result struct {
		img string
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, err := r.render(names, scores)
		done <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("chart: %w", ctx.Err())
	case res := <-done:
		return res.img, res.err
	}
}

func (r *PlotRenderer) render(names []string, scores []float64) (string, error) {
	bars := make([]bar, len(names))
	for i := range names {
		bars[i] = bar{name: names[i], score: scores[i]}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].score < bars[j].score })

	values := make(plotter.Values, len(bars))
	labels := make([]string, len(bars))
	for i, b := range bars {
		values[i] = b.score
		labels[i] = b.name
	}

	p := plot.New()
	p.Title.Text = "Feature Importance"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Importance Score"

	chart, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return "", fmt.Errorf("chart: bar chart: %w", err)
	}
	chart.Horizontal = true
	chart.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	chart.LineStyle.Width = vg.Length(0)
	p.Add(chart)
	p.NominalY(labels...)

	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return "", fmt.Errorf("chart: encode: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("chart: write png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

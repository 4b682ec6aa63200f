package feature

import (
	"fmt"
	"math"
	"sort"
)

// BoxCoxTransformer Box-Cox 幂变换
// 公式: x' = ((x + offset)^λ - 1) / λ，λ = 0 时 x' = ln(x + offset)
// 特点: λ 在训练时拟合一次并固化，推理时不重新拟合，
// 因此单条记录的变换结果与同批次的其他记录无关。
type BoxCoxTransformer struct {
	Params BoxCoxParams
}

// NewBoxCoxTransformer 创建 Box-Cox 变换器
func NewBoxCoxTransformer(params BoxCoxParams) *BoxCoxTransformer {
	return &BoxCoxTransformer{Params: params}
}

// Transform 变换单个值，x + offset 不为正数时返回错误
func (t *BoxCoxTransformer) Transform(x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("value must be finite")
	}
	shifted := x + t.Params.Offset
	if shifted <= 0 {
		return 0, fmt.Errorf("value must be greater than %s", formatFloat(-t.Params.Offset))
	}
	if t.Params.Lambda == 0 {
		return math.Log(shifted), nil
	}
	return (math.Pow(shifted, t.Params.Lambda) - 1) / t.Params.Lambda, nil
}

// Inverse 逆变换（用于调试与测试）
func (t *BoxCoxTransformer) Inverse(y float64) float64 {
	if t.Params.Lambda == 0 {
		return math.Exp(y) - t.Params.Offset
	}
	return math.Pow(y*t.Params.Lambda+1, 1/t.Params.Lambda) - t.Params.Offset
}

// FeatureStatistics 特征统计信息
type FeatureStatistics struct {
	Count  int
	Mean   float64
	Std    float64 // 样本标准差（n-1），Count < 2 时为 NaN
	Min    float64
	Max    float64
	P25    float64
	Median float64
	P75    float64
}

// ComputeStatistics 计算数值序列的统计信息，空序列返回 Count 为 0 的结果
func ComputeStatistics(values []float64) *FeatureStatistics {
	if len(values) == 0 {
		return &FeatureStatistics{}
	}

	// 复制并排序
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats := &FeatureStatistics{
		Count: len(values),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}

	// 计算均值
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	stats.Mean = sum / float64(len(values))

	// 计算标准差
	if len(values) > 1 {
		variance := 0.0
		for _, v := range values {
			variance += (v - stats.Mean) * (v - stats.Mean)
		}
		stats.Std = math.Sqrt(variance / float64(len(values)-1))
	} else {
		stats.Std = math.NaN()
	}

	// 计算分位数
	stats.P25 = computePercentile(sorted, 0.25)
	stats.Median = computePercentile(sorted, 0.5)
	stats.P75 = computePercentile(sorted, 0.75)

	return stats
}

// computePercentile 计算分位数（线性插值）
func computePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Package analysis 计算预测结果附带的描述统计、洞察与误差对比。
package analysis

import (
	"fmt"
	"math"

	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
)

// 描述统计的统计量名称（与 pandas describe(include='all') 一致）
const (
	StatCount  = "count"
	StatUnique = "unique"
	StatTop    = "top"
	StatFreq   = "freq"
	StatMean   = "mean"
	StatStd    = "std"
	StatMin    = "min"
	StatP25    = "25%"
	StatP50    = "50%"
	StatP75    = "75%"
	StatMax    = "max"
)

// Describe 对每一列计算描述统计。
//
// 列中所有非空值都是数值时按数值列统计（mean/std/min/分位数/max），
// 否则按类别列统计（unique/top/freq）。不适用的统计量为 nil，不会出现 NaN。
func Describe(rows []core.OrderedRow, columns []string) map[string]core.ColumnSummary {
	out := make(map[string]core.ColumnSummary, len(columns))
	for _, col := range columns {
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			if v, ok := row.Get(col); ok && v != nil {
				values = append(values, v)
			}
		}
		out[col] = describeColumn(values)
	}
	return out
}

func describeColumn(values []any) core.ColumnSummary {
	s := core.ColumnSummary{
		StatCount:  len(values),
		StatUnique: nil,
		StatTop:    nil,
		StatFreq:   nil,
		StatMean:   nil,
		StatStd:    nil,
		StatMin:    nil,
		StatP25:    nil,
		StatP50:    nil,
		StatMax:    nil,
		StatP75:    nil,
	}
	if len(values) == 0 {
		s[StatUnique] = 0
		return s
	}

	if nums, ok := numericValues(values); ok {
		stats := feature.ComputeStatistics(nums)
		s[StatMean] = finite(stats.Mean)
		s[StatStd] = finite(stats.Std)
		s[StatMin] = finite(stats.Min)
		s[StatP25] = finite(stats.P25)
		s[StatP50] = finite(stats.Median)
		s[StatP75] = finite(stats.P75)
		s[StatMax] = finite(stats.Max)
		return s
	}

	top, freq, unique := valueCounts(values)
	s[StatUnique] = unique
	s[StatTop] = top
	s[StatFreq] = freq
	return s
}

// numericValues 所有值都是数值（不含 bool）时返回 float 序列
func numericValues(values []any) ([]float64, bool) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case float64:
			nums = append(nums, n)
		case float32:
			nums = append(nums, float64(n))
		case int:
			nums = append(nums, float64(n))
		case int64:
			nums = append(nums, float64(n))
		case int32:
			nums = append(nums, float64(n))
		default:
			return nil, false
		}
	}
	return nums, true
}

// valueCounts 返回出现次数最多的值（并列时取最先出现的）、其次数与不同值个数
func valueCounts(values []any) (top any, freq int, unique int) {
	counts := make(map[any]int, len(values))
	first := make(map[any]any, len(values))
	order := make([]any, 0, len(values))
	for _, v := range values {
		k := countKey(v)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
			first[k] = v
		}
		counts[k]++
	}
	for _, k := range order {
		if counts[k] > freq {
			top, freq = first[k], counts[k]
		}
	}
	return top, freq, len(order)
}

// countKey 不可比较的值（JSON 数组/对象）按文本计数
func countKey(v any) any {
	switch v.(type) {
	case string, bool, float64, float32, int, int64, int32:
		return v
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

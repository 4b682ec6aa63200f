package analysis

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/pkg/conv"
	"github.com/rushteam/scorekit/pkg/dsl"
)

// Mode 返回出现次数最多的值，并列时取最先出现的；空输入返回 false。
func Mode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, true
}

// Insighter 根据批次的聚合统计生成印尼语洞察文案。
type Insighter struct {
	ageRules *dsl.RuleSet
}

// NewInsighter 编译年龄段规则；rules 为空时使用默认规则
func NewInsighter(rules []dsl.Rule) (*Insighter, error) {
	if len(rules) == 0 {
		rules = dsl.DefaultAgeRules()
	}
	rs, err := dsl.Compile(rules)
	if err != nil {
		return nil, fmt.Errorf("compile insight rules: %w", err)
	}
	return &Insighter{ageRules: rs}, nil
}

// Insights 依次生成：省份众数、县/市众数、年龄段、最小/最大年龄。
// 列不存在或没有有效值时对应的洞察省略。
func (in *Insighter) Insights(batch *core.Batch) ([]string, error) {
	out := make([]string, 0, 4)

	if batch.HasColumn(core.ColumnProvince) {
		if top, ok := Mode(presentStrings(batch, func(r *core.Record) core.Optional[string] { return r.Province })); ok {
			out = append(out, fmt.Sprintf("Banyak peserta berasal dari provinsi %s.", top))
		}
	}
	if batch.HasColumn(core.ColumnRegency) {
		if top, ok := Mode(presentStrings(batch, func(r *core.Record) core.Optional[string] { return r.Regency })); ok {
			out = append(out, fmt.Sprintf("Kabupaten/Kota dengan peserta terbanyak: %s.", top))
		}
	}

	if !batch.HasColumn(core.ColumnAge) {
		return out, nil
	}
	ages := make([]float64, 0, batch.Len())
	for i := range batch.Records {
		if v, ok := batch.Records[i].Age.Get(); ok {
			if f, ok := conv.ParseFloat(v); ok && !math.IsNaN(f) {
				ages = append(ages, f)
			}
		}
	}
	if len(ages) == 0 {
		return out, nil
	}

	stats := ageStats(ages)
	msg, ok, err := in.ageRules.Evaluate(stats)
	if err != nil {
		return nil, err
	}
	if ok {
		out = append(out, msg)
	}
	out = append(out, fmt.Sprintf("Umur termuda: %s, tertua: %s.", formatAge(stats.Min), formatAge(stats.Max)))
	return out, nil
}

func presentStrings(batch *core.Batch, field func(*core.Record) core.Optional[string]) []string {
	values := make([]string, 0, batch.Len())
	for i := range batch.Records {
		if v, ok := field(&batch.Records[i]).Get(); ok {
			values = append(values, v)
		}
	}
	return values
}

func ageStats(ages []float64) dsl.Stats {
	s := dsl.Stats{Count: len(ages), Min: ages[0], Max: ages[0]}
	sum := 0.0
	for _, a := range ages {
		sum += a
		s.Min = math.Min(s.Min, a)
		s.Max = math.Max(s.Max, a)
	}
	s.Mean = sum / float64(len(ages))
	if len(ages) > 1 {
		variance := 0.0
		for _, a := range ages {
			variance += (a - s.Mean) * (a - s.Mean)
		}
		s.Std = math.Sqrt(variance / float64(len(ages)-1))
	}
	return s
}

// formatAge 年龄按浮点输出：整数值保留一位小数（25 → "25.0"），其他取最短表示
func formatAge(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

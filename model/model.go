package model

import (
	"fmt"
	"math"

	"github.com/rushteam/scorekit/core"
)

// 编译期检查：本地与远程模型都实现 core.Predictor 及可选能力。
var (
	_ core.Predictor          = (*LinearModel)(nil)
	_ core.ImportanceProvider = (*LinearModel)(nil)
	_ core.ExpectedFeatures   = (*LinearModel)(nil)
	_ core.Predictor          = (*TreeEnsemble)(nil)
	_ core.ImportanceProvider = (*TreeEnsemble)(nil)
	_ core.ExpectedFeatures   = (*TreeEnsemble)(nil)
	_ core.Predictor          = (*RPCModel)(nil)
	_ core.ImportanceProvider = (*RPCModel)(nil)
	_ core.ExpectedFeatures   = (*RPCModel)(nil)
	_ core.Closer             = (*RPCModel)(nil)
)

// columnIndex 把模型的特征名解析为输入矩阵中的列下标。
// 命名模式按名称匹配；位置模式要求列数一致，按位置取值。
func columnIndex(names []string, m *core.FeatureMatrix, mode core.InputMode) ([]int, error) {
	idx := make([]int, len(names))
	if mode == core.InputPositional {
		if len(m.Columns) != len(names) {
			return nil, fmt.Errorf("expected %d features, got %d", len(names), len(m.Columns))
		}
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}

	pos := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		pos[c] = i
	}
	for i, name := range names {
		p, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("feature %q not found in input", name)
		}
		idx[i] = p
	}
	return idx, nil
}

// normalizeAbs 把 |w| 归一化为和为 1 的重要性；全为 0 时返回全 0。
func normalizeAbs(weights []float64) []float64 {
	out := make([]float64, len(weights))
	sum := 0.0
	for i, w := range weights {
		out[i] = math.Abs(w)
		sum += out[i]
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func parseInputMode(s string, def core.InputMode) (core.InputMode, error) {
	switch core.InputMode(s) {
	case "":
		return def, nil
	case core.InputNamed, core.InputPositional:
		return core.InputMode(s), nil
	}
	return "", fmt.Errorf("unknown input mode %q", s)
}

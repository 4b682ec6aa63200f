package analysis

import (
	"fmt"

	"github.com/rushteam/scorekit/core"
)

// Importance 是对齐后的特征重要性
type Importance struct {
	Names  []string
	Scores []float64
}

// Map 返回 特征名 -> 重要性
func (imp *Importance) Map() map[string]float64 {
	m := make(map[string]float64, len(imp.Names))
	for i, name := range imp.Names {
		m[name] = imp.Scores[i]
	}
	return m
}

// ExtractImportance 从预测器读取特征重要性。
// 预测器不支持时返回 (nil, nil)；读取失败或长度不一致时返回错误，调用方应降级处理。
func ExtractImportance(p core.Predictor) (*Importance, error) {
	provider, ok := p.(core.ImportanceProvider)
	if !ok {
		return nil, nil
	}
	scores, err := provider.FeatureImportances()
	if err != nil {
		return nil, err
	}
	names := provider.FeatureNames()
	if len(scores) == 0 || len(scores) != len(names) {
		return nil, fmt.Errorf("feature importance: %d scores for %d names", len(scores), len(names))
	}
	return &Importance{Names: names, Scores: scores}, nil
}

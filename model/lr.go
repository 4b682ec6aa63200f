package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rushteam/scorekit/core"
)

// LinearModel 实现了线性回归 (Linear Regression) 模型。
//
// 预测原理：
//
//	y = Intercept + sum(Coefficient_i * Feature_i)
//
// 产物格式（JSON）：
//
//	{
//	  "intercept": 60.2,
//	  "feature_names": ["Umur_Thn_BoxCox", ...],
//	  "coefficients": [1.3, ...],
//	  "feature_importances": [0.4, ...],   // 可选
//	  "input_mode": "named"                // 可选，默认 named
//	}
type LinearModel struct {
	Intercept    float64   // 截距 (Intercept / Bias)
	Names        []string  // 特征名（训练顺序）
	Coefficients []float64 // 回归系数，与 Names 对齐
	Importances  []float64 // 特征重要性，为空时使用归一化 |coef|
	mode         core.InputMode
}

type linearArtifact struct {
	Intercept          float64   `json:"intercept"`
	FeatureNames       []string  `json:"feature_names"`
	Coefficients       []float64 `json:"coefficients"`
	FeatureImportances []float64 `json:"feature_importances,omitempty"`
	InputMode          string    `json:"input_mode,omitempty"`
}

// LoadLinearModel 从 JSON 产物文件加载线性模型
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read linear model: %w", err)
	}
	return ParseLinearModel(data)
}

// ParseLinearModel 解析 JSON 产物
func ParseLinearModel(data []byte) (*LinearModel, error) {
	var raw linearArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse linear model: %w", err)
	}
	mode, err := parseInputMode(raw.InputMode, core.InputNamed)
	if err != nil {
		return nil, fmt.Errorf("parse linear model: %w", err)
	}
	return NewLinearModel(raw.Intercept, raw.FeatureNames, raw.Coefficients, raw.FeatureImportances, mode)
}

// NewLinearModel 校验并创建线性模型
func NewLinearModel(intercept float64, names []string, coef, importances []float64, mode core.InputMode) (*LinearModel, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("linear model: feature_names is empty")
	}
	if len(coef) != len(names) {
		return nil, fmt.Errorf("linear model: %d coefficients for %d features", len(coef), len(names))
	}
	if len(importances) > 0 && len(importances) != len(names) {
		return nil, fmt.Errorf("linear model: %d importances for %d features", len(importances), len(names))
	}
	return &LinearModel{
		Intercept:    intercept,
		Names:        append([]string(nil), names...),
		Coefficients: append([]float64(nil), coef...),
		Importances:  append([]float64(nil), importances...),
		mode:         mode,
	}, nil
}

func (m *LinearModel) Name() string { return "linear" }

func (m *LinearModel) InputMode() core.InputMode { return m.mode }

func (m *LinearModel) Predict(ctx context.Context, features *core.FeatureMatrix) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewPredictionError(m.Name(), err)
	}
	idx, err := columnIndex(m.Names, features, m.mode)
	if err != nil {
		return nil, core.NewPredictionError(m.Name(), err)
	}

	scores := make([]float64, features.Len())
	for i, row := range features.Rows {
		score := m.Intercept
		for j, w := range m.Coefficients {
			score += w * row[idx[j]]
		}
		scores[i] = score
	}
	return scores, nil
}

// FeatureImportances 返回产物中的重要性，缺省时为归一化的 |coef|
func (m *LinearModel) FeatureImportances() ([]float64, error) {
	if len(m.Importances) > 0 {
		return append([]float64(nil), m.Importances...), nil
	}
	return normalizeAbs(m.Coefficients), nil
}

func (m *LinearModel) FeatureNames() []string { return append([]string(nil), m.Names...) }

func (m *LinearModel) ExpectedFeatureNames() []string { return m.FeatureNames() }

package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rushteam/scorekit/core"
)

// 集成方式
const (
	EnsembleForest   = "forest"   // 随机森林：各树输出取平均
	EnsembleBoosting = "boosting" // 梯度提升：base_score + learning_rate * sum
)

// Tree 是一棵回归树，采用 sklearn tree_ 的数组布局。
// children_left[i] == -1 表示叶子节点；x[feature[i]] <= threshold[i] 走左子树。
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

func (t *Tree) validate(numFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("tree arrays have different lengths")
	}
	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == -1 {
			if right != -1 {
				return fmt.Errorf("node %d: leaf with right child", i)
			}
			continue
		}
		// 子节点下标必须大于父节点，保证遍历终止
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, t.Feature[i])
		}
	}
	return nil
}

func (t *Tree) predict(x func(int) float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x(t.Feature[node]) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// TreeEnsemble 是本地树模型（随机森林 / GBDT）。
//
// 产物格式（JSON）：
//
//	{
//	  "ensemble": "forest",
//	  "feature_names": [...],
//	  "base_score": 0,
//	  "learning_rate": 0.1,
//	  "feature_importances": [...],
//	  "trees": [{"children_left": [...], ...}]
//	}
type TreeEnsemble struct {
	Ensemble     string
	Names        []string
	BaseScore    float64
	LearningRate float64
	Importances  []float64
	Trees        []Tree
	mode         core.InputMode
}

type treeArtifact struct {
	Ensemble           string    `json:"ensemble"`
	FeatureNames       []string  `json:"feature_names"`
	BaseScore          float64   `json:"base_score"`
	LearningRate       float64   `json:"learning_rate"`
	FeatureImportances []float64 `json:"feature_importances,omitempty"`
	InputMode          string    `json:"input_mode,omitempty"`
	Trees              []Tree    `json:"trees"`
}

// LoadTreeEnsemble 从 JSON 产物文件加载树模型
func LoadTreeEnsemble(path string) (*TreeEnsemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree model: %w", err)
	}
	return ParseTreeEnsemble(data)
}

// ParseTreeEnsemble 解析并校验 JSON 产物
func ParseTreeEnsemble(data []byte) (*TreeEnsemble, error) {
	var raw treeArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse tree model: %w", err)
	}
	mode, err := parseInputMode(raw.InputMode, core.InputNamed)
	if err != nil {
		return nil, fmt.Errorf("parse tree model: %w", err)
	}
	if raw.Ensemble == "" {
		raw.Ensemble = EnsembleForest
	}
	if raw.Ensemble != EnsembleForest && raw.Ensemble != EnsembleBoosting {
		return nil, fmt.Errorf("tree model: unknown ensemble %q", raw.Ensemble)
	}
	if raw.Ensemble == EnsembleBoosting && raw.LearningRate == 0 {
		raw.LearningRate = 0.1
	}
	if len(raw.FeatureNames) == 0 {
		return nil, fmt.Errorf("tree model: feature_names is empty")
	}
	if len(raw.Trees) == 0 {
		return nil, fmt.Errorf("tree model: no trees")
	}
	if n := len(raw.FeatureImportances); n > 0 && n != len(raw.FeatureNames) {
		return nil, fmt.Errorf("tree model: %d importances for %d features", n, len(raw.FeatureNames))
	}
	for i := range raw.Trees {
		if err := raw.Trees[i].validate(len(raw.FeatureNames)); err != nil {
			return nil, fmt.Errorf("tree model: tree %d: %w", i, err)
		}
	}
	return &TreeEnsemble{
		Ensemble:     raw.Ensemble,
		Names:        raw.FeatureNames,
		BaseScore:    raw.BaseScore,
		LearningRate: raw.LearningRate,
		Importances:  raw.FeatureImportances,
		Trees:        raw.Trees,
		mode:         mode,
	}, nil
}

func (m *TreeEnsemble) Name() string { return "tree." + m.Ensemble }

func (m *TreeEnsemble) InputMode() core.InputMode { return m.mode }

func (m *TreeEnsemble) Predict(ctx context.Context, features *core.FeatureMatrix) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewPredictionError(m.Name(), err)
	}
	idx, err := columnIndex(m.Names, features, m.mode)
	if err != nil {
		return nil, core.NewPredictionError(m.Name(), err)
	}

	scores := make([]float64, features.Len())
	for i, row := range features.Rows {
		x := func(f int) float64 { return row[idx[f]] }
		sum := 0.0
		for t := range m.Trees {
			sum += m.Trees[t].predict(x)
		}
		if m.Ensemble == EnsembleBoosting {
			scores[i] = m.BaseScore + m.LearningRate*sum
		} else {
			scores[i] = sum / float64(len(m.Trees))
		}
	}
	return scores, nil
}

// FeatureImportances 返回产物中的重要性；缺省时按分裂次数归一化
func (m *TreeEnsemble) FeatureImportances() ([]float64, error) {
	if len(m.Importances) > 0 {
		return append([]float64(nil), m.Importances...), nil
	}
	splits := make([]float64, len(m.Names))
	for _, t := range m.Trees {
		for node, left := range t.ChildrenLeft {
			if left != -1 {
				splits[t.Feature[node]]++
			}
		}
	}
	return normalizeAbs(splits), nil
}

func (m *TreeEnsemble) FeatureNames() []string { return append([]string(nil), m.Names...) }

func (m *TreeEnsemble) ExpectedFeatureNames() []string { return m.FeatureNames() }

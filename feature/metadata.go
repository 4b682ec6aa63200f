package feature

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FeatureMetadata 特征元数据，描述模型期望的输入特征，对应 feature_meta.json
// 或模型 sidecar 的 /metadata 响应。
type FeatureMetadata struct {
	// FeatureColumns 特征列名列表（按顺序）
	FeatureColumns []string `json:"feature_columns"`
	// FeatureImportances 与 FeatureColumns 对齐的重要性，可选
	FeatureImportances []float64 `json:"feature_importances,omitempty"`
	// ModelVersion 模型版本
	ModelVersion string `json:"model_version,omitempty"`
	// InputMode 模型输入方式：named / positional
	InputMode string `json:"input_mode,omitempty"`
	// CreatedAt 创建时间
	CreatedAt string `json:"created_at,omitempty"`
}

// LoadFeatureMetadata 从文件加载特征元数据
//
// 用法：
//
//	meta, err := feature.LoadFeatureMetadata("model/feature_meta.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = meta.CheckColumns(encoder.FeatureNames(), true)
func LoadFeatureMetadata(path string) (*FeatureMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature metadata: %w", err)
	}
	return ParseFeatureMetadata(data)
}

// ParseFeatureMetadata 解析 JSON 格式的特征元数据
func ParseFeatureMetadata(data []byte) (*FeatureMetadata, error) {
	var meta FeatureMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse feature metadata: %w", err)
	}
	if n := len(meta.FeatureImportances); n > 0 && n != len(meta.FeatureColumns) {
		return nil, fmt.Errorf("feature metadata: %d importances for %d columns", n, len(meta.FeatureColumns))
	}
	return &meta, nil
}

// CheckColumns 检查编码器产出的特征列是否与模型期望一致
func (m *FeatureMetadata) CheckColumns(produced []string, ordered bool) error {
	return CheckFeatureColumns(m.FeatureColumns, produced, ordered)
}

// GetMissingFeatures 返回 produced 中缺失的期望特征列
func (m *FeatureMetadata) GetMissingFeatures(produced []string) []string {
	missing, _ := diffColumns(m.FeatureColumns, produced)
	return missing
}

// CheckFeatureColumns 比较期望与实际特征列。
// 数量或名称不一致一律失败；ordered 为 true 时（位置输入）还要求顺序一致。
func CheckFeatureColumns(expected, produced []string, ordered bool) error {
	missing, unexpected := diffColumns(expected, produced)
	if len(missing) > 0 || len(unexpected) > 0 || len(expected) != len(produced) {
		return fmt.Errorf("feature mismatch: model expects [%s], encoder produces [%s]",
			strings.Join(expected, ", "), strings.Join(produced, ", "))
	}
	if ordered {
		for i := range expected {
			if expected[i] != produced[i] {
				return fmt.Errorf("feature order mismatch at position %d: model expects %q, encoder produces %q",
					i, expected[i], produced[i])
			}
		}
	}
	return nil
}

func diffColumns(expected, produced []string) (missing, unexpected []string) {
	have := make(map[string]struct{}, len(produced))
	for _, c := range produced {
		have[c] = struct{}{}
	}
	want := make(map[string]struct{}, len(expected))
	for _, c := range expected {
		want[c] = struct{}{}
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	for _, c := range produced {
		if _, ok := want[c]; !ok {
			unexpected = append(unexpected, c)
		}
	}
	return missing, unexpected
}

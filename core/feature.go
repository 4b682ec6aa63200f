package core

// 特征名（与训练时的列名一致，顺序固定）。
const (
	FeatureAgeBoxCox       = "Umur_Thn_BoxCox"
	FeatureMaritalStatus   = "Status Nikah_encoded"
	FeatureGrade           = "Gol_Ruang_encoded"
	FeatureRegency         = "Kelahiran Kabupaten/Kota_peserta_encoded"
	FeatureProvince        = "Provinsi_Target"
	FeatureVectorDimension = 5
)

// FeatureNames 返回模型期望的特征列（按顺序）。
func FeatureNames() []string {
	return []string{
		FeatureAgeBoxCox,
		FeatureMaritalStatus,
		FeatureGrade,
		FeatureRegency,
		FeatureProvince,
	}
}

// FeatureVector 是一条记录编码后的定长特征向量，顺序与 FeatureNames 一致。
type FeatureVector [FeatureVectorDimension]float64

// Slice 返回向量的副本切片
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, len(v))
	copy(out, v[:])
	return out
}

// Map 按特征名展开（命名输入模式使用）。
func (v FeatureVector) Map(names []string) map[string]float64 {
	m := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(v) {
			m[name] = v[i]
		}
	}
	return m
}

// FeatureMatrix 是批量特征输入。
type FeatureMatrix struct {
	Columns []string
	Rows    []FeatureVector
}

// Len 返回行数
func (m *FeatureMatrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// Instances 返回位置输入格式：[[f1, f2, ...], ...]
func (m *FeatureMatrix) Instances() [][]float64 {
	out := make([][]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row.Slice()
	}
	return out
}

// Named 返回命名输入格式：[{"feature1": 0.1, ...}, ...]
func (m *FeatureMatrix) Named() []map[string]float64 {
	out := make([]map[string]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row.Map(m.Columns)
	}
	return out
}

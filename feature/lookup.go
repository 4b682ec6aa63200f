package feature

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed lookup_tables.yaml
var defaultLookupYAML []byte

// BoxCoxParams 是年龄幂变换参数，训练时拟合一次，推理时只读。
type BoxCoxParams struct {
	// Offset 加在原始值上，避免 0 或负数落在定义域之外
	Offset float64 `yaml:"offset" json:"offset"`
	// Lambda 是训练时拟合得到的变换参数
	Lambda float64 `yaml:"lambda" json:"lambda"`
}

// LookupDocument 是查找表的序列化形式（YAML/JSON/Redis）。
type LookupDocument struct {
	Version              string             `yaml:"version" json:"version"`
	GlobalMean           float64            `yaml:"global_mean" json:"global_mean"`
	AgeTransform         BoxCoxParams       `yaml:"age_transform" json:"age_transform"`
	MaritalStatusClasses []string           `yaml:"marital_status_classes" json:"marital_status_classes"`
	GradeCategories      []string           `yaml:"grade_categories" json:"grade_categories"`
	RegencyMeans         map[string]float64 `yaml:"regency_means,omitempty" json:"regency_means,omitempty"`
	ProvinceMeans        map[string]float64 `yaml:"province_means,omitempty" json:"province_means,omitempty"`
}

// LookupTables 是编码器使用的静态参考数据。
//
// 通过 NewLookupTables 构造后不可修改，可在并发请求间无锁共享。
// 地区键区分大小写、精确匹配，原始数据中大小写不同的同名地区视为不同的键。
type LookupTables struct {
	version        string
	globalMean     float64
	ageTransform   BoxCoxParams
	maritalClasses []string
	maritalIndex   map[string]int
	grades         []string
	gradeIndex     map[string]int
	regencyMeans   map[string]float64
	provinceMeans  map[string]float64
}

// NewLookupTables 校验文档并构造不可变查找表（内部复制所有 map/slice）。
func NewLookupTables(doc LookupDocument) (*LookupTables, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	t := &LookupTables{
		version:        doc.Version,
		globalMean:     doc.GlobalMean,
		ageTransform:   doc.AgeTransform,
		maritalClasses: append([]string(nil), doc.MaritalStatusClasses...),
		grades:         append([]string(nil), doc.GradeCategories...),
		maritalIndex:   indexOf(doc.MaritalStatusClasses),
		gradeIndex:     indexOf(doc.GradeCategories),
		regencyMeans:   make(map[string]float64, len(doc.RegencyMeans)),
		provinceMeans:  make(map[string]float64, len(doc.ProvinceMeans)),
	}
	for k, v := range doc.RegencyMeans {
		t.regencyMeans[k] = v
	}
	for k, v := range doc.ProvinceMeans {
		t.provinceMeans[k] = v
	}
	return t, nil
}

// Validate 校验查找表文档
func (d *LookupDocument) Validate() error {
	if len(d.MaritalStatusClasses) != 2 {
		return fmt.Errorf("marital_status_classes: expected 2 classes, got %d", len(d.MaritalStatusClasses))
	}
	if len(d.GradeCategories) == 0 {
		return fmt.Errorf("grade_categories: must not be empty")
	}
	if err := checkUnique("marital_status_classes", d.MaritalStatusClasses); err != nil {
		return err
	}
	if err := checkUnique("grade_categories", d.GradeCategories); err != nil {
		return err
	}
	if math.IsNaN(d.GlobalMean) || math.IsInf(d.GlobalMean, 0) {
		return fmt.Errorf("global_mean: must be finite")
	}
	if d.AgeTransform.Offset < 0 {
		return fmt.Errorf("age_transform.offset: must be >= 0")
	}
	for k, v := range d.RegencyMeans {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("regency_means[%q]: must be finite", k)
		}
	}
	for k, v := range d.ProvinceMeans {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("province_means[%q]: must be finite", k)
		}
	}
	return nil
}

// DefaultLookupTables 返回内置的训练期查找表。
func DefaultLookupTables() (*LookupTables, error) {
	return ParseLookupTables(defaultLookupYAML)
}

// LoadLookupTables 从 YAML 文件加载查找表
func LoadLookupTables(path string) (*LookupTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookup tables: %w", err)
	}
	return ParseLookupTables(data)
}

// ParseLookupTables 解析 YAML（JSON 是 YAML 的子集，同样适用）。
func ParseLookupTables(data []byte) (*LookupTables, error) {
	var doc LookupDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse lookup tables: %w", err)
	}
	return NewLookupTables(doc)
}

// Version 返回查找表版本
func (t *LookupTables) Version() string { return t.version }

// GlobalMean 返回未知地区使用的全局均值
func (t *LookupTables) GlobalMean() float64 { return t.globalMean }

// AgeTransform 返回年龄幂变换参数
func (t *LookupTables) AgeTransform() BoxCoxParams { return t.ageTransform }

// MaritalStatusClasses 返回婚姻状态类别（训练顺序）的副本
func (t *LookupTables) MaritalStatusClasses() []string {
	return append([]string(nil), t.maritalClasses...)
}

// GradeCategories 返回职级有序类别的副本
func (t *LookupTables) GradeCategories() []string {
	return append([]string(nil), t.grades...)
}

// MaritalStatusIndex 精确匹配婚姻状态，返回类别下标
func (t *LookupTables) MaritalStatusIndex(value string) (int, bool) {
	i, ok := t.maritalIndex[value]
	return i, ok
}

// GradeIndex 精确匹配职级，返回有序位置
func (t *LookupTables) GradeIndex(value string) (int, bool) {
	i, ok := t.gradeIndex[value]
	return i, ok
}

// RegencyMean 精确匹配出生县/市，返回目标均值
func (t *LookupTables) RegencyMean(value string) (float64, bool) {
	v, ok := t.regencyMeans[value]
	return v, ok
}

// ProvinceMean 精确匹配省份，返回目标均值
func (t *LookupTables) ProvinceMean(value string) (float64, bool) {
	v, ok := t.provinceMeans[value]
	return v, ok
}

// Sizes 返回两张地区表的条目数
func (t *LookupTables) Sizes() (regencies, provinces int) {
	return len(t.regencyMeans), len(t.provinceMeans)
}

// Document 导出为可序列化文档（副本）。
func (t *LookupTables) Document() LookupDocument {
	doc := LookupDocument{
		Version:              t.version,
		GlobalMean:           t.globalMean,
		AgeTransform:         t.ageTransform,
		MaritalStatusClasses: t.MaritalStatusClasses(),
		GradeCategories:      t.GradeCategories(),
		RegencyMeans:         make(map[string]float64, len(t.regencyMeans)),
		ProvinceMeans:        make(map[string]float64, len(t.provinceMeans)),
	}
	for k, v := range t.regencyMeans {
		doc.RegencyMeans[k] = v
	}
	for k, v := range t.provinceMeans {
		doc.ProvinceMeans[k] = v
	}
	return doc
}

func indexOf(values []string) map[string]int {
	m := make(map[string]int, len(values))
	for i, v := range values {
		m[v] = i
	}
	return m
}

func checkUnique(field string, values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s: duplicate value %q", field, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

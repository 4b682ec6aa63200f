package feature

import (
	"context"
	"fmt"

	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/pkg/conv"
)

// CategoryEncoder 是单个类别特征的编码器接口
type CategoryEncoder interface {
	// Encode 编码单个值。封闭词表的编码器在未知类别时返回 UnknownCategoryError。
	Encode(value string) (float64, error)
}

// LabelEncoder Label 编码（标签编码）
// 将类别映射为其在训练时类别列表中的下标，区分大小写、精确匹配
type LabelEncoder struct {
	Field  string
	lookup func(string) (int, bool)
}

// NewLabelEncoder 创建 Label 编码器
func NewLabelEncoder(field string, lookup func(string) (int, bool)) *LabelEncoder {
	return &LabelEncoder{Field: field, lookup: lookup}
}

// Encode 编码单个值
func (e *LabelEncoder) Encode(value string) (float64, error) {
	if label, ok := e.lookup(value); ok {
		return float64(label), nil
	}
	return 0, core.NewUnknownCategoryError(e.Field, value)
}

// OrdinalEncoder 有序编码（Ordinal Encoding）
// 将有序类别映射为整数，保持顺序关系。
// 位置直接影响模型语义，所以未知类别是错误而不是默认值。
type OrdinalEncoder struct {
	Field  string
	lookup func(string) (int, bool)
}

// NewOrdinalEncoder 创建有序编码器
func NewOrdinalEncoder(field string, lookup func(string) (int, bool)) *OrdinalEncoder {
	return &OrdinalEncoder{Field: field, lookup: lookup}
}

// Encode 编码单个值
func (e *OrdinalEncoder) Encode(value string) (float64, error) {
	if pos, ok := e.lookup(value); ok {
		return float64(pos), nil
	}
	return 0, core.NewUnknownCategoryError(e.Field, value)
}

// TargetEncoder Target 编码（目标编码）
// 用训练时目标变量的类别均值编码；未出现过的类别使用全局均值，不报错。
type TargetEncoder struct {
	Field    string
	Fallback float64
	lookup   func(string) (float64, bool)
}

// NewTargetEncoder 创建 Target 编码器
func NewTargetEncoder(field string, lookup func(string) (float64, bool), fallback float64) *TargetEncoder {
	return &TargetEncoder{Field: field, Fallback: fallback, lookup: lookup}
}

// Encode 编码单个值
func (e *TargetEncoder) Encode(value string) (float64, error) {
	v, _ := e.EncodeWithFallback(value)
	return v, nil
}

// EncodeWithFallback 编码单个值，并返回是否命中查找表
func (e *TargetEncoder) EncodeWithFallback(value string) (float64, bool) {
	if mean, ok := e.lookup(value); ok {
		return mean, true
	}
	return e.Fallback, false
}

// Encoder 把规范记录编码为模型期望的定长特征向量。
//
// 所有参数来自不可变的 LookupTables，编码器本身无状态，可并发使用。
// 同一条记录无论单独编码还是在任意批次中编码，结果都相同。
type Encoder struct {
	tables   *LookupTables
	age      *BoxCoxTransformer
	marital  *LabelEncoder
	grade    *OrdinalEncoder
	regency  *TargetEncoder
	province *TargetEncoder
	monitor  Monitor
}

// EncoderOption 编码器选项
type EncoderOption func(*Encoder)

// WithMonitor 设置特征监控（记录地区回退、编码错误）
func WithMonitor(m Monitor) EncoderOption {
	return func(e *Encoder) {
		if m != nil {
			e.monitor = m
		}
	}
}

// NewEncoder 基于查找表创建编码器
func NewEncoder(tables *LookupTables, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		tables:   tables,
		age:      NewBoxCoxTransformer(tables.AgeTransform()),
		marital:  NewLabelEncoder(core.ColumnMaritalStatus, tables.MaritalStatusIndex),
		grade:    NewOrdinalEncoder(core.ColumnGrade, tables.GradeIndex),
		regency:  NewTargetEncoder(core.ColumnRegency, tables.RegencyMean, tables.GlobalMean()),
		province: NewTargetEncoder(core.ColumnProvince, tables.ProvinceMean, tables.GlobalMean()),
		monitor:  NopMonitor{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tables 返回编码器使用的查找表
func (e *Encoder) Tables() *LookupTables { return e.tables }

// FeatureNames 返回输出特征列（按顺序）
func (e *Encoder) FeatureNames() []string { return core.FeatureNames() }

// EncodeRecord 编码单条记录
func (e *Encoder) EncodeRecord(ctx context.Context, rec core.Record) (core.FeatureVector, error) {
	var vec core.FeatureVector

	age, err := e.encodeAge(rec.Age)
	if err != nil {
		e.monitor.RecordError(ctx, core.FeatureAgeBoxCox, err)
		return vec, err
	}
	vec[0] = age

	marital, err := encodeClosed(e.marital.Field, e.marital, rec.MaritalStatus)
	if err != nil {
		e.monitor.RecordError(ctx, core.FeatureMaritalStatus, err)
		return vec, err
	}
	vec[1] = marital

	grade, err := encodeClosed(e.grade.Field, e.grade, rec.Grade)
	if err != nil {
		e.monitor.RecordError(ctx, core.FeatureGrade, err)
		return vec, err
	}
	vec[2] = grade

	vec[3] = e.encodeOpen(ctx, e.regency, core.FeatureRegency, rec.Regency)
	vec[4] = e.encodeOpen(ctx, e.province, core.FeatureProvince, rec.Province)
	return vec, nil
}

// EncodeBatch 编码整个批次；任一行失败则整体失败，错误带 1 起始的行号
func (e *Encoder) EncodeBatch(ctx context.Context, batch *core.Batch) (*core.FeatureMatrix, error) {
	m := &core.FeatureMatrix{
		Columns: e.FeatureNames(),
		Rows:    make([]core.FeatureVector, 0, batch.Len()),
	}
	for i, rec := range batch.Records {
		vec, err := e.EncodeRecord(ctx, rec)
		if err != nil {
			if domainErr := core.GetDomainError(err); domainErr != nil {
				return nil, domainErr.AtRow(i + 1)
			}
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		m.Rows = append(m.Rows, vec)
	}
	return m, nil
}

func (e *Encoder) encodeAge(raw core.Optional[any]) (float64, error) {
	v, ok := raw.Get()
	if !ok {
		return 0, core.NewInvalidInputError(core.ColumnAge, "", "value is missing")
	}
	age, ok := conv.ParseFloat(v)
	if !ok {
		return 0, core.NewInvalidInputError(core.ColumnAge, fmt.Sprint(v), "not a number")
	}
	out, err := e.age.Transform(age)
	if err != nil {
		return 0, core.NewInvalidInputError(core.ColumnAge, fmt.Sprint(v), err.Error())
	}
	return out, nil
}

func encodeClosed(field string, enc CategoryEncoder, value core.Optional[string]) (float64, error) {
	v, ok := value.Get()
	if !ok {
		return 0, core.NewInvalidInputError(field, "", "value is missing")
	}
	return enc.Encode(v)
}

func (e *Encoder) encodeOpen(ctx context.Context, enc *TargetEncoder, feature string, value core.Optional[string]) float64 {
	v, ok := value.Get()
	if !ok {
		e.monitor.RecordFallback(ctx, feature, "")
		return enc.Fallback
	}
	out, hit := enc.EncodeWithFallback(v)
	if !hit {
		e.monitor.RecordFallback(ctx, feature, v)
	}
	return out
}

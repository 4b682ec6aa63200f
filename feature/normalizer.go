package feature

import (
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/pkg/conv"
)

// 外部（前端上传）列名
const (
	ExternalRegency       = "Kelahiran Kabupaten/Kota_peserta"
	ExternalAge           = "Umur"
	ExternalMaritalStatus = "Status Nikah"
	ExternalGrade         = "Gol_Ruang"
	ExternalProvince      = "Kelahiran Provinsi"
	ExternalActual        = "NILAI"
)

// DefaultColumnMapping 返回外部列名到规范列名的映射
func DefaultColumnMapping() map[string]string {
	return map[string]string{
		ExternalRegency:       core.ColumnRegency,
		ExternalAge:           core.ColumnAge,
		ExternalMaritalStatus: core.ColumnMaritalStatus,
		ExternalGrade:         core.ColumnGrade,
		ExternalProvince:      core.ColumnProvince,
		ExternalActual:        core.ColumnActual,
	}
}

// RequiredColumns 返回必需的外部列名（按报错顺序）
func RequiredColumns() []string {
	return []string{ExternalRegency, ExternalAge, ExternalMaritalStatus, ExternalGrade, ExternalProvince}
}

// ColumnNormalizer 把外部列名翻译为规范列名。
//
// 只重命名映射定义域中的 key，其他 key 原样透传；已经是规范列名的输入不受影响，
// 因此翻译是幂等的。同一行同时出现外部列名和规范列名时，外部列名的值覆盖规范列名。
type ColumnNormalizer struct {
	mapping  map[string]string
	required []string
}

// NewColumnNormalizer 使用默认映射创建
func NewColumnNormalizer() *ColumnNormalizer {
	return NewColumnNormalizerWithMapping(DefaultColumnMapping(), RequiredColumns())
}

// NewColumnNormalizerWithMapping 使用自定义映射创建（映射会被复制）
func NewColumnNormalizerWithMapping(mapping map[string]string, required []string) *ColumnNormalizer {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &ColumnNormalizer{
		mapping:  m,
		required: append([]string(nil), required...),
	}
}

// CanonicalName 返回列的规范列名
func (n *ColumnNormalizer) CanonicalName(column string) string {
	if c, ok := n.mapping[column]; ok {
		return c
	}
	return column
}

// RenameColumns 翻译表头，保持首次出现的顺序并去重。
func (n *ColumnNormalizer) RenameColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		c := n.CanonicalName(col)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// NormalizeRaw 翻译一行原始记录的列名，返回新的 map，不修改输入。
func (n *ColumnNormalizer) NormalizeRaw(raw core.RawRecord) core.RawRecord {
	out := make(core.RawRecord, len(raw))
	for k, v := range raw {
		if _, external := n.mapping[k]; !external {
			out[k] = v
		}
	}
	for k, v := range raw {
		if c, external := n.mapping[k]; external {
			out[c] = v
		}
	}
	return out
}

// Normalize 翻译列名并绑定到显式 schema。columns 是规范列名顺序，用于决定透传列的顺序。
func (n *ColumnNormalizer) Normalize(raw core.RawRecord, columns []string) core.Record {
	row := n.NormalizeRaw(raw)

	var rec core.Record
	rec.Regency = stringField(row, core.ColumnRegency)
	rec.MaritalStatus = stringField(row, core.ColumnMaritalStatus)
	rec.Grade = stringField(row, core.ColumnGrade)
	rec.Province = stringField(row, core.ColumnProvince)
	if v, ok := row[core.ColumnAge]; ok && !conv.IsBlank(v) {
		rec.Age = core.Some(v)
	}
	if v, ok := row[core.ColumnActual]; ok {
		if f, ok := conv.ParseFloat(v); ok {
			rec.Actual = core.Some(f)
		}
	}

	for _, col := range columns {
		if isKnownColumn(col) {
			continue
		}
		v, ok := row[col]
		if !ok || conv.IsBlank(v) {
			v = nil
		}
		rec.Extra = append(rec.Extra, core.Field{Name: col, Value: v})
	}
	return rec
}

// NormalizeTable 翻译整张表
func (n *ColumnNormalizer) NormalizeTable(table *core.Table) *core.Batch {
	batch := &core.Batch{Columns: n.RenameColumns(table.Columns)}
	batch.Records = make([]core.Record, 0, len(table.Rows))
	for _, raw := range table.Rows {
		batch.Records = append(batch.Records, n.Normalize(raw, batch.Columns))
	}
	return batch
}

// MissingColumns 返回缺失的必需列（外部列名）。
// 外部列名或规范列名任一存在即视为存在。
func (n *ColumnNormalizer) MissingColumns(columns []string) []string {
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[n.CanonicalName(col)] = struct{}{}
	}
	var missing []string
	for _, req := range n.required {
		if _, ok := present[n.CanonicalName(req)]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

// ValidateColumns 缺少必需列时返回 MissingColumnError
func (n *ColumnNormalizer) ValidateColumns(columns []string) error {
	if missing := n.MissingColumns(columns); len(missing) > 0 {
		return core.NewMissingColumnError(missing)
	}
	return nil
}

func stringField(row core.RawRecord, column string) core.Optional[string] {
	v, ok := row[column]
	if !ok || conv.IsBlank(v) {
		return core.Optional[string]{}
	}
	s, ok := conv.ToString(v)
	if !ok {
		return core.Optional[string]{}
	}
	return core.Some(s)
}

func isKnownColumn(column string) bool {
	switch column {
	case core.ColumnRegency, core.ColumnAge, core.ColumnMaritalStatus,
		core.ColumnGrade, core.ColumnProvince, core.ColumnActual:
		return true
	}
	return false
}

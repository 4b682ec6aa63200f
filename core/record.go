package core

// 规范列名（训练时使用的内部列名）。
// 流水线下游只认这些名称，外部列名由 feature.ColumnNormalizer 负责翻译。
const (
	ColumnRegency       = "Kelahiran Kabupaten/Kota"
	ColumnAge           = "Umur Thn"
	ColumnMaritalStatus = "Status Nikah"
	ColumnGrade         = "Gol/Ruang"
	ColumnProvince      = "Provinsi_Target"
	ColumnActual        = "NILAI"
)

// Optional 表示一个可能缺失的字段值。
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some 构造一个存在的值。
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Get 返回值及其是否存在。
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// RawRecord 是一行原始输入：列名到值（string 或数字）的映射。
// 列名可能是外部列名，也可能已经是规范列名。
type RawRecord map[string]any

// Table 是原始表格输入，Columns 保留表头顺序。
type Table struct {
	Columns []string
	Rows    []RawRecord
}

// Len 返回行数
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Field 是一个透传列（不属于已知 schema 的列）。
type Field struct {
	Name  string
	Value any
}

// Record 是列名翻译后的规范记录。
//
// 已知列使用显式字段，每个字段都带存在性标记；
// 其他列按原始顺序放在 Extra 中，仅用于回显和描述统计。
type Record struct {
	Regency       Optional[string]
	Age           Optional[any] // 原始值，由编码器负责数值转换
	MaritalStatus Optional[string]
	Grade         Optional[string]
	Province      Optional[string]
	Actual        Optional[float64]

	Extra []Field
}

// Value 按规范列名取值，缺失时返回 (nil, false)。
func (r *Record) Value(column string) (any, bool) {
	switch column {
	case ColumnRegency:
		return optionalAny(r.Regency)
	case ColumnAge:
		return r.Age.Get()
	case ColumnMaritalStatus:
		return optionalAny(r.MaritalStatus)
	case ColumnGrade:
		return optionalAny(r.Grade)
	case ColumnProvince:
		return optionalAny(r.Province)
	case ColumnActual:
		return optionalAny(r.Actual)
	}
	for _, f := range r.Extra {
		if f.Name == column {
			return f.Value, f.Value != nil
		}
	}
	return nil, false
}

func optionalAny[T any](o Optional[T]) (any, bool) {
	if !o.Valid {
		return nil, false
	}
	return o.Value, true
}

// Batch 是一次请求内的全部规范记录。
type Batch struct {
	// Columns 是规范列名，保持输入顺序
	Columns []string
	Records []Record
}

// HasColumn 判断批次是否包含某个规范列（列存在即可，单元格可以为空）。
func (b *Batch) HasColumn(column string) bool {
	for _, c := range b.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Len 返回记录数
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

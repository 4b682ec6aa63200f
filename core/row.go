package core

import (
	"bytes"
	"encoding/json"
	"math"
)

// OrderedRow 是保持列顺序的一行输出（input_data 回显使用）。
// 序列化时按 Columns 顺序输出，缺失值与 NaN/Inf 输出为 null。
type OrderedRow struct {
	Columns []string
	Values  map[string]any
}

// NewOrderedRow 创建空行
func NewOrderedRow(capacity int) OrderedRow {
	return OrderedRow{
		Columns: make([]string, 0, capacity),
		Values:  make(map[string]any, capacity),
	}
}

// Set 写入一列；重复写入只更新值，不改变顺序。
func (r *OrderedRow) Set(column string, value any) {
	if _, ok := r.Values[column]; !ok {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = value
}

// Get 读取一列
func (r OrderedRow) Get(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

func (r OrderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(sanitize(r.Values[col]))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// sanitize 把不可序列化的浮点值替换为 nil。
func sanitize(v any) any {
	switch f := v.(type) {
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil
		}
	}
	return v
}

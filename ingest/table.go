// Package ingest 把上传的表格文件（CSV/XLS/XLSX）和 JSON 记录读取为 core.Table。
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rushteam/scorekit/core"
)

// 支持的文件格式
const (
	FormatCSV  = ".csv"
	FormatXLSX = ".xlsx"
	FormatXLS  = ".xls"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// 视为缺失值的单元格文本
var missingValues = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
	"#N/A": {},
	"<NA>": {},
}

// Supported 判断文件名是否为支持的格式
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case FormatCSV, FormatXLSX, FormatXLS:
		return true
	}
	return false
}

// ReadTable 按扩展名（不区分大小写）读取表格。
// 不支持的格式返回 UnsupportedFormatError，内容无法解析返回 InvalidInputError。
func ReadTable(filename string, r io.Reader) (*core.Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case FormatCSV:
		return ReadCSV(filename, r)
	case FormatXLSX, FormatXLS:
		return ReadExcel(filename, r)
	}
	return nil, core.NewUnsupportedFormatError(filename)
}

// ReadCSV 读取 CSV，先按逗号解析；表头只有一列且包含分号，或逗号解析失败时，改用分号重新解析。
func ReadCSV(filename string, r io.Reader) (*core.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	records, err := parseCSV(data, ',')
	if err != nil || (len(records) > 0 && len(records[0]) == 1 && strings.Contains(records[0][0], ";")) {
		var retryErr error
		records, retryErr = parseCSV(data, ';')
		if retryErr != nil {
			if err == nil {
				err = retryErr
			}
			return nil, core.NewInvalidInputError("file", filename, err.Error())
		}
	}
	return buildTable(records), nil
}

func parseCSV(data []byte, comma rune) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

// ReadExcel 读取工作簿的第一个工作表。excelize 无法打开的旧版二进制 .xls 返回 InvalidInputError。
func ReadExcel(filename string, r io.Reader) (*core.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewInvalidInputError("file", filename, fmt.Sprintf("cannot open workbook: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.NewInvalidInputError("file", filename, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, core.NewInvalidInputError("file", filename, fmt.Sprintf("read sheet %q: %v", sheets[0], err))
	}
	return buildTable(rows), nil
}

// FromJSON 把单条 JSON 记录转为一行表格，列按名称排序。null 视为缺失。
func FromJSON(obj map[string]any) *core.Table {
	columns := make([]string, 0, len(obj))
	row := make(core.RawRecord, len(obj))
	for k, v := range obj {
		columns = append(columns, k)
		if v != nil {
			row[k] = v
		}
	}
	sort.Strings(columns)
	return &core.Table{Columns: columns, Rows: []core.RawRecord{row}}
}

// buildTable 第一行为表头，空行跳过。
// 一列中所有非空单元格都是数字时该列按 float64 读取，否则保留字符串。
func buildTable(records [][]string) *core.Table {
	table := &core.Table{}
	if len(records) == 0 {
		return table
	}
	table.Columns = headerNames(records[0])

	body := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if !blankRow(rec) {
			body = append(body, rec)
		}
	}

	numeric := make([]bool, len(table.Columns))
	for j := range table.Columns {
		numeric[j] = numericColumn(body, j)
	}

	table.Rows = make([]core.RawRecord, 0, len(body))
	for _, rec := range body {
		row := make(core.RawRecord, len(table.Columns))
		for j, col := range table.Columns {
			cell, ok := cellAt(rec, j)
			if !ok {
				continue
			}
			if numeric[j] {
				f, _ := strconv.ParseFloat(strings.TrimSpace(cell), 64)
				row[col] = f
				continue
			}
			row[col] = cell
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// headerNames 空表头命名为 "Unnamed: i"，重复表头追加 ".1"、".2" 后缀
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

// cellAt 返回第 j 个单元格，越界或缺失值返回 false
func cellAt(rec []string, j int) (string, bool) {
	if j >= len(rec) {
		return "", false
	}
	cell := rec[j]
	if _, missing := missingValues[strings.TrimSpace(cell)]; missing {
		return "", false
	}
	return cell, true
}

func numericColumn(body [][]string, j int) bool {
	for _, rec := range body {
		cell, ok := cellAt(rec, j)
		if !ok {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			return false
		}
	}
	return true
}

func blankRow(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

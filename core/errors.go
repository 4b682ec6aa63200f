package core

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - 输入错误：UNSUPPORTED_FORMAT, MISSING_COLUMN, INVALID_INPUT, UNKNOWN_CATEGORY
//   - 模型错误：PREDICTION_FAILED
//   - 其他内部错误：INTERNAL_ERROR
type DomainError struct {
	Code    string // 错误代码（如 "UNKNOWN_CATEGORY"）
	Message string // 错误消息
	Module  string // 模块名称（如 "ingest", "feature", "model"）

	Field   string   // 出错的字段（可选）
	Value   string   // 出错的原始值（可选）
	Row     int      // 出错的行号，从 1 开始；0 表示与行无关
	Columns []string // 缺失的列（MISSING_COLUMN）

	Err error // 底层错误（可选）
}

func (e *DomainError) Error() string {
	var b strings.Builder
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DomainError) Unwrap() error { return e.Err }

// AtRow 返回带行号的副本，原错误不变。
func (e *DomainError) AtRow(row int) *DomainError {
	cp := *e
	cp.Row = row
	return &cp
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeUnsupportedFormat = "UNSUPPORTED_FORMAT" // 不支持的文件格式
	ErrorCodeMissingColumn     = "MISSING_COLUMN"     // 缺少必需列
	ErrorCodeInvalidInput      = "INVALID_INPUT"      // 输入无法转换为所需类型
	ErrorCodeUnknownCategory   = "UNKNOWN_CATEGORY"   // 封闭词表之外的类别
	ErrorCodePredictionFailed  = "PREDICTION_FAILED"  // 模型预测失败
	ErrorCodeInternalError     = "INTERNAL_ERROR"     // 内部错误
)

// 模块名称常量
const (
	ModuleIngest   = "ingest"   // 表格读取
	ModuleFeature  = "feature"  // 特征编码
	ModuleModel    = "model"    // 预测模型
	ModulePipeline = "pipeline" // 请求流水线
)

// NewUnsupportedFormatError 文件扩展名无法识别。
func NewUnsupportedFormatError(filename string) *DomainError {
	return &DomainError{
		Module:  ModuleIngest,
		Code:    ErrorCodeUnsupportedFormat,
		Message: "unsupported file format, upload a CSV, XLS or XLSX file",
		Value:   filename,
	}
}

// NewMissingColumnError 缺少必需列，columns 为外部列名。
func NewMissingColumnError(columns []string) *DomainError {
	return &DomainError{
		Module:  ModuleFeature,
		Code:    ErrorCodeMissingColumn,
		Message: fmt.Sprintf("missing required columns: %s", strings.Join(columns, ", ")),
		Columns: columns,
	}
}

// NewInvalidInputError 值无法转换为特征所需的类型。
func NewInvalidInputError(field, value, reason string) *DomainError {
	msg := fmt.Sprintf("invalid value %q for %s", value, field)
	if reason != "" {
		msg += ": " + reason
	}
	return &DomainError{
		Module:  ModuleFeature,
		Code:    ErrorCodeInvalidInput,
		Message: msg,
		Field:   field,
		Value:   value,
	}
}

// NewUnknownCategoryError 封闭词表之外的类别值。
func NewUnknownCategoryError(field, value string) *DomainError {
	return &DomainError{
		Module:  ModuleFeature,
		Code:    ErrorCodeUnknownCategory,
		Message: fmt.Sprintf("unknown category %q for %s", value, field),
		Field:   field,
		Value:   value,
	}
}

// NewPredictionError 包装模型内部错误。
func NewPredictionError(model string, err error) *DomainError {
	return &DomainError{
		Module:  ModuleModel,
		Code:    ErrorCodePredictionFailed,
		Message: fmt.Sprintf("model %s prediction failed", model),
		Err:     err,
	}
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsUnsupportedFormat 检查错误是否为 UNSUPPORTED_FORMAT
func IsUnsupportedFormat(err error) bool { return hasCode(err, ErrorCodeUnsupportedFormat) }

// IsMissingColumn 检查错误是否为 MISSING_COLUMN
func IsMissingColumn(err error) bool { return hasCode(err, ErrorCodeMissingColumn) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsUnknownCategory 检查错误是否为 UNKNOWN_CATEGORY
func IsUnknownCategory(err error) bool { return hasCode(err, ErrorCodeUnknownCategory) }

// IsPredictionFailed 检查错误是否为 PREDICTION_FAILED
func IsPredictionFailed(err error) bool { return hasCode(err, ErrorCodePredictionFailed) }

// IsClientError 判断错误是否应作为客户端错误（HTTP 400）返回。
// 预测失败也归为客户端错误：它通常源于到达模型的畸形输入。
func IsClientError(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr == nil {
		return false
	}
	switch domainErr.Code {
	case ErrorCodeUnsupportedFormat, ErrorCodeMissingColumn, ErrorCodeInvalidInput,
		ErrorCodeUnknownCategory, ErrorCodePredictionFailed:
		return true
	}
	return false
}

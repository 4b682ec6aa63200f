package core

// ComparisonRow 是一行实际值与预测值的对比。
// Actual 缺失时 Actual/Error/ErrorPct 为 nil；Actual 为 0 时 ErrorPct 为 nil。
type ComparisonRow struct {
	Actual    *float64 `json:"actual"`
	Predicted float64  `json:"predicted"`
	Error     *float64 `json:"error"`
	ErrorPct  *float64 `json:"error_pct"`
}

// SummaryError 是批次级误差指标。
type SummaryError struct {
	MAE  float64 `json:"MAE"`
	MSE  float64 `json:"MSE"`
	RMSE float64 `json:"RMSE"`
}

// ColumnSummary 是单列的描述统计，不适用的统计量为 nil。
type ColumnSummary map[string]any

// PredictionResponse 是两个预测接口共用的响应结构。
type PredictionResponse struct {
	Predictions           []float64                `json:"predictions"`
	NParticipants         int                      `json:"n_participants"`
	FeatureImportancePlot *string                  `json:"feature_importance_plot"`
	FeatureImportance     map[string]float64       `json:"feature_importance"`
	DataSummary           map[string]ColumnSummary `json:"data_summary"`
	InputData             []OrderedRow             `json:"input_data"`
	AutoInsight           []string                 `json:"auto_insight"`
	Comparison            []ComparisonRow          `json:"comparison"`
	SummaryError          *SummaryError            `json:"summary_error"`
}

// ErrorResponse 是失败响应
type ErrorResponse struct {
	Error string `json:"error"`
}

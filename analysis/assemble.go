package analysis

import (
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/pkg/conv"
)

// 回显列名
const (
	EchoGradeColumn       = "Gol_Ruang"               // Gol/Ruang 回显时的列名
	DerivedProvinceColumn = "Provinsi_Target_encoded" // 省份目标均值（Provinsi_Target 回显省份名称）
)

// Result 是组装响应所需的全部中间结果
type Result struct {
	Batch       *core.Batch
	Features    *core.FeatureMatrix
	Predictions []float64
	Importance  *Importance
	Plot        string
	Insights    []string
}

// OutputColumns 返回 input_data / data_summary 的列顺序：
// 输入列（Gol/Ruang 改名为 Gol_Ruang）+ 派生特征列。
func OutputColumns(batch *core.Batch) []string {
	cols := make([]string, 0, len(batch.Columns)+core.FeatureVectorDimension)
	for _, c := range batch.Columns {
		cols = append(cols, echoName(c))
	}
	return append(cols, derivedColumns()...)
}

func derivedColumns() []string {
	return []string{
		core.FeatureAgeBoxCox,
		core.FeatureMaritalStatus,
		core.FeatureGrade,
		core.FeatureRegency,
		DerivedProvinceColumn,
	}
}

func echoName(column string) string {
	if column == core.ColumnGrade {
		return EchoGradeColumn
	}
	return column
}

// InputRows 回显每条规范记录及其编码结果
func InputRows(batch *core.Batch, features *core.FeatureMatrix) []core.OrderedRow {
	derived := derivedColumns()
	rows := make([]core.OrderedRow, batch.Len())
	for i := range batch.Records {
		rec := &batch.Records[i]
		row := core.NewOrderedRow(len(batch.Columns) + len(derived))
		for _, col := range batch.Columns {
			v, ok := rec.Value(col)
			if !ok {
				row.Set(echoName(col), nil)
				continue
			}
			if col == core.ColumnAge {
				if f, ok := conv.ParseFloat(v); ok {
					v = f
				}
			}
			row.Set(echoName(col), v)
		}
		if features != nil && i < features.Len() {
			for j, name := range derived {
				row.Set(name, features.Rows[i][j])
			}
		}
		rows[i] = row
	}
	return rows
}

// Assemble 组装最终响应
func Assemble(r Result) *core.PredictionResponse {
	resp := &core.PredictionResponse{
		Predictions:   r.Predictions,
		NParticipants: len(r.Predictions),
		AutoInsight:   r.Insights,
	}
	if resp.Predictions == nil {
		resp.Predictions = []float64{}
	}
	if resp.AutoInsight == nil {
		resp.AutoInsight = []string{}
	}

	if r.Importance != nil {
		resp.FeatureImportance = r.Importance.Map()
		if r.Plot != "" {
			plot := r.Plot
			resp.FeatureImportancePlot = &plot
		}
	}

	resp.InputData = InputRows(r.Batch, r.Features)
	resp.DataSummary = Describe(resp.InputData, OutputColumns(r.Batch))

	if actuals, ok := Actuals(r.Batch); ok {
		resp.Comparison, resp.SummaryError = Compare(r.Predictions, actuals)
	}
	return resp
}

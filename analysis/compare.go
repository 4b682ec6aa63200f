package analysis

import (
	"math"

	"github.com/rushteam/scorekit/core"
)

// Actuals 提取批次的真实值；批次不含 NILAI 列时 ok 为 false。
func Actuals(batch *core.Batch) (actuals []core.Optional[float64], ok bool) {
	if !batch.HasColumn(core.ColumnActual) {
		return nil, false
	}
	actuals = make([]core.Optional[float64], batch.Len())
	for i := range batch.Records {
		actuals[i] = batch.Records[i].Actual
	}
	return actuals, true
}

// Compare 逐行对比预测值与真实值：error = predicted - actual，
// error_pct = error / actual * 100（actual 为 0 时为 nil）。
// 真实值缺失的行保留预测值，其余字段为 nil，不计入汇总指标；
// 没有任何有效真实值时汇总指标为 nil。
func Compare(predictions []float64, actuals []core.Optional[float64]) ([]core.ComparisonRow, *core.SummaryError) {
	rows := make([]core.ComparisonRow, len(predictions))
	var n int
	var sumAbs, sumSq float64
	for i, pred := range predictions {
		rows[i].Predicted = pred
		if i >= len(actuals) {
			continue
		}
		actual, ok := actuals[i].Get()
		if !ok || math.IsNaN(actual) || math.IsInf(actual, 0) {
			continue
		}
		diff := pred - actual
		rows[i].Actual = ptr(actual)
		rows[i].Error = ptr(diff)
		if actual != 0 {
			rows[i].ErrorPct = ptr(diff / actual * 100)
		}
		n++
		sumAbs += math.Abs(diff)
		sumSq += diff * diff
	}
	if n == 0 {
		return rows, nil
	}
	mse := sumSq / float64(n)
	return rows, &core.SummaryError{
		MAE:  sumAbs / float64(n),
		MSE:  mse,
		RMSE: math.Sqrt(mse),
	}
}

func ptr[T any](v T) *T { return &v }

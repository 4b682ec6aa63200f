package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rushteam/scorekit/analysis"
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
)

// NormalizeStage 校验必需列并把表格翻译为规范批次
type NormalizeStage struct {
	Normalizer *feature.ColumnNormalizer
}

func (s *NormalizeStage) Name() string { return "normalize.columns" }
func (s *NormalizeStage) Kind() Kind   { return KindNormalize }

func (s *NormalizeStage) Process(ctx context.Context, st *State) error {
	if st.Table == nil {
		return core.NewInvalidInputError("file", "", "no rows")
	}
	if err := s.Normalizer.ValidateColumns(st.Table.Columns); err != nil {
		return err
	}
	st.Batch = s.Normalizer.NormalizeTable(st.Table)
	return nil
}

// EncodeStage 把规范批次编码为特征矩阵
type EncodeStage struct {
	Encoder *feature.Encoder
}

func (s *EncodeStage) Name() string { return "encode.features" }
func (s *EncodeStage) Kind() Kind   { return KindEncode }

func (s *EncodeStage) Process(ctx context.Context, st *State) error {
	m, err := s.Encoder.EncodeBatch(ctx, st.Batch)
	if err != nil {
		return err
	}
	st.Features = m
	return nil
}

// PredictStage 在超时控制下调用预测器，所有失败都归为 PredictionError
type PredictStage struct {
	Predictor core.Predictor
	Timeout   time.Duration
}

func (s *PredictStage) Name() string { return "predict." + s.Predictor.Name() }
func (s *PredictStage) Kind() Kind   { return KindPredict }

func (s *PredictStage) Process(ctx context.Context, st *State) error {
	if st.Features.Len() == 0 {
		st.Predictions = []float64{}
		return nil
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	scores, err := s.Predictor.Predict(ctx, st.Features)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if core.IsPredictionFailed(err) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("predict timeout after %s: %w", s.Timeout, err)
		}
		return core.NewPredictionError(s.Predictor.Name(), err)
	}
	if len(scores) != st.Features.Len() {
		return core.NewPredictionError(s.Predictor.Name(),
			fmt.Errorf("got %d scores for %d rows", len(scores), st.Features.Len()))
	}
	st.Predictions = scores
	return nil
}

// AnalyzeStage 生成分析结果并组装响应，分析失败只降级不报错
type AnalyzeStage struct {
	Analyzer  *analysis.Analyzer
	Predictor core.Predictor
}

func (s *AnalyzeStage) Name() string { return "analyze.response" }
func (s *AnalyzeStage) Kind() Kind   { return KindAnalyze }

func (s *AnalyzeStage) Process(ctx context.Context, st *State) error {
	st.Response, st.Degradations = s.Analyzer.Analyze(ctx, st.Batch, st.Features, st.Predictions, s.Predictor)
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/scorekit/analysis"
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
	"github.com/rushteam/scorekit/model"
)

var testColumns = []string{
	"Kelahiran Kabupaten/Kota_peserta", "Umur", "Status Nikah", "Gol_Ruang", "Kelahiran Provinsi",
}

func participant(regency string, age any, marital, grade, province string) core.RawRecord {
	return core.RawRecord{
		"Kelahiran Kabupaten/Kota_peserta": regency,
		"Umur":                             age,
		"Status Nikah":                     marital,
		"Gol_Ruang":                        grade,
		"Kelahiran Provinsi":               province,
	}
}

type recordingObserver struct {
	mu           sync.Mutex
	stages       []Kind
	runs         int
	participants int
	degraded     []string
}

func (o *recordingObserver) ObserveStage(_ context.Context, kind Kind, _ string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, kind)
}

func (o *recordingObserver) ObserveRun(_ context.Context, participants int, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	o.participants += participants
}

func (o *recordingObserver) ObserveDegradation(_ context.Context, component string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded = append(o.degraded, component)
}

type slowPredictor struct{ delay time.Duration }

func (p *slowPredictor) Name() string              { return "slow" }
func (p *slowPredictor) InputMode() core.InputMode { return core.InputPositional }
func (p *slowPredictor) Predict(ctx context.Context, m *core.FeatureMatrix) ([]float64, error) {
	select {
	case <-time.After(p.delay):
		return make([]float64, m.Len()), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type failingPredictor struct{}

func (failingPredictor) Name() string              { return "failing" }
func (failingPredictor) InputMode() core.InputMode { return core.InputNamed }
func (failingPredictor) Predict(context.Context, *core.FeatureMatrix) ([]float64, error) {
	return nil, errors.New("sidecar unavailable")
}

func newTestPipeline(t *testing.T, p core.Predictor, opts ...Option) *Pipeline {
	t.Helper()
	tables, err := feature.DefaultLookupTables()
	require.NoError(t, err)
	in, err := analysis.NewInsighter(nil)
	require.NoError(t, err)
	if p == nil {
		p, err = model.NewLinearModel(50, core.FeatureNames(), []float64{0, 0, 0, 0.5, 0}, nil, core.InputNamed)
		require.NoError(t, err)
	}
	return New(feature.NewColumnNormalizer(), feature.NewEncoder(tables), p, analysis.NewAnalyzer(in), opts...)
}

func TestPipeline_Run(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestPipeline(t, nil, WithObserver(obs))
	require.NoError(t, p.Validate())

	resp, err := p.Run(context.Background(), &core.Table{
		Columns: append(testColumns, "NILAI"),
		Rows: []core.RawRecord{
			{
				"Kelahiran Kabupaten/Kota_peserta": "BANTUL", "Umur": 30.0, "Status Nikah": "Menikah",
				"Gol_Ruang": "III/A", "Kelahiran Provinsi": "Jawa Barat", "NILAI": 90.0,
			},
			{
				"Kelahiran Kabupaten/Kota_peserta": "Atlantis", "Umur": 45.0, "Status Nikah": "Belum Menikah",
				"Gol_Ruang": "II/A", "Kelahiran Provinsi": "Jawa Barat", "NILAI": 80.0,
			},
		},
	})
	require.NoError(t, err)

	// 50 + 0.5 * 87（BANTUL）、50 + 0.5 * 65（回退到全局均值）
	assert.InDeltaSlice(t, []float64{93.5, 82.5}, resp.Predictions, 1e-9)
	assert.Equal(t, 2, resp.NParticipants)
	require.NotNil(t, resp.SummaryError)
	assert.InDelta(t, 3.0, resp.SummaryError.MAE, 1e-9)
	assert.Len(t, resp.FeatureImportance, core.FeatureVectorDimension)

	assert.Equal(t, []Kind{KindNormalize, KindEncode, KindPredict, KindAnalyze}, obs.stages)
	assert.Equal(t, 1, obs.runs)
	assert.Equal(t, 2, obs.participants)
}

func TestPipeline_Errors(t *testing.T) {
	tests := []struct {
		name      string
		predictor core.Predictor
		opts      []Option
		table     *core.Table
		check     func(t *testing.T, err error)
	}{
		{
			name: "missing columns",
			table: &core.Table{
				Columns: []string{"Umur"},
				Rows:    []core.RawRecord{{"Umur": 30.0}},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, core.IsMissingColumn(err))
				assert.Contains(t, err.Error(), "Gol_Ruang")
			},
		},
		{
			name: "unknown grade",
			table: &core.Table{
				Columns: testColumns,
				Rows: []core.RawRecord{
					participant("BANTUL", 30.0, "Menikah", "III/A", "Jawa Barat"),
					participant("BANTUL", 30.0, "Menikah", "IV/A", "Jawa Barat"),
				},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, core.IsUnknownCategory(err))
				assert.Contains(t, err.Error(), "IV/A")
			},
		},
		{
			name:      "predictor failure",
			predictor: failingPredictor{},
			table: &core.Table{
				Columns: testColumns,
				Rows:    []core.RawRecord{participant("BANTUL", 30.0, "Menikah", "III/A", "Jawa Barat")},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, core.IsPredictionFailed(err))
				assert.Contains(t, err.Error(), "sidecar unavailable")
			},
		},
		{
			name:      "predict timeout",
			predictor: &slowPredictor{delay: time.Second},
			opts:      []Option{WithPredictTimeout(20 * time.Millisecond)},
			table: &core.Table{
				Columns: testColumns,
				Rows:    []core.RawRecord{participant("BANTUL", 30.0, "Menikah", "III/A", "Jawa Barat")},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, core.IsPredictionFailed(err))
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.predictor, tt.opts...)
			resp, err := p.Run(context.Background(), tt.table)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, core.IsClientError(err))
			tt.check(t, err)
		})
	}
}

func TestPipeline_EmptyTable(t *testing.T) {
	p := newTestPipeline(t, nil)
	resp, err := p.Run(context.Background(), &core.Table{Columns: testColumns})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.NParticipants)
	assert.Empty(t, resp.Predictions)
}

func TestPipeline_Validate(t *testing.T) {
	reordered := []string{
		core.FeatureMaritalStatus, core.FeatureAgeBoxCox, core.FeatureGrade, core.FeatureRegency, core.FeatureProvince,
	}

	named, err := model.NewLinearModel(0, reordered, []float64{1, 1, 1, 1, 1}, nil, core.InputNamed)
	require.NoError(t, err)
	assert.NoError(t, newTestPipeline(t, named).Validate())

	positional, err := model.NewLinearModel(0, reordered, []float64{1, 1, 1, 1, 1}, nil, core.InputPositional)
	require.NoError(t, err)
	err = newTestPipeline(t, positional).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order mismatch")

	missing, err := model.NewLinearModel(0, []string{"Umur_Thn_BoxCox", "Masa_Kerja"}, []float64{1, 1}, nil, core.InputNamed)
	require.NoError(t, err)
	err = newTestPipeline(t, missing).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Masa_Kerja")

	assert.NoError(t, newTestPipeline(t, &slowPredictor{}).Validate())
}

func TestPipeline_BoundedConcurrency(t *testing.T) {
	p := newTestPipeline(t, &slowPredictor{delay: 30 * time.Millisecond}, WithMaxConcurrent(1))
	table := &core.Table{
		Columns: testColumns,
		Rows:    []core.RawRecord{participant("BANTUL", 30.0, "Menikah", "III/A", "Jawa Barat")},
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Run(context.Background(), table)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

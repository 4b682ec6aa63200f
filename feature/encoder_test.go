package feature

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/scorekit/core"
)

func newTestEncoder(t *testing.T, opts ...EncoderOption) *Encoder {
	t.Helper()
	tables, err := DefaultLookupTables()
	require.NoError(t, err)
	return NewEncoder(tables, opts...)
}

func record(regency string, age any, marital, grade, province string) core.Record {
	rec := core.Record{Age: core.Some(age)}
	if regency != "" {
		rec.Regency = core.Some(regency)
	}
	if marital != "" {
		rec.MaritalStatus = core.Some(marital)
	}
	if grade != "" {
		rec.Grade = core.Some(grade)
	}
	if province != "" {
		rec.Province = core.Some(province)
	}
	return rec
}

func boxCox(x float64) float64 {
	return (math.Pow(x+0.001, 0.2847) - 1) / 0.2847
}

func TestEncoder_EncodeRecord(t *testing.T) {
	enc := newTestEncoder(t)

	vec, err := enc.EncodeRecord(context.Background(), record("BANTUL", 30, "Menikah", "III/A", "Jawa Barat"))
	require.NoError(t, err)

	assert.InDelta(t, boxCox(30), vec[0], 1e-9)
	assert.Equal(t, 1.0, vec[1])
	assert.Equal(t, 4.0, vec[2])
	assert.Equal(t, 87.0, vec[3])
	assert.InDelta(t, 82.733519, vec[4], 1e-9)
}

func TestEncoder_AgeCoercion(t *testing.T) {
	enc := newTestEncoder(t)

	tests := []struct {
		name string
		age  any
		want float64
	}{
		{name: "int", age: 41, want: boxCox(41)},
		{name: "float", age: 41.5, want: boxCox(41.5)},
		{name: "numeric string", age: "41", want: boxCox(41)},
		{name: "decimal comma", age: "41,5", want: boxCox(41.5)},
		{name: "zero is inside the domain", age: 0, want: boxCox(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, err := enc.EncodeRecord(context.Background(), record("BANTUL", tt.age, "Menikah", "II/A", "Jawa Barat"))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, vec[0], 1e-9)
		})
	}
}

func TestEncoder_GradeOrdinalPositions(t *testing.T) {
	enc := newTestEncoder(t)

	grades := []string{"II/A", "II/B", "II/C", "II/D", "III/A", "III/B", "III/C", "III/D"}
	for want, grade := range grades {
		vec, err := enc.EncodeRecord(context.Background(), record("BANTUL", 30, "Menikah", grade, "Jawa Barat"))
		require.NoError(t, err, grade)
		assert.Equal(t, float64(want), vec[2], grade)
	}
}

func TestEncoder_MaritalStatusLabels(t *testing.T) {
	enc := newTestEncoder(t)

	vec, err := enc.EncodeRecord(context.Background(), record("BANTUL", 30, "Belum Menikah", "II/A", "Jawa Barat"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, vec[1])
}

func TestEncoder_GeographicFallback(t *testing.T) {
	mon := NewMemoryFeatureMonitor()
	enc := newTestEncoder(t, WithMonitor(mon))

	vec, err := enc.EncodeRecord(context.Background(), record("Atlantis", 30, "Menikah", "II/A", "Narnia"))
	require.NoError(t, err)
	assert.Equal(t, 65.0, vec[3])
	assert.Equal(t, 65.0, vec[4])

	// 大小写不同视为未知地区
	vec, err = enc.EncodeRecord(context.Background(), record("bantul", 30, "Menikah", "II/A", ""))
	require.NoError(t, err)
	assert.Equal(t, 65.0, vec[3])
	assert.Equal(t, 65.0, vec[4])

	stats, ok := mon.GetFeatureStats(core.FeatureRegency)
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.FallbackCount)
	assert.Equal(t, int64(1), stats.UnseenValues["Atlantis"])
	assert.Equal(t, int64(1), stats.UnseenValues["bantul"])

	stats, ok = mon.GetFeatureStats(core.FeatureProvince)
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.FallbackCount)
	assert.Equal(t, int64(1), stats.UnseenValues[""])
}

func TestEncoder_Errors(t *testing.T) {
	tests := []struct {
		name      string
		rec       core.Record
		wantCode  string
		wantField string
		wantValue string
	}{
		{
			name:      "unknown grade",
			rec:       record("BANTUL", 30, "Menikah", "IV/A", "Jawa Barat"),
			wantCode:  core.ErrorCodeUnknownCategory,
			wantField: core.ColumnGrade,
			wantValue: "IV/A",
		},
		{
			name:      "marital status is case sensitive",
			rec:       record("BANTUL", 30, "menikah", "II/A", "Jawa Barat"),
			wantCode:  core.ErrorCodeUnknownCategory,
			wantField: core.ColumnMaritalStatus,
			wantValue: "menikah",
		},
		{
			name:      "missing marital status",
			rec:       record("BANTUL", 30, "", "II/A", "Jawa Barat"),
			wantCode:  core.ErrorCodeInvalidInput,
			wantField: core.ColumnMaritalStatus,
		},
		{
			name:      "non numeric age",
			rec:       record("BANTUL", "tiga puluh", "Menikah", "II/A", "Jawa Barat"),
			wantCode:  core.ErrorCodeInvalidInput,
			wantField: core.ColumnAge,
			wantValue: "tiga puluh",
		},
		{
			name:      "age outside the transform domain",
			rec:       record("BANTUL", -5, "Menikah", "II/A", "Jawa Barat"),
			wantCode:  core.ErrorCodeInvalidInput,
			wantField: core.ColumnAge,
			wantValue: "-5",
		},
		{
			name:      "missing age",
			rec:       core.Record{MaritalStatus: core.Some("Menikah"), Grade: core.Some("II/A")},
			wantCode:  core.ErrorCodeInvalidInput,
			wantField: core.ColumnAge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mon := NewMemoryFeatureMonitor()
			enc := newTestEncoder(t, WithMonitor(mon))

			_, err := enc.EncodeRecord(context.Background(), tt.rec)
			require.Error(t, err)

			domainErr := core.GetDomainError(err)
			require.NotNil(t, domainErr)
			assert.Equal(t, tt.wantCode, domainErr.Code)
			assert.Equal(t, tt.wantField, domainErr.Field)
			assert.Equal(t, tt.wantValue, domainErr.Value)
			assert.True(t, core.IsClientError(err))
		})
	}
}

func TestEncoder_UnknownCategoryMessageNamesValue(t *testing.T) {
	enc := newTestEncoder(t)

	_, err := enc.EncodeRecord(context.Background(), record("BANTUL", 30, "Menikah", "IV/A", "Jawa Barat"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IV/A")
	assert.Contains(t, err.Error(), core.ColumnGrade)
}

func TestEncoder_BatchIndependence(t *testing.T) {
	enc := newTestEncoder(t)
	ctx := context.Background()

	target := record("Kabupaten Bantul", 37, "Menikah", "III/B", "Jawa Tengah")
	alone, err := enc.EncodeRecord(ctx, target)
	require.NoError(t, err)

	batches := [][]core.Record{
		{target},
		{record("BOGOR", 22, "Belum Menikah", "II/A", "Jawa Barat"), target},
		{target, record("X", 70, "Menikah", "III/D", "Y"), record("BATAM", 55, "Menikah", "II/C", "Riau")},
	}
	for i, recs := range batches {
		m, err := enc.EncodeBatch(ctx, &core.Batch{Records: recs})
		require.NoError(t, err)
		for j, rec := range recs {
			if rec.Regency == target.Regency && rec.Grade == target.Grade {
				assert.Equal(t, alone, m.Rows[j], "batch %d row %d", i, j)
			}
		}
	}
}

func TestEncoder_EncodeBatchReportsRow(t *testing.T) {
	enc := newTestEncoder(t)

	batch := &core.Batch{Records: []core.Record{
		record("BANTUL", 30, "Menikah", "II/A", "Jawa Barat"),
		record("BANTUL", 31, "Menikah", "II/B", "Jawa Barat"),
		record("BANTUL", 32, "Menikah", "V/Z", "Jawa Barat"),
	}}
	m, err := enc.EncodeBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Nil(t, m)

	domainErr := core.GetDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, 3, domainErr.Row)
	assert.True(t, core.IsUnknownCategory(err))
}

func TestEncoder_FeatureNames(t *testing.T) {
	enc := newTestEncoder(t)
	assert.Equal(t, []string{
		"Umur_Thn_BoxCox",
		"Status Nikah_encoded",
		"Gol_Ruang_encoded",
		"Kelahiran Kabupaten/Kota_peserta_encoded",
		"Provinsi_Target",
	}, enc.FeatureNames())
}

func TestBoxCoxTransformer(t *testing.T) {
	tr := NewBoxCoxTransformer(BoxCoxParams{Offset: 0.001, Lambda: 0.2847})

	y, err := tr.Transform(45)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, tr.Inverse(y), 1e-9)

	_, err = tr.Transform(-0.001)
	assert.Error(t, err)
	_, err = tr.Transform(math.NaN())
	assert.Error(t, err)

	logTr := NewBoxCoxTransformer(BoxCoxParams{Offset: 1, Lambda: 0})
	y, err = logTr.Transform(math.E - 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, y, 1e-12)
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics([]float64{4, 1, 3, 2})
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 2.5, stats.Mean)
	assert.InDelta(t, 1.2909944, stats.Std, 1e-6)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 4.0, stats.Max)
	assert.Equal(t, 1.75, stats.P25)
	assert.Equal(t, 2.5, stats.Median)
	assert.Equal(t, 3.25, stats.P75)

	single := ComputeStatistics([]float64{7})
	assert.True(t, math.IsNaN(single.Std))
	assert.Equal(t, 7.0, single.Median)

	assert.Equal(t, 0, ComputeStatistics(nil).Count)
}

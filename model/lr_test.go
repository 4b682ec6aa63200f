package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/scorekit/core"
)

func testMatrix(rows ...core.FeatureVector) *core.FeatureMatrix {
	return &core.FeatureMatrix{Columns: core.FeatureNames(), Rows: rows}
}

const linearArtifactJSON = `{
  "intercept": 50,
  "feature_names": ["Umur_Thn_BoxCox", "Status Nikah_encoded", "Gol_Ruang_encoded", "Kelahiran Kabupaten/Kota_peserta_encoded", "Provinsi_Target"],
  "coefficients": [2, -1, 0.5, 0.1, 0.2]
}`

func TestLinearModel_Predict(t *testing.T) {
	m, err := ParseLinearModel([]byte(linearArtifactJSON))
	require.NoError(t, err)
	assert.Equal(t, "linear", m.Name())
	assert.Equal(t, core.InputNamed, m.InputMode())

	scores, err := m.Predict(context.Background(), testMatrix(
		core.FeatureVector{1, 1, 4, 80, 90},
		core.FeatureVector{0, 0, 0, 0, 0},
	))
	require.NoError(t, err)
	// 50 + 2 - 1 + 2 + 8 + 18
	assert.InDeltaSlice(t, []float64{79, 50}, scores, 1e-9)
}

func TestLinearModel_NamedModeMatchesByName(t *testing.T) {
	m, err := NewLinearModel(0, []string{"b", "a"}, []float64{10, 1}, nil, core.InputNamed)
	require.NoError(t, err)

	in := &core.FeatureMatrix{Columns: []string{"a", "b", "c", "d", "e"}, Rows: []core.FeatureVector{{1, 2, 0, 0, 0}}}
	scores, err := m.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []float64{21}, scores)

	in.Columns = []string{"a", "x", "c", "d", "e"}
	_, err = m.Predict(context.Background(), in)
	require.Error(t, err)
	assert.True(t, core.IsPredictionFailed(err))
}

func TestLinearModel_PositionalRequiresWidth(t *testing.T) {
	m, err := NewLinearModel(0, []string{"a", "b"}, []float64{1, 1}, nil, core.InputPositional)
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), testMatrix(core.FeatureVector{}))
	require.Error(t, err)
	assert.True(t, core.IsPredictionFailed(err))
}

func TestLinearModel_FeatureImportances(t *testing.T) {
	m, err := NewLinearModel(0, []string{"a", "b", "c"}, []float64{1, -3, 0}, nil, core.InputNamed)
	require.NoError(t, err)

	imp, err := m.FeatureImportances()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75, 0}, imp, 1e-12)

	m, err = NewLinearModel(0, []string{"a", "b"}, []float64{1, 1}, []float64{0.9, 0.1}, core.InputNamed)
	require.NoError(t, err)
	imp, err = m.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, imp)
	assert.Equal(t, []string{"a", "b"}, m.ExpectedFeatureNames())
}

func TestLinearModel_InvalidArtifact(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "no features", json: `{"intercept": 1}`},
		{name: "coefficient count", json: `{"feature_names": ["a", "b"], "coefficients": [1]}`},
		{name: "importance count", json: `{"feature_names": ["a"], "coefficients": [1], "feature_importances": [1, 2]}`},
		{name: "input mode", json: `{"feature_names": ["a"], "coefficients": [1], "input_mode": "columnar"}`},
		{name: "broken json", json: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLinearModel([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}

func TestLoadLinearModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(linearArtifactJSON), 0o644))

	m, err := LoadLinearModel(path)
	require.NoError(t, err)
	assert.Equal(t, core.FeatureNames(), m.FeatureNames())
}

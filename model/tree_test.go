package model

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/scorekit/core"
)

// 两棵树：
//
//	tree0: Gol_Ruang_encoded <= 3.5 ? 70 : 85
//	tree1: Umur_Thn_BoxCox <= 5 ? (Provinsi_Target <= 80 ? 60 : 75) : 90
const treeArtifactJSON = `{
  "ensemble": "%s",
  "learning_rate": 0.5,
  "base_score": 10,
  "feature_names": ["Umur_Thn_BoxCox", "Status Nikah_encoded", "Gol_Ruang_encoded", "Kelahiran Kabupaten/Kota_peserta_encoded", "Provinsi_Target"],
  "trees": [
    {"children_left": [1, -1, -1], "children_right": [2, -1, -1], "feature": [2, -2, -2], "threshold": [3.5, -2, -2], "value": [0, 70, 85]},
    {"children_left": [1, 3, -1, -1, -1], "children_right": [2, 4, -1, -1, -1], "feature": [0, 4, -2, -2, -2], "threshold": [5, 80, -2, -2, -2], "value": [0, 0, 90, 60, 75]}
  ]
}`

func parseTree(t *testing.T, ensemble string) *TreeEnsemble {
	t.Helper()
	m, err := ParseTreeEnsemble([]byte(fmt.Sprintf(treeArtifactJSON, ensemble)))
	require.NoError(t, err)
	return m
}

func TestTreeEnsemble_Forest(t *testing.T) {
	m := parseTree(t, EnsembleForest)
	assert.Equal(t, "tree.forest", m.Name())

	scores, err := m.Predict(context.Background(), testMatrix(
		core.FeatureVector{4, 0, 2, 0, 70},  // 70, 60
		core.FeatureVector{4, 0, 7, 0, 85},  // 85, 75
		core.FeatureVector{6, 0, 3.5, 0, 0}, // 70, 90
	))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{65, 80, 80}, scores, 1e-9)
}

func TestTreeEnsemble_Boosting(t *testing.T) {
	m := parseTree(t, EnsembleBoosting)

	scores, err := m.Predict(context.Background(), testMatrix(core.FeatureVector{4, 0, 2, 0, 70}))
	require.NoError(t, err)
	// 10 + 0.5 * (70 + 60)
	assert.InDeltaSlice(t, []float64{75}, scores, 1e-9)
}

func TestTreeEnsemble_SplitCountImportances(t *testing.T) {
	m := parseTree(t, EnsembleForest)

	imp, err := m.FeatureImportances()
	require.NoError(t, err)
	// 分裂：Gol_Ruang x1, Umur x1, Provinsi x1
	assert.InDeltaSlice(t, []float64{1.0 / 3, 0, 1.0 / 3, 0, 1.0 / 3}, imp, 1e-12)
}

func TestTreeEnsemble_InvalidArtifact(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "unknown ensemble", json: `{"ensemble": "bagging", "feature_names": ["a"], "trees": [{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [1]}]}`},
		{name: "no trees", json: `{"feature_names": ["a"], "trees": []}`},
		{name: "ragged arrays", json: `{"feature_names": ["a"], "trees": [{"children_left": [-1], "children_right": [], "feature": [-2], "threshold": [-2], "value": [1]}]}`},
		{name: "cycle", json: `{"feature_names": ["a"], "trees": [{"children_left": [0], "children_right": [0], "feature": [0], "threshold": [1], "value": [1]}]}`},
		{name: "feature out of range", json: `{"feature_names": ["a"], "trees": [{"children_left": [1, -1, -1], "children_right": [2, -1, -1], "feature": [3, -2, -2], "threshold": [1, -2, -2], "value": [0, 1, 2]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTreeEnsemble([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}

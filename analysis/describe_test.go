package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/scorekit/core"
)

func orderedRows(column string, values ...any) []core.OrderedRow {
	rows := make([]core.OrderedRow, len(values))
	for i, v := range values {
		rows[i] = core.NewOrderedRow(1)
		rows[i].Set(column, v)
	}
	return rows
}

func TestDescribe_Numeric(t *testing.T) {
	out := Describe(orderedRows("age", 25.0, 35.0, nil), []string{"age"})
	s := out["age"]
	require.NotNil(t, s)

	assert.Equal(t, 2, s[StatCount])
	assert.Equal(t, 30.0, s[StatMean])
	assert.InDelta(t, 7.0710678, s[StatStd], 1e-6)
	assert.Equal(t, 25.0, s[StatMin])
	assert.Equal(t, 30.0, s[StatP50])
	assert.Equal(t, 35.0, s[StatMax])
	assert.Nil(t, s[StatUnique])
	assert.Nil(t, s[StatTop])
	assert.Nil(t, s[StatFreq])
}

func TestDescribe_SingleValueStdIsNull(t *testing.T) {
	s := Describe(orderedRows("age", 40.0), []string{"age"})["age"]
	assert.Equal(t, 1, s[StatCount])
	assert.Nil(t, s[StatStd])
	assert.Equal(t, 40.0, s[StatMean])
}

func TestDescribe_Categorical(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		top    any
		freq   int
		unique int
	}{
		{name: "most frequent", values: []any{"A", "B", "A"}, top: "A", freq: 2, unique: 2},
		{name: "tie takes first", values: []any{"X", "Y"}, top: "X", freq: 1, unique: 2},
		{name: "mixed types", values: []any{"III/A", 4.0, "III/A"}, top: "III/A", freq: 2, unique: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Describe(orderedRows("c", tt.values...), []string{"c"})["c"]
			assert.Equal(t, len(tt.values), s[StatCount])
			assert.Equal(t, tt.top, s[StatTop])
			assert.Equal(t, tt.freq, s[StatFreq])
			assert.Equal(t, tt.unique, s[StatUnique])
			assert.Nil(t, s[StatMean])
		})
	}
}

func TestDescribe_EmptyColumn(t *testing.T) {
	s := Describe(orderedRows("c", nil, nil), []string{"c", "absent"})
	assert.Equal(t, 0, s["c"][StatCount])
	assert.Equal(t, 0, s["absent"][StatCount])
	assert.Nil(t, s["c"][StatTop])
}

func TestMode(t *testing.T) {
	_, ok := Mode(nil)
	assert.False(t, ok)

	top, ok := Mode([]string{"SLEMAN", "BANTUL", "BANTUL", "SLEMAN"})
	require.True(t, ok)
	assert.Equal(t, "SLEMAN", top)
}

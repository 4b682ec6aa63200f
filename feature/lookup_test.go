package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/scorekit/store"
)

func TestDefaultLookupTables(t *testing.T) {
	tables, err := DefaultLookupTables()
	require.NoError(t, err)

	assert.Equal(t, 65.0, tables.GlobalMean())
	assert.Equal(t, BoxCoxParams{Offset: 0.001, Lambda: 0.2847}, tables.AgeTransform())
	assert.Equal(t, []string{"Belum Menikah", "Menikah"}, tables.MaritalStatusClasses())
	assert.Len(t, tables.GradeCategories(), 8)

	regencies, provinces := tables.Sizes()
	assert.Equal(t, 86, regencies)
	assert.Equal(t, 17, provinces)

	// 大小写不同的条目是不同的键
	bantul, ok := tables.RegencyMean("Kabupaten Bantul")
	require.True(t, ok)
	upper, ok := tables.RegencyMean("Kabupaten BANTUL")
	require.True(t, ok)
	assert.NotEqual(t, bantul, upper)

	_, ok = tables.RegencyMean("kabupaten bantul")
	assert.False(t, ok)
}

func TestLookupTables_Immutable(t *testing.T) {
	tables, err := DefaultLookupTables()
	require.NoError(t, err)

	classes := tables.MaritalStatusClasses()
	classes[0] = "changed"
	assert.Equal(t, "Belum Menikah", tables.MaritalStatusClasses()[0])

	doc := tables.Document()
	doc.RegencyMeans["BANTUL"] = 1
	v, _ := tables.RegencyMean("BANTUL")
	assert.Equal(t, 87.0, v)
}

func TestParseLookupTables_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "one marital class",
			yaml: "marital_status_classes: [Menikah]\ngrade_categories: [II/A]\n",
		},
		{
			name: "empty grades",
			yaml: "marital_status_classes: [Belum Menikah, Menikah]\n",
		},
		{
			name: "duplicate grade",
			yaml: "marital_status_classes: [Belum Menikah, Menikah]\ngrade_categories: [II/A, II/A]\n",
		},
		{
			name: "negative offset",
			yaml: "marital_status_classes: [Belum Menikah, Menikah]\ngrade_categories: [II/A]\nage_transform: {offset: -1, lambda: 0.5}\n",
		},
		{
			name: "not yaml",
			yaml: "::::",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLookupTables([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestStoreLookupProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tables, err := DefaultLookupTables()
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	provider := NewStoreLookupProvider(mem, DefaultLookupKeys("test:lookup"))
	assert.Equal(t, "store.memory", provider.Name())

	require.NoError(t, provider.Publish(ctx, tables))

	loaded, err := provider.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, tables.Document(), loaded.Document())
}

func TestStoreLookupProvider_MissingMeta(t *testing.T) {
	provider := NewStoreLookupProvider(store.NewMemoryStore(), LookupKeys{})
	_, err := provider.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorekit:lookup:meta")
}

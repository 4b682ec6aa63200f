package chart

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotRenderer_Render(t *testing.T) {
	r := NewPlotRenderer(4, 3)

	img, err := r.Render(context.Background(),
		[]string{"Umur_Thn_BoxCox", "Status Nikah_encoded", "Gol_Ruang_encoded"},
		[]float64{0.5, 0.1, 0.4})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(img)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")))
}

func TestPlotRenderer_Invalid(t *testing.T) {
	r := NewPlotRenderer(0, 0)

	_, err := r.Render(context.Background(), []string{"a"}, []float64{1, 2})
	assert.Error(t, err)

	_, err = r.Render(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestPlotRenderer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPlotRenderer(4, 3).Render(ctx, []string{"a"}, []float64{1})
	// 渲染可能在取消检查之前完成，两种结果都可接受，但不能 panic
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestNopRenderer(t *testing.T) {
	img, err := NopRenderer{}.Render(context.Background(), []string{"a"}, []float64{1})
	require.NoError(t, err)
	assert.Empty(t, img)
}

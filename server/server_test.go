package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/scorekit/analysis"
	"github.com/rushteam/scorekit/audit"
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
	"github.com/rushteam/scorekit/model"
	"github.com/rushteam/scorekit/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const participantsCSV = "Kelahiran Kabupaten/Kota_peserta,Umur,Status Nikah,Gol_Ruang,Kelahiran Provinsi,NILAI\n" +
	"BANTUL,30,Menikah,III/A,Jawa Barat,90\n" +
	"SLEMAN,41,Belum Menikah,II/C,Jawa Barat,85\n" +
	"BOGOR,52,Menikah,III/D,Jawa Barat,88\n"

type failingStage struct{}

func (failingStage) Name() string        { return "fail" }
func (failingStage) Kind() pipeline.Kind { return pipeline.KindNormalize }
func (failingStage) Process(context.Context, *pipeline.State) error {
	return errors.New("lookup store unreachable")
}

func newTestServer(t *testing.T, popts ...pipeline.Option) (*Server, *Metrics) {
	t.Helper()
	metrics := NewMetrics()
	p := newTestPipeline(t, metrics, popts...)
	return New(p, WithMetrics(metrics), WithAllowedOrigins([]string{"http://localhost:3000"})), metrics
}

func newTestPipeline(t *testing.T, metrics *Metrics, popts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	tables, err := feature.DefaultLookupTables()
	require.NoError(t, err)
	lm, err := model.NewLinearModel(50, core.FeatureNames(), []float64{1, 0.5, 1, 0.2, 0.1}, nil, core.InputNamed)
	require.NoError(t, err)
	in, err := analysis.NewInsighter(nil)
	require.NoError(t, err)

	popts = append([]pipeline.Option{pipeline.WithObserver(metrics)}, popts...)
	return pipeline.New(
		feature.NewColumnNormalizer(),
		feature.NewEncoder(tables, feature.WithMonitor(metrics)),
		lm,
		analysis.NewAnalyzer(in),
		popts...,
	)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestPredictCSV(t *testing.T) {
	s, _ := newTestServer(t)
	body, ct := multipartBody(t, "peserta.csv", participantsCSV)
	req := httptest.NewRequest(http.MethodPost, "/predict-csv", body)
	req.Header.Set("Content-Type", ct)

	rec, resp := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	assert.Equal(t, float64(3), resp["n_participants"])
	assert.Len(t, resp["predictions"], 3)
	assert.Len(t, resp["comparison"], 3)
	assert.NotNil(t, resp["summary_error"])
	assert.Len(t, resp["input_data"], 3)
	assert.Contains(t, resp["auto_insight"], "Banyak peserta berasal dari provinsi Jawa Barat.")

	first := resp["input_data"].([]any)[0].(map[string]any)
	assert.Equal(t, "III/A", first["Gol_Ruang"])
	assert.Equal(t, float64(4), first["Gol_Ruang_encoded"])
	assert.Equal(t, float64(87), first["Kelahiran Kabupaten/Kota_peserta_encoded"])
}

func TestPredictCSV_UnknownGrade(t *testing.T) {
	s, _ := newTestServer(t)
	csv := strings.Replace(participantsCSV, "II/C", "IV/A", 1)
	body, ct := multipartBody(t, "peserta.csv", csv)
	req := httptest.NewRequest(http.MethodPost, "/predict-csv", body)
	req.Header.Set("Content-Type", ct)

	rec, resp := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["error"], "IV/A")
	assert.Contains(t, resp["error"], "row 2")
	assert.NotContains(t, resp, "predictions")
}

func TestPredictCSV_ClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		contains string
	}{
		{name: "unsupported format", filename: "peserta.txt", content: participantsCSV, contains: "unsupported file format"},
		{name: "missing columns", filename: "peserta.csv", content: "Umur,NILAI\n30,80\n", contains: "Kelahiran Provinsi"},
		{name: "broken workbook", filename: "peserta.xlsx", content: "not a workbook", contains: "cannot open workbook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			body, ct := multipartBody(t, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/predict-csv", body)
			req.Header.Set("Content-Type", ct)

			rec, resp := do(t, s, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, resp["error"], tt.contains)
		})
	}
}

func TestPredictCSV_NoFile(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/predict-csv", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	rec, resp := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["error"], "no file uploaded")
}

func TestPredictJSON(t *testing.T) {
	s, _ := newTestServer(t)
	payload := `{"Kelahiran Kabupaten/Kota_peserta":"BANTUL","Umur":30,"Status Nikah":"Menikah","Gol_Ruang":"III/A","Kelahiran Provinsi":"Jawa Barat"}`
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec, resp := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), resp["n_participants"])
	require.Len(t, resp["predictions"], 1)
	assert.Contains(t, resp["auto_insight"], "Umur termuda: 30.0, tertua: 30.0.")
	assert.Nil(t, resp["comparison"])
	assert.Nil(t, resp["summary_error"])
	assert.NotNil(t, resp["feature_importance"])
}

func TestPredictJSON_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed", payload: `{"Umur":`},
		{name: "array", payload: `[{"Umur":30}]`},
		{name: "null", payload: `null`},
		{name: "missing columns", payload: `{"Umur":30}`},
		{name: "bad age", payload: `{"Kelahiran Kabupaten/Kota_peserta":"BANTUL","Umur":"tiga puluh","Status Nikah":"Menikah","Gol_Ruang":"III/A","Kelahiran Provinsi":"Jawa Barat"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")
			rec, resp := do(t, s, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestPredict_MultipartRoutedToFileHandler(t *testing.T) {
	s, _ := newTestServer(t)
	body, ct := multipartBody(t, "peserta.csv", participantsCSV)
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", ct)

	rec, resp := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(3), resp["n_participants"])
}

func TestPredict_InternalError(t *testing.T) {
	s, _ := newTestServer(t, pipeline.WithStages(failingStage{}))
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"Umur":30}`))
	req.Header.Set("Content-Type", "application/json")

	rec, resp := do(t, s, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", resp["error"])
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "linear", resp["model"])
	assert.NotEmpty(t, resp["timestamp"])
}

func TestFeatures(t *testing.T) {
	s, _ := newTestServer(t)
	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/features", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["features"], core.FeatureVectorDimension)
	assert.Equal(t, "named", resp["input_mode"])

	lookup := resp["lookup"].(map[string]any)
	assert.Equal(t, float64(86), lookup["regencies"])
	assert.Equal(t, float64(17), lookup["provinces"])
	assert.Equal(t, float64(65), lookup["global_mean"])
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	payload := `{"Kelahiran Kabupaten/Kota_peserta":"Atlantis","Umur":30,"Status Nikah":"Menikah","Gol_Ruang":"III/A","Kelahiran Provinsi":"Jawa Barat"}`
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec, _ := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, "scorekit_participants_scored_total 1")
	assert.Contains(t, text, `scorekit_lookup_fallback_total{feature="Kelahiran Kabupaten/Kota_peserta_encoded"} 1`)
	assert.Contains(t, text, `scorekit_http_requests_total{endpoint="/predict",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPredict_RecordsAuditEvents(t *testing.T) {
	metrics := NewMetrics()
	collector := audit.NewMemoryCollector()
	s := New(newTestPipeline(t, metrics), WithMetrics(metrics), WithCollector(collector))

	body, contentType := multipartBody(t, "peserta.csv", participantsCSV)
	req := httptest.NewRequest(http.MethodPost, "/predict-csv", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", "batch-42")
	rec, _ := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	events := collector.Events()
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, "batch-42", e.RequestID)
		assert.Equal(t, audit.SourceFile, e.Source)
		assert.Equal(t, i+1, e.Row)
		assert.NotNil(t, e.Actual)
	}

	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"Umur": 30}`))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = do(t, s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, collector.Events(), 3)
}

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
)

// RPCModel 是通过 HTTP 调用外部模型服务（sidecar）的 Predictor 实现。
// 适用于无法在进程内加载的模型，例如 sklearn / XGBoost 的 Python 服务。
type RPCModel struct {
	name     string
	Endpoint string // 例如 "http://localhost:8080/predict"
	Timeout  time.Duration
	Client   *http.Client

	mode        core.InputMode
	names       []string
	importances []float64
}

// RPCOption 配置 RPCModel
type RPCOption func(*RPCModel)

// WithRPCInputMode 设置输入形式
func WithRPCInputMode(mode core.InputMode) RPCOption {
	return func(m *RPCModel) {
		if mode != "" {
			m.mode = mode
		}
	}
}

// WithRPCClient 设置自定义 HTTP 客户端
func WithRPCClient(client *http.Client) RPCOption {
	return func(m *RPCModel) {
		m.Client = client
	}
}

// WithRPCMetadata 使用已加载的特征元数据（特征名、重要性）
func WithRPCMetadata(meta *feature.FeatureMetadata) RPCOption {
	return func(m *RPCModel) {
		if meta != nil {
			m.applyMetadata(meta)
		}
	}
}

func NewRPCModel(name, endpoint string, timeout time.Duration, opts ...RPCOption) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	m := &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		mode:     core.InputNamed,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.Client == nil {
		m.Client = &http.Client{Timeout: timeout}
	}
	return m
}

func (m *RPCModel) Name() string {
	return m.name
}

func (m *RPCModel) InputMode() core.InputMode { return m.mode }

// MetadataURL 返回元数据地址：".../predict" 替换为 ".../metadata"，否则追加 "/metadata"
func (m *RPCModel) MetadataURL() string {
	base := strings.TrimRight(m.Endpoint, "/")
	if strings.HasSuffix(base, "/predict") {
		return strings.TrimSuffix(base, "/predict") + "/metadata"
	}
	return base + "/metadata"
}

// LoadMetadata 在启动时读取一次模型元数据（特征名、重要性、输入形式）。
func (m *RPCModel) LoadMetadata(ctx context.Context) error {
	meta, err := feature.NewHTTPMetadataLoaderWithClient(m.Client).Load(ctx, m.MetadataURL())
	if err != nil {
		return fmt.Errorf("load %s metadata: %w", m.name, err)
	}
	m.applyMetadata(meta)
	return nil
}

func (m *RPCModel) applyMetadata(meta *feature.FeatureMetadata) {
	m.names = append([]string(nil), meta.FeatureColumns...)
	m.importances = append([]float64(nil), meta.FeatureImportances...)
	if mode, err := parseInputMode(meta.InputMode, m.mode); err == nil {
		m.mode = mode
	}
}

// Predict 调用远程模型服务进行批量预测。
// 请求格式（JSON）：
//
//	命名输入：{"features_list": [{"Umur_Thn_BoxCox": 3.1, ...}, ...]}
//	位置输入：{"instances": [[3.1, 1, 4, 87, 82.7], ...]}
//
// 响应格式（JSON）：
//
//	{"scores": [81.2, 79.5, ...]}
func (m *RPCModel) Predict(ctx context.Context, features *core.FeatureMatrix) ([]float64, error) {
	scores, err := m.predict(ctx, features)
	if err != nil {
		return nil, core.NewPredictionError(m.name, err)
	}
	return scores, nil
}

func (m *RPCModel) predict(ctx context.Context, features *core.FeatureMatrix) ([]float64, error) {
	if features.Len() == 0 {
		return []float64{}, nil
	}

	// 构建请求
	var reqBody map[string]any
	if m.mode == core.InputPositional {
		reqBody = map[string]any{"instances": features.Instances()}
	} else {
		reqBody = map[string]any{"features_list": features.Named()}
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 发送请求
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	// 解析响应
	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Scores) != features.Len() {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", features.Len(), len(result.Scores))
	}

	return result.Scores, nil
}

// FeatureImportances 返回元数据中的重要性，未提供时返回错误
func (m *RPCModel) FeatureImportances() ([]float64, error) {
	if len(m.importances) == 0 {
		return nil, fmt.Errorf("%s: feature importances not available", m.name)
	}
	return append([]float64(nil), m.importances...), nil
}

func (m *RPCModel) FeatureNames() []string { return append([]string(nil), m.names...) }

// ExpectedFeatureNames 未加载元数据时返回 nil，调用方跳过校验
func (m *RPCModel) ExpectedFeatureNames() []string {
	if len(m.names) == 0 {
		return nil
	}
	return m.FeatureNames()
}

func (m *RPCModel) Close() error {
	m.Client.CloseIdleConnections()
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
)

// TFServingClient 是 TensorFlow Serving REST API 的 Predictor 实现。
//
// REST API（端口 8501）：
//   - Predict: POST /v1/models/{model_name}[/versions/{version}]:predict
//   - 请求（行格式）：{"signature_name": "...", "instances": [[...], ...]}
//   - 请求（命名输入）：{"signature_name": "...", "instances": [{"name": v, ...}, ...]}
//   - 响应：{"predictions": [...]}，每行可以是标量或 [score]
//   - Model Status: GET /v1/models/{model_name}[/versions/{version}]
//
// gRPC（端口 8500）需要 protobuf 依赖，这里只实现 REST API。
type TFServingClient struct {
	// Endpoint 服务根地址，如 "http://localhost:8501"
	Endpoint string

	// ModelName 模型名称
	ModelName string

	// ModelVersion 模型版本（可选，为空则使用最新版本）
	ModelVersion string

	// SignatureName 签名名称（默认 "serving_default"）
	SignatureName string

	// Timeout 超时时间
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	mode       core.InputMode
	meta       *feature.FeatureMetadata
	httpClient *http.Client
}

// TFServingOption TF Serving 客户端配置选项
type TFServingOption func(*TFServingClient)

// NewTFServingClient 创建一个新的 TF Serving 客户端，默认位置输入。
func NewTFServingClient(endpoint, modelName string, opts ...TFServingOption) *TFServingClient {
	c := &TFServingClient{
		Endpoint:      endpoint,
		ModelName:     modelName,
		SignatureName: "serving_default",
		Timeout:       30 * time.Second,
		mode:          core.InputPositional,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

// WithTFServingVersion 设置模型版本
func WithTFServingVersion(version string) TFServingOption {
	return func(c *TFServingClient) {
		c.ModelVersion = version
	}
}

// WithTFServingSignature 设置签名名称
func WithTFServingSignature(signatureName string) TFServingOption {
	return func(c *TFServingClient) {
		if signatureName != "" {
			c.SignatureName = signatureName
		}
	}
}

// WithTFServingTimeout 设置超时时间
func WithTFServingTimeout(timeout time.Duration) TFServingOption {
	return func(c *TFServingClient) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithTFServingAuth 设置认证信息
func WithTFServingAuth(auth *AuthConfig) TFServingOption {
	return func(c *TFServingClient) {
		c.Auth = auth
	}
}

// WithTFServingInputMode 设置输入形式（命名输入对应按特征名定义的 signature）
func WithTFServingInputMode(mode core.InputMode) TFServingOption {
	return func(c *TFServingClient) {
		if mode == core.InputNamed || mode == core.InputPositional {
			c.mode = mode
		}
	}
}

// WithTFServingMetadata 设置特征元数据（期望特征名、重要性）
func WithTFServingMetadata(meta *feature.FeatureMetadata) TFServingOption {
	return func(c *TFServingClient) {
		c.meta = meta
	}
}

// WithTFServingHTTPClient 设置自定义 HTTP 客户端
func WithTFServingHTTPClient(client *http.Client) TFServingOption {
	return func(c *TFServingClient) {
		c.httpClient = client
	}
}

func (c *TFServingClient) Name() string { return "tfserving." + c.ModelName }

func (c *TFServingClient) InputMode() core.InputMode { return c.mode }

func (c *TFServingClient) modelURL() string {
	if c.ModelVersion != "" {
		return fmt.Sprintf("%s/v1/models/%s/versions/%s", c.Endpoint, c.ModelName, c.ModelVersion)
	}
	return fmt.Sprintf("%s/v1/models/%s", c.Endpoint, c.ModelName)
}

// Predict 实现 core.Predictor
func (c *TFServingClient) Predict(ctx context.Context, features *core.FeatureMatrix) ([]float64, error) {
	if features.Len() == 0 {
		return []float64{}, nil
	}

	payload := map[string]any{"signature_name": c.SignatureName}
	if c.mode == core.InputNamed {
		payload["instances"] = features.Named()
	} else {
		payload["instances"] = features.Instances()
	}

	body, err := postJSON(ctx, c.httpClient, c.Auth, c.modelURL()+":predict", payload)
	if err != nil {
		return nil, core.NewPredictionError(c.Name(), fmt.Errorf("tf serving: %w", err))
	}

	var out struct {
		Predictions []any `json:"predictions"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, core.NewPredictionError(c.Name(), fmt.Errorf("tf serving parse response: %w", err))
	}
	predictions := scalars(out.Predictions)
	if len(predictions) != features.Len() {
		return nil, core.NewPredictionError(c.Name(),
			fmt.Errorf("predictions count mismatch: expected %d, got %d", features.Len(), len(predictions)))
	}
	return predictions, nil
}

// Health 实现 HealthChecker（模型状态接口）
func (c *TFServingClient) Health(ctx context.Context) error {
	if err := getOK(ctx, c.httpClient, c.Auth, c.modelURL()); err != nil {
		return fmt.Errorf("tf serving health: %w", err)
	}
	return nil
}

// FeatureImportances 来自特征元数据；未配置时返回错误
func (c *TFServingClient) FeatureImportances() ([]float64, error) {
	if c.meta == nil || len(c.meta.FeatureImportances) == 0 {
		return nil, fmt.Errorf("%s: feature importances not available", c.Name())
	}
	return append([]float64(nil), c.meta.FeatureImportances...), nil
}

func (c *TFServingClient) FeatureNames() []string {
	if c.meta == nil {
		return nil
	}
	return append([]string(nil), c.meta.FeatureColumns...)
}

func (c *TFServingClient) ExpectedFeatureNames() []string { return c.FeatureNames() }

// Close 关闭空闲连接
func (c *TFServingClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var (
	_ core.Predictor          = (*TFServingClient)(nil)
	_ core.ImportanceProvider = (*TFServingClient)(nil)
	_ core.ExpectedFeatures   = (*TFServingClient)(nil)
	_ core.Closer             = (*TFServingClient)(nil)
	_ HealthChecker           = (*TFServingClient)(nil)
)

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

// KServeProtocol 指定 KServe 协议版本。
const (
	KServeV1 = "v1"
	KServeV2 = "v2"
)

// KServeClient 是 KServe V1/V2 协议的 Predictor 实现，用于调用 KServe 部署的回归模型（如 sklearnserver）。
//
// KServe V1：
//   - Predict: POST /v1/models/{model_name}:predict
//   - 请求：{"instances": [[...], ...]}
//   - 响应：{"predictions": [...]}
//   - Model Ready: GET /v1/models/{model_name}
//
// KServe V2（Open Inference Protocol）：
//   - Infer: POST /v2/models/{model_name}[/versions/{version}]/infer
//   - 请求：{"inputs": [{"name": "input-0", "shape": [batch, dim], "datatype": "FP64", "data": [...]}]}
//   - 响应：{"outputs": [{"name": "...", "data": [...]}]}
//   - Server Ready: GET /v2/health/ready
//
// sklearn 模型按位置接收特征，所以输入形式固定为 positional。
type KServeClient struct {
	// Endpoint 服务根地址，如 "http://localhost:8000"
	Endpoint string
	// ModelName 模型名称
	ModelName string
	// ModelVersion 模型版本（可选，V2 路径中会带 /versions/{version}）
	ModelVersion string
	// Protocol 协议版本："v1" 或 "v2"，默认 "v2"
	Protocol string
	// V2InputName V2 协议下输入张量名称，默认 "input-0"
	V2InputName string
	// V2OutputName V2 协议下期望的输出张量名称；空则取 outputs[0]
	V2OutputName string
	// Timeout 请求超时
	Timeout time.Duration
	// Auth 认证配置
	Auth *AuthConfig
	// httpClient 自定义 HTTP 客户端（可选）
	httpClient *http.Client

	meta *feature.FeatureMetadata
}

// NewKServeClient 创建 KServe 客户端。endpoint 为根地址（如 http://localhost:8000），modelName 为模型名。
func NewKServeClient(endpoint, modelName string, opts ...KServeOption) *KServeClient {
	c := &KServeClient{
		Endpoint:    endpoint,
		ModelName:   modelName,
		Protocol:    KServeV2,
		V2InputName: "input-0",
		Timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

// KServeOption 配置 KServe 客户端
type KServeOption func(*KServeClient)

// WithKServeVersion 设置模型版本（V2 路径会带 /versions/{version}）
func WithKServeVersion(version string) KServeOption {
	return func(c *KServeClient) {
		c.ModelVersion = version
	}
}

// WithKServeProtocol 设置协议："v1" 或 "v2"
func WithKServeProtocol(protocol string) KServeOption {
	return func(c *KServeClient) {
		if protocol == KServeV1 || protocol == KServeV2 {
			c.Protocol = protocol
		}
	}
}

// WithKServeV2OutputName 设置 V2 协议下期望的输出张量名称（解析响应时优先匹配）
func WithKServeV2OutputName(name string) KServeOption {
	return func(c *KServeClient) {
		c.V2OutputName = name
	}
}

// WithKServeTimeout 设置超时
func WithKServeTimeout(timeout time.Duration) KServeOption {
	return func(c *KServeClient) {
		if timeout <= 0 {
			return
		}
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithKServeAuth 设置认证
func WithKServeAuth(auth *AuthConfig) KServeOption {
	return func(c *KServeClient) {
		c.Auth = auth
	}
}

// WithKServeHTTPClient 设置自定义 HTTP 客户端
func WithKServeHTTPClient(client *http.Client) KServeOption {
	return func(c *KServeClient) {
		c.httpClient = client
	}
}

// WithKServeMetadata 设置特征元数据（期望特征名、重要性）
func WithKServeMetadata(meta *feature.FeatureMetadata) KServeOption {
	return func(c *KServeClient) {
		c.meta = meta
	}
}

func (c *KServeClient) Name() string { return "kserve." + c.ModelName }

func (c *KServeClient) InputMode() core.InputMode { return core.InputPositional }

// Predict 实现 core.Predictor。
func (c *KServeClient) Predict(ctx context.Context, features *core.FeatureMatrix) ([]float64, error) {
	if features.Len() == 0 {
		return []float64{}, nil
	}
	var (
		predictions []float64
		err         error
	)
	if c.Protocol == KServeV1 {
		predictions, err = c.predictV1(ctx, features.Instances())
	} else {
		predictions, err = c.predictV2(ctx, features.Instances())
	}
	if err != nil {
		return nil, core.NewPredictionError(c.Name(), err)
	}
	if len(predictions) != features.Len() {
		return nil, core.NewPredictionError(c.Name(),
			fmt.Errorf("predictions count mismatch: expected %d, got %d", features.Len(), len(predictions)))
	}
	return predictions, nil
}

// predictV1 使用 V1 协议：POST /v1/models/{model_name}:predict，请求 instances，响应 predictions。
func (c *KServeClient) predictV1(ctx context.Context, instances [][]float64) ([]float64, error) {
	url := fmt.Sprintf("%s/v1/models/%s:predict", c.Endpoint, c.ModelName)

	body, err := postJSON(ctx, c.httpClient, c.Auth, url, map[string]any{"instances": instances})
	if err != nil {
		return nil, fmt.Errorf("kserve v1: %w", err)
	}

	var out struct {
		Predictions []any `json:"predictions"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("kserve v1 parse response: %w", err)
	}
	return scalars(out.Predictions), nil
}

// predictV2 使用 V2 协议：POST /v2/models/{model_name}/infer，请求 inputs 张量，响应 outputs。
func (c *KServeClient) predictV2(ctx context.Context, instances [][]float64) ([]float64, error) {
	path := fmt.Sprintf("%s/v2/models/%s", c.Endpoint, c.ModelName)
	if c.ModelVersion != "" {
		path = fmt.Sprintf("%s/versions/%s", path, c.ModelVersion)
	}

	// 展平为行优先
	rows, dim := len(instances), len(instances[0])
	data := make([]float64, 0, rows*dim)
	for _, row := range instances {
		data = append(data, row...)
	}

	body, err := postJSON(ctx, c.httpClient, c.Auth, path+"/infer", map[string]any{
		"inputs": []map[string]any{
			{
				"name":     c.V2InputName,
				"shape":    []int{rows, dim},
				"datatype": "FP64",
				"data":     data,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("kserve v2: %w", err)
	}

	var out v2InferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("kserve v2 parse response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("kserve v2 empty outputs")
	}
	tensor := &out.Outputs[0]
	for i := range out.Outputs {
		if c.V2OutputName != "" && out.Outputs[i].Name == c.V2OutputName {
			tensor = &out.Outputs[i]
			break
		}
	}
	return scalars(tensor.Data), nil
}

// v2InferResponse 对应 V2 推理响应
type v2InferResponse struct {
	ModelName    string           `json:"model_name"`
	ModelVersion string           `json:"model_version"`
	Outputs      []v2OutputTensor `json:"outputs"`
}

type v2OutputTensor struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	Datatype string `json:"datatype"`
	Data     []any  `json:"data"`
}

// Health 实现 HealthChecker。V1 使用 GET /v1/models/{model_name}，V2 使用 GET /v2/health/ready。
func (c *KServeClient) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/v2/health/ready", c.Endpoint)
	if c.Protocol == KServeV1 {
		url = fmt.Sprintf("%s/v1/models/%s", c.Endpoint, c.ModelName)
	}
	if err := getOK(ctx, c.httpClient, c.Auth, url); err != nil {
		return fmt.Errorf("kserve health: %w", err)
	}
	return nil
}

// FeatureImportances 来自特征元数据；未配置时返回错误
func (c *KServeClient) FeatureImportances() ([]float64, error) {
	if c.meta == nil || len(c.meta.FeatureImportances) == 0 {
		return nil, fmt.Errorf("%s: feature importances not available", c.Name())
	}
	return append([]float64(nil), c.meta.FeatureImportances...), nil
}

func (c *KServeClient) FeatureNames() []string {
	if c.meta == nil {
		return nil
	}
	return append([]string(nil), c.meta.FeatureColumns...)
}

func (c *KServeClient) ExpectedFeatureNames() []string { return c.FeatureNames() }

// Close 实现 core.Closer。
func (c *KServeClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var (
	_ core.Predictor          = (*KServeClient)(nil)
	_ core.ImportanceProvider = (*KServeClient)(nil)
	_ core.ExpectedFeatures   = (*KServeClient)(nil)
	_ core.Closer             = (*KServeClient)(nil)
	_ HealthChecker           = (*KServeClient)(nil)
)

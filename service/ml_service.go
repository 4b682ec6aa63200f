package service

import (
	"context"
	"time"
)

// ServiceType 预测器类型
type ServiceType string

const (
	ServiceTypeLinear    ServiceType = "linear"    // 本地线性回归产物
	ServiceTypeTree      ServiceType = "tree"      // 本地树模型产物
	ServiceTypeRPC       ServiceType = "rpc"       // 自定义模型 sidecar（features_list / instances 协议）
	ServiceTypeKServe    ServiceType = "kserve"    // KServe V1/V2 推理服务（如 sklearnserver）
	ServiceTypeTFServing ServiceType = "tfserving" // TensorFlow Serving REST API
)

// ServiceConfig 预测器配置
type ServiceConfig struct {
	// Type 预测器类型
	Type ServiceType

	// Path 本地模型产物路径（linear / tree）
	Path string

	// Endpoint 服务端点
	// rpc: "http://localhost:8080/predict"
	// kserve: "http://localhost:8000"
	// tfserving: "http://localhost:8501"
	Endpoint string

	// ModelName 模型名称（kserve / tfserving 路径使用）
	ModelName string

	// ModelVersion 模型版本（可选）
	ModelVersion string

	// Protocol KServe 协议版本：v1 / v2
	Protocol string

	// SignatureName TF Serving 签名名称（可选）
	SignatureName string

	// InputMode 输入形式：named / positional，为空时由模型产物或元数据决定
	InputMode string

	// MetadataPath 特征元数据文件（可选），用于远程模型的启动校验与重要性
	MetadataPath string

	// FetchMetadata rpc 模型启动时是否读取 <endpoint>/metadata
	FetchMetadata bool

	// Timeout 单次请求超时
	Timeout time.Duration

	// Auth 认证信息（可选）
	Auth *AuthConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type     string // "basic", "bearer", "api_key"
	Username string
	Password string
	Token    string
	APIKey   string
}

// HealthChecker 是可选能力：远程预测器的连通性检查。
type HealthChecker interface {
	Health(ctx context.Context) error
}

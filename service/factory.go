package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
	"github.com/rushteam/scorekit/model"
)

func init() {
	Register(ServiceTypeLinear, buildLinear)
	Register(ServiceTypeTree, buildTree)
	Register(ServiceTypeRPC, buildRPC)
	Register(ServiceTypeKServe, buildKServe)
	Register(ServiceTypeTFServing, buildTFServing)
}

// NewPredictor 根据配置创建 Predictor 实例（工厂方法）。
// 远程模型在这里完成元数据加载，返回后预测器只读。
func NewPredictor(ctx context.Context, config *ServiceConfig) (core.Predictor, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	builder, err := lookupBuilder(config.Type)
	if err != nil {
		return nil, err
	}
	return builder(ctx, config)
}

func buildLinear(_ context.Context, config *ServiceConfig) (core.Predictor, error) {
	m, err := model.LoadLinearModel(config.Path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func buildTree(_ context.Context, config *ServiceConfig) (core.Predictor, error) {
	m, err := model.LoadTreeEnsemble(config.Path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func buildRPC(ctx context.Context, config *ServiceConfig) (core.Predictor, error) {
	opts := []model.RPCOption{
		model.WithRPCInputMode(core.InputMode(config.InputMode)),
	}
	if config.MetadataPath != "" {
		meta, err := loadMetadata(ctx, config)
		if err != nil {
			return nil, err
		}
		opts = append(opts, model.WithRPCMetadata(meta))
	}
	name := config.ModelName
	if name == "" {
		name = "rpc"
	}
	m := model.NewRPCModel(name, config.Endpoint, config.Timeout, opts...)
	if config.FetchMetadata {
		if err := m.LoadMetadata(ctx); err != nil {
			return nil, err
		}
		// 显式配置的输入形式优先
		if config.InputMode != "" {
			model.WithRPCInputMode(core.InputMode(config.InputMode))(m)
		}
	}
	return m, nil
}

func buildKServe(ctx context.Context, config *ServiceConfig) (core.Predictor, error) {
	opts := []KServeOption{
		WithKServeTimeout(config.Timeout),
		WithKServeProtocol(config.Protocol),
	}
	if config.ModelVersion != "" {
		opts = append(opts, WithKServeVersion(config.ModelVersion))
	}
	if config.Auth != nil {
		opts = append(opts, WithKServeAuth(config.Auth))
	}
	if config.MetadataPath != "" {
		meta, err := loadMetadata(ctx, config)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithKServeMetadata(meta))
	}
	return NewKServeClient(config.Endpoint, config.ModelName, opts...), nil
}

func buildTFServing(ctx context.Context, config *ServiceConfig) (core.Predictor, error) {
	opts := []TFServingOption{
		WithTFServingTimeout(config.Timeout),
		WithTFServingSignature(config.SignatureName),
		WithTFServingInputMode(core.InputMode(config.InputMode)),
	}
	if config.ModelVersion != "" {
		opts = append(opts, WithTFServingVersion(config.ModelVersion))
	}
	if config.Auth != nil {
		opts = append(opts, WithTFServingAuth(config.Auth))
	}
	if config.MetadataPath != "" {
		meta, err := loadMetadata(ctx, config)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTFServingMetadata(meta))
		// 未显式配置输入形式时沿用元数据
		if config.InputMode == "" && meta.InputMode != "" {
			opts = append(opts, WithTFServingInputMode(core.InputMode(meta.InputMode)))
		}
	}
	return NewTFServingClient(config.Endpoint, config.ModelName, opts...), nil
}

// ValidateConfig 验证预测器配置
func ValidateConfig(config *ServiceConfig) error {
	if config == nil {
		return fmt.Errorf("predictor config is required")
	}
	switch config.Type {
	case ServiceTypeLinear, ServiceTypeTree:
		if config.Path == "" {
			return fmt.Errorf("%s predictor: path is required", config.Type)
		}
	case ServiceTypeRPC:
		if !hasHTTPPrefix(config.Endpoint) {
			return fmt.Errorf("rpc predictor: endpoint must be an http(s) URL")
		}
	case ServiceTypeKServe, ServiceTypeTFServing:
		if !hasHTTPPrefix(config.Endpoint) {
			return fmt.Errorf("%s predictor: endpoint must be an http(s) URL", config.Type)
		}
		if config.ModelName == "" {
			return fmt.Errorf("%s predictor: model name is required", config.Type)
		}
	}
	switch core.InputMode(config.InputMode) {
	case "", core.InputNamed, core.InputPositional:
	default:
		return fmt.Errorf("unknown input mode %q", config.InputMode)
	}
	return nil
}

// TestConnection 测试远程预测器连接；本地模型直接返回 nil
func TestConnection(ctx context.Context, p core.Predictor) error {
	if p == nil {
		return fmt.Errorf("predictor is nil")
	}
	if hc, ok := p.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// loadMetadata 按来源选择加载器：http(s) URL 走 HTTP，其他按本地文件读取
func loadMetadata(ctx context.Context, config *ServiceConfig) (*feature.FeatureMetadata, error) {
	var loader feature.MetadataLoader = feature.NewFileMetadataLoader()
	if hasHTTPPrefix(config.MetadataPath) {
		loader = feature.NewHTTPMetadataLoader(config.Timeout)
	}
	return loader.Load(ctx, config.MetadataPath)
}

// hasHTTPPrefix 检查是否包含 HTTP 前缀
func hasHTTPPrefix(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

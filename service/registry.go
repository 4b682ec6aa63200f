package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/scorekit/core"
)

// PredictorBuilder 根据配置构建 Predictor。
// 内置类型（linear、tree、rpc、kserve）在 init 中注册；
// 自定义模型可以在入口处调用 Register 接入。
type PredictorBuilder func(ctx context.Context, cfg *ServiceConfig) (core.Predictor, error)

var (
	builders   = make(map[ServiceType]PredictorBuilder)
	buildersMu sync.RWMutex
)

// Register 注册一种预测器的构建逻辑，重复注册会覆盖。
func Register(typ ServiceType, builder PredictorBuilder) {
	if typ == "" || builder == nil {
		return
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[typ] = builder
}

// SupportedTypes 返回当前已注册的预测器类型（排序），用于错误提示与校验。
func SupportedTypes() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	return supportedTypesLocked()
}

func lookupBuilder(typ ServiceType) (PredictorBuilder, error) {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	b, ok := builders[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported predictor type %q (supported: %v)", typ, supportedTypesLocked())
	}
	return b, nil
}

func supportedTypesLocked() []string {
	types := make([]string, 0, len(builders))
	for t := range builders {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

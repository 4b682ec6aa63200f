package feature

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPMetadataLoader HTTP 接口特征元数据加载器，用于读取模型 sidecar 的 /metadata
type HTTPMetadataLoader struct {
	client *http.Client
}

// NewHTTPMetadataLoader 创建 HTTP 接口特征元数据加载器
//
// 用法：
//
//	loader := feature.NewHTTPMetadataLoader(5 * time.Second)
//	meta, err := loader.Load(ctx, "http://model:8501/metadata")
func NewHTTPMetadataLoader(timeout time.Duration) *HTTPMetadataLoader {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMetadataLoader{
		client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPMetadataLoaderWithClient 使用自定义 HTTP 客户端创建加载器
func NewHTTPMetadataLoaderWithClient(client *http.Client) *HTTPMetadataLoader {
	return &HTTPMetadataLoader{client: client}
}

// Load 从 HTTP 接口加载特征元数据
func (l *HTTPMetadataLoader) Load(ctx context.Context, url string) (*FeatureMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read metadata response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request: status=%d, body=%s", resp.StatusCode, string(data))
	}
	return ParseFeatureMetadata(data)
}

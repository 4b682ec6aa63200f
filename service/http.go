package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rushteam/scorekit/pkg/conv"
)

// postJSON 发送 JSON 请求，非 200 响应返回带状态码与响应体的错误
func postJSON(ctx context.Context, client *http.Client, auth *AuthConfig, url string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	addAuth(httpReq, auth)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status=%d, body=%s", resp.StatusCode, string(body))
	}
	return body, nil
}

// getOK 发送 GET 请求，非 200 响应视为失败（健康检查使用）
func getOK(ctx context.Context, client *http.Client, auth *AuthConfig, url string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	addAuth(httpReq, auth)
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// addAuth 添加认证信息到 HTTP 请求
func addAuth(req *http.Request, auth *AuthConfig) {
	if auth == nil {
		return
	}
	switch auth.Type {
	case "basic":
		req.SetBasicAuth(auth.Username, auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", auth.APIKey)
	}
}

// scalars 取每个预测值的标量；多输出时取第一个
func scalars(values []any) []float64 {
	return conv.ConvertSlice(values, scalar)
}

func scalar(v any) (float64, bool) {
	if arr, ok := conv.TypeAssert[[]any](v); ok {
		if len(arr) == 0 {
			return 0, false
		}
		v = arr[0]
	}
	return conv.ToFloat64(v)
}

package feature

import (
	"context"
)

// MetadataLoader 特征元数据加载器接口
// 支持从不同来源加载特征元数据（本地文件、模型 sidecar 的 HTTP 接口）
type MetadataLoader interface {
	// Load 加载特征元数据
	// source 是数据源标识（文件路径、URL）
	Load(ctx context.Context, source string) (*FeatureMetadata, error)
}

// FileMetadataLoader 本地文件特征元数据加载器
type FileMetadataLoader struct{}

// NewFileMetadataLoader 创建本地文件特征元数据加载器
func NewFileMetadataLoader() *FileMetadataLoader {
	return &FileMetadataLoader{}
}

// Load 从本地文件加载特征元数据
func (l *FileMetadataLoader) Load(ctx context.Context, filePath string) (*FeatureMetadata, error) {
	return LoadFeatureMetadata(filePath)
}

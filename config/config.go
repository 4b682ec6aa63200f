// Package config 加载评分服务配置。
// 优先级：环境变量（SCOREKIT_ 前缀）> 配置文件 > 默认值。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/scorekit/pkg/dsl"
	"github.com/rushteam/scorekit/service"
)

// EnvPrefix 环境变量前缀，例如 SCOREKIT_SERVER_ADDR
const EnvPrefix = "SCOREKIT"

// 查找表来源
const (
	LookupEmbedded = "embedded"
	LookupFile     = "file"
	LookupRedis    = "redis"
)

// DefaultAllowedOrigins 前端开发环境地址
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
	"http://192.168.10.253:3000",
	"http://192.168.10.106:3000",
}

// Config 是服务的完整配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Lookup   LookupConfig   `mapstructure:"lookup" yaml:"lookup"`
	Chart    ChartConfig    `mapstructure:"chart" yaml:"chart"`
	Insights InsightsConfig `mapstructure:"insights" yaml:"insights"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr" validate:"required"`
	MaxConcurrent  int      `mapstructure:"max_concurrent" yaml:"max_concurrent" validate:"gte=1"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" validate:"dive,http_url"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb" validate:"gte=1"`
}

// ModelConfig 预测器配置，对应 service.ServiceConfig
type ModelConfig struct {
	Type           string        `mapstructure:"type" yaml:"type" validate:"required,oneof=linear tree rpc kserve tfserving"`
	Path           string        `mapstructure:"path" yaml:"path"`
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	ModelName      string        `mapstructure:"model_name" yaml:"model_name"`
	ModelVersion   string        `mapstructure:"model_version" yaml:"model_version"`
	Protocol       string        `mapstructure:"protocol" yaml:"protocol" validate:"omitempty,oneof=v1 v2"`
	SignatureName  string        `mapstructure:"signature_name" yaml:"signature_name"`
	InputMode      string        `mapstructure:"input_mode" yaml:"input_mode" validate:"omitempty,oneof=named positional"`
	MetadataPath   string        `mapstructure:"metadata_path" yaml:"metadata_path"`
	FetchMetadata  bool          `mapstructure:"fetch_metadata" yaml:"fetch_metadata"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	PredictTimeout time.Duration `mapstructure:"predict_timeout" yaml:"predict_timeout" validate:"gt=0"`
	AuthToken      string        `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
}

// LookupConfig 查找表来源
type LookupConfig struct {
	Source string      `mapstructure:"source" yaml:"source" validate:"oneof=embedded file redis"`
	Path   string      `mapstructure:"path" yaml:"path" validate:"required_if=Source file"`
	Redis  RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig Redis 查找表来源配置
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Password  string `mapstructure:"password" yaml:"password,omitempty"`
	DB        int    `mapstructure:"db" yaml:"db" validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// ChartConfig 特征重要性图表配置
type ChartConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Width         float64       `mapstructure:"width" yaml:"width" validate:"gte=0"`
	Height        float64       `mapstructure:"height" yaml:"height" validate:"gte=0"`
	RenderTimeout time.Duration `mapstructure:"render_timeout" yaml:"render_timeout" validate:"gt=0"`
}

// InsightsConfig 年龄段洞察规则，为空时使用内置规则
type InsightsConfig struct {
	Rules []dsl.Rule `mapstructure:"rules" yaml:"rules"`
}

// AuditConfig 评分事件输出；Brokers 为空时不输出
type AuditConfig struct {
	Brokers       []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic         string        `mapstructure:"topic" yaml:"topic" validate:"required_with=Brokers"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval" validate:"gte=0"`
	RequiredAcks  int16         `mapstructure:"required_acks" yaml:"required_acks" validate:"oneof=-1 0 1"`
	Compression   string        `mapstructure:"compression" yaml:"compression" validate:"omitempty,oneof=gzip snappy lz4 zstd"`
}

// Enabled 是否配置了 Kafka 输出
func (a AuditConfig) Enabled() bool { return len(a.Brokers) > 0 }

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":5000",
			MaxConcurrent:  8,
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
			MaxUploadMB:    16,
		},
		Model: ModelConfig{
			Type:           string(service.ServiceTypeLinear),
			Path:           "models/linear.json",
			Protocol:       "v2",
			Timeout:        5 * time.Second,
			PredictTimeout: 10 * time.Second,
		},
		Lookup: LookupConfig{
			Source: LookupEmbedded,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "scorekit:lookup",
			},
		},
		Chart: ChartConfig{
			Enabled:       true,
			Width:         10,
			Height:        6,
			RenderTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Topic:         "scorekit.scores",
			BatchSize:     100,
			FlushInterval: time.Second,
			RequiredAcks:  1,
		},
		Log: LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_concurrent", d.Server.MaxConcurrent)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)

	v.SetDefault("model.type", d.Model.Type)
	v.SetDefault("model.path", d.Model.Path)
	v.SetDefault("model.endpoint", "")
	v.SetDefault("model.model_name", "")
	v.SetDefault("model.model_version", "")
	v.SetDefault("model.protocol", d.Model.Protocol)
	v.SetDefault("model.signature_name", "")
	v.SetDefault("model.input_mode", "")
	v.SetDefault("model.metadata_path", "")
	v.SetDefault("model.fetch_metadata", false)
	v.SetDefault("model.timeout", d.Model.Timeout)
	v.SetDefault("model.predict_timeout", d.Model.PredictTimeout)
	v.SetDefault("model.auth_token", "")

	v.SetDefault("lookup.source", d.Lookup.Source)
	v.SetDefault("lookup.path", "")
	v.SetDefault("lookup.redis.addr", d.Lookup.Redis.Addr)
	v.SetDefault("lookup.redis.password", "")
	v.SetDefault("lookup.redis.db", 0)
	v.SetDefault("lookup.redis.key_prefix", d.Lookup.Redis.KeyPrefix)

	v.SetDefault("chart.enabled", d.Chart.Enabled)
	v.SetDefault("chart.width", d.Chart.Width)
	v.SetDefault("chart.height", d.Chart.Height)
	v.SetDefault("chart.render_timeout", d.Chart.RenderTimeout)

	v.SetDefault("audit.brokers", []string{})
	v.SetDefault("audit.topic", d.Audit.Topic)
	v.SetDefault("audit.batch_size", d.Audit.BatchSize)
	v.SetDefault("audit.flush_interval", d.Audit.FlushInterval)
	v.SetDefault("audit.required_acks", d.Audit.RequiredAcks)
	v.SetDefault("audit.compression", "")

	v.SetDefault("log.level", d.Log.Level)
}

// Load 读取配置。cfgFile 为空时只使用环境变量与默认值；指定的文件不存在时报错。
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 校验字段约束以及跨字段约束
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Lookup.Source == LookupRedis && c.Lookup.Redis.Addr == "" {
		return fmt.Errorf("invalid config: lookup.redis.addr is required when lookup.source is redis")
	}
	if err := service.ValidateConfig(c.ServiceConfig()); err != nil {
		return fmt.Errorf("invalid config: model: %w", err)
	}
	return nil
}

// ServiceConfig 转换为预测器工厂使用的配置
func (c *Config) ServiceConfig() *service.ServiceConfig {
	m := c.Model
	sc := &service.ServiceConfig{
		Type:          service.ServiceType(m.Type),
		Path:          m.Path,
		Endpoint:      m.Endpoint,
		ModelName:     m.ModelName,
		ModelVersion:  m.ModelVersion,
		Protocol:      m.Protocol,
		SignatureName: m.SignatureName,
		InputMode:     m.InputMode,
		MetadataPath:  m.MetadataPath,
		FetchMetadata: m.FetchMetadata,
		Timeout:       m.Timeout,
	}
	if m.AuthToken != "" {
		sc.Auth = &service.AuthConfig{Type: "bearer", Token: m.AuthToken}
	}
	return sc
}

// Save 把配置写为 YAML
func Save(c *Config, path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

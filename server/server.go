// Package server 提供评分服务的 HTTP 接口（gin）。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rushteam/scorekit/audit"
	"github.com/rushteam/scorekit/pipeline"
)

// Server 是评分服务的 HTTP 入口
type Server struct {
	pipeline       *pipeline.Pipeline
	metrics        *Metrics
	collector      audit.Collector
	logger         *slog.Logger
	allowedOrigins []string
	maxUploadBytes int64
	healthTimeout  time.Duration

	engine *gin.Engine
}

// Option 配置 Server
type Option func(*Server)

// WithMetrics 使用外部创建的指标（与 Encoder、Pipeline 共享）
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCollector 设置评分事件收集器
func WithCollector(c audit.Collector) Option {
	return func(s *Server) {
		if c != nil {
			s.collector = c
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAllowedOrigins 设置 CORS 允许的来源，为空时允许所有来源
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = append([]string(nil), origins...)
	}
}

// WithMaxUploadMB 设置上传文件大小上限
func WithMaxUploadMB(mb int) Option {
	return func(s *Server) {
		if mb > 0 {
			s.maxUploadBytes = int64(mb) << 20
		}
	}
}

// New 创建 Server 并注册路由
func New(p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:       p,
		collector:      audit.NopCollector{},
		logger:         slog.Default(),
		maxUploadBytes: 16 << 20,
		healthTimeout:  3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(s.logger, s.metrics))
	r.Use(CORS(s.allowedOrigins))
	r.MaxMultipartMemory = s.maxUploadBytes

	r.POST("/predict-csv", s.PredictFile)
	r.POST("/predict", s.Predict)
	r.GET("/health", s.Health)
	r.GET("/features", s.Features)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	return r
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler { return s.engine }

// Run 监听 addr，ctx 结束后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("scorekit listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("scorekit shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rushteam/scorekit/analysis"
	"github.com/rushteam/scorekit/audit"
	"github.com/rushteam/scorekit/chart"
	"github.com/rushteam/scorekit/config"
	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/feature"
	"github.com/rushteam/scorekit/pipeline"
	"github.com/rushteam/scorekit/server"
	"github.com/rushteam/scorekit/service"
	"github.com/rushteam/scorekit/store"
)

// app 持有一次进程生命周期内的共享组件
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *server.Metrics
	pipeline *pipeline.Pipeline
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildApp 加载查找表与预测器并组装流水线，特征列不一致时启动失败
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	tables, err := loadLookupTables(ctx, cfg.Lookup)
	if err != nil {
		return nil, fmt.Errorf("load lookup tables: %w", err)
	}
	regencies, provinces := tables.Sizes()
	logger.Info("lookup tables loaded",
		"source", cfg.Lookup.Source,
		"version", tables.Version(),
		"regencies", regencies,
		"provinces", provinces,
	)

	predictor, err := service.NewPredictor(ctx, cfg.ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("build predictor: %w", err)
	}
	logger.Info("predictor ready", "type", cfg.Model.Type, "name", predictor.Name(), "input_mode", predictor.InputMode())

	metrics := server.NewMetrics()

	var renderer chart.Renderer = chart.NopRenderer{}
	if cfg.Chart.Enabled {
		renderer = chart.NewPlotRenderer(cfg.Chart.Width, cfg.Chart.Height)
	}
	insighter, err := analysis.NewInsighter(cfg.Insights.Rules)
	if err != nil {
		return nil, err
	}
	analyzer := analysis.NewAnalyzer(insighter,
		analysis.WithRenderer(renderer),
		analysis.WithRenderTimeout(cfg.Chart.RenderTimeout),
		analysis.WithLogger(logger),
	)

	p := pipeline.New(
		feature.NewColumnNormalizer(),
		feature.NewEncoder(tables, feature.WithMonitor(metrics)),
		predictor,
		analyzer,
		pipeline.WithMaxConcurrent(cfg.Server.MaxConcurrent),
		pipeline.WithPredictTimeout(cfg.Model.PredictTimeout),
		pipeline.WithObserver(metrics),
		pipeline.WithLogger(logger),
	)
	if err := p.Validate(); err != nil {
		closePredictor(predictor)
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, metrics: metrics, pipeline: p}, nil
}

func (a *app) Close() {
	closePredictor(a.pipeline.Predictor())
}

func closePredictor(p core.Predictor) {
	if c, ok := p.(core.Closer); ok {
		_ = c.Close()
	}
}

func loadLookupTables(ctx context.Context, cfg config.LookupConfig) (*feature.LookupTables, error) {
	switch cfg.Source {
	case config.LookupFile:
		return feature.LoadLookupTables(cfg.Path)
	case config.LookupRedis:
		rs, err := store.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		defer rs.Close()
		return feature.NewStoreLookupProvider(rs, feature.DefaultLookupKeys(cfg.Redis.KeyPrefix)).Load(ctx)
	default:
		return feature.DefaultLookupTables()
	}
}

// newCollector 配置了 Kafka 时输出评分事件，否则丢弃
func newCollector(cfg config.AuditConfig, logger *slog.Logger) (audit.Collector, error) {
	if !cfg.Enabled() {
		return audit.NopCollector{}, nil
	}
	c, err := audit.NewKafkaCollector(audit.KafkaConfig{
		Brokers:       cfg.Brokers,
		Topic:         cfg.Topic,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		RequiredAcks:  cfg.RequiredAcks,
		Compression:   cfg.Compression,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("audit events enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return c, nil
}

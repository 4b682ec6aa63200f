package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig Kafka 收集器配置
type KafkaConfig struct {
	Brokers []string // Kafka Broker 地址列表
	Topic   string

	BatchSize     int           // 批量大小
	FlushInterval time.Duration // 刷新间隔

	ClientID     string
	RequiredAcks int16  // 0=不等待, 1=leader, -1=all
	Compression  string // gzip, snappy, lz4, zstd
	MaxRetries   int
}

// KafkaCollector 把评分事件写入 Kafka，按 request_id 分区保证同一请求有序
type KafkaCollector struct {
	client        *kgo.Client
	topic         string
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	buffer    []ScoreEvent
	lastFlush time.Time
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
	stopCh    chan struct{}
}

// NewKafkaCollector 创建 Kafka 收集器并启动后台刷新协程
func NewKafkaCollector(config KafkaConfig, logger *slog.Logger) (*KafkaCollector, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka collector: at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka collector: topic is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	if config.ClientID == "" {
		config.ClientID = "scorekit-audit"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(clientOpts(config)...)
	if err != nil {
		return nil, fmt.Errorf("kafka collector: %w", err)
	}

	c := &KafkaCollector{
		client:        client,
		topic:         config.Topic,
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		logger:        logger,
		buffer:        make([]ScoreEvent, 0, config.BatchSize),
		lastFlush:     time.Now(),
		stopCh:        make(chan struct{}),
	}
	c.wg.Add(1)
	go c.flushLoop()
	return c, nil
}

func clientOpts(config KafkaConfig) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID(config.ClientID),
		kgo.DefaultProduceTopic(config.Topic),
	}

	var acks kgo.Acks
	switch config.RequiredAcks {
	case -1:
		acks = kgo.AllISRAcks()
	case 0:
		acks = kgo.NoAck()
	default:
		acks = kgo.LeaderAck()
	}
	opts = append(opts, kgo.RequiredAcks(acks))
	// 幂等写要求 AllISRAcks
	if config.RequiredAcks != -1 {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}
	if config.MaxRetries > 0 {
		opts = append(opts, kgo.RecordRetries(config.MaxRetries))
	}

	switch config.Compression {
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	}
	return opts
}

// Record 非阻塞写入缓冲，达到批量大小时异步发送
func (c *KafkaCollector) Record(_ context.Context, events []ScoreEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.buffer = append(c.buffer, events...)
	if len(c.buffer) >= c.batchSize {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.flush()
		}()
	}
	return nil
}

func (c *KafkaCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			due := len(c.buffer) > 0 && time.Since(c.lastFlush) >= c.flushInterval
			c.mu.Unlock()
			if due {
				c.flush()
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *KafkaCollector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	events := make([]ScoreEvent, len(c.buffer))
	copy(events, c.buffer)
	c.buffer = c.buffer[:0]
	c.lastFlush = time.Now()
	c.mu.Unlock()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			c.logger.Warn("audit event dropped", "request_id", event.RequestID, "error", err)
			continue
		}
		record := &kgo.Record{
			Topic: c.topic,
			Key:   []byte(event.RequestID),
			Value: data,
		}
		c.client.Produce(context.Background(), record, func(r *kgo.Record, err error) {
			if err != nil {
				c.logger.Warn("audit event produce failed", "topic", r.Topic, "error", err)
			}
		})
	}
}

// Close 停止刷新循环，发送剩余缓冲并等待 Kafka 确认
func (c *KafkaCollector) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.stopCh)
		c.wg.Wait()
		c.flush()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = c.client.Flush(ctx)
		c.client.Close()
	})
	return err
}

package feature

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/scorekit/core"
	"github.com/rushteam/scorekit/pkg/conv"
)

// LookupKeys 定义查找表在 Store 中的 key 布局
type LookupKeys struct {
	Meta     string // 标量参数与词表（YAML），例如 "scorekit:lookup:meta"
	Regency  string // 县/市均值 Hash，例如 "scorekit:lookup:regency"
	Province string // 省份均值 Hash，例如 "scorekit:lookup:province"
}

// DefaultLookupKeys 根据前缀生成默认 key 布局
func DefaultLookupKeys(prefix string) LookupKeys {
	if prefix == "" {
		prefix = "scorekit:lookup"
	}
	return LookupKeys{
		Meta:     prefix + ":meta",
		Regency:  prefix + ":regency",
		Province: prefix + ":province",
	}
}

// StoreLookupProvider 是基于 Store 的查找表来源，采用适配器模式。
// 启动时读取一次，构造出不可变的 LookupTables。
type StoreLookupProvider struct {
	store core.Store
	keys  LookupKeys
}

// NewStoreLookupProvider 创建基于 Store 的查找表来源
func NewStoreLookupProvider(store core.Store, keys LookupKeys) *StoreLookupProvider {
	def := DefaultLookupKeys("")
	if keys.Meta == "" {
		keys.Meta = def.Meta
	}
	if keys.Regency == "" {
		keys.Regency = def.Regency
	}
	if keys.Province == "" {
		keys.Province = def.Province
	}
	return &StoreLookupProvider{store: store, keys: keys}
}

func (p *StoreLookupProvider) Name() string {
	return fmt.Sprintf("store.%s", p.store.Name())
}

// Load 并发读取三个 key 并构造查找表
func (p *StoreLookupProvider) Load(ctx context.Context) (*LookupTables, error) {
	var (
		doc       LookupDocument
		regency   map[string]float64
		provinces map[string]float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := p.store.Get(gctx, p.keys.Meta)
		if err != nil {
			return fmt.Errorf("read %s: %w", p.keys.Meta, err)
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", p.keys.Meta, err)
		}
		return nil
	})
	g.Go(func() error {
		m, err := p.readMeans(gctx, p.keys.Regency)
		regency = m
		return err
	})
	g.Go(func() error {
		m, err := p.readMeans(gctx, p.keys.Province)
		provinces = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc.RegencyMeans = regency
	doc.ProvinceMeans = provinces
	return NewLookupTables(doc)
}

func (p *StoreLookupProvider) readMeans(ctx context.Context, key string) (map[string]float64, error) {
	raw, err := p.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	means := make(map[string]float64, len(raw))
	for field, v := range raw {
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s[%q]: %w", key, field, err)
		}
		means[field] = f
	}
	return means, nil
}

// Publish 把查找表写入 Store，供其他实例通过 Load 读取。
func (p *StoreLookupProvider) Publish(ctx context.Context, tables *LookupTables) error {
	doc := tables.Document()
	regency, provinces := doc.RegencyMeans, doc.ProvinceMeans
	doc.RegencyMeans, doc.ProvinceMeans = nil, nil

	meta, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal lookup meta: %w", err)
	}
	if err := p.store.Set(ctx, p.keys.Meta, meta); err != nil {
		return fmt.Errorf("write %s: %w", p.keys.Meta, err)
	}
	if err := p.writeMeans(ctx, p.keys.Regency, regency); err != nil {
		return err
	}
	return p.writeMeans(ctx, p.keys.Province, provinces)
}

func (p *StoreLookupProvider) writeMeans(ctx context.Context, key string, means map[string]float64) error {
	encoded := conv.ConvertMap(means, func(v float64) ([]byte, bool) {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), true
	})
	for field, v := range encoded {
		if err := p.store.HSet(ctx, key, field, v); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

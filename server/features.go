package server

import (
	"github.com/rushteam/scorekit/pipeline"
)

// DescribeFeatures 汇总流水线使用的特征与查找表（/features 与 CLI 共用）
func DescribeFeatures(p *pipeline.Pipeline) FeaturesResponse {
	enc := p.Encoder()
	tables := enc.Tables()
	regencies, provinces := tables.Sizes()
	return FeaturesResponse{
		Features:  enc.FeatureNames(),
		InputMode: p.Predictor().InputMode(),
		Model:     p.Predictor().Name(),
		Lookup: LookupSummary{
			Version:              tables.Version(),
			GlobalMean:           tables.GlobalMean(),
			Regencies:            regencies,
			Provinces:            provinces,
			MaritalStatusClasses: tables.MaritalStatusClasses(),
			GradeCategories:      tables.GradeCategories(),
		},
	}
}

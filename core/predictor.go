package core

import "context"

// InputMode 声明预测器接受的特征输入形式，在加载时确定，不在每次调用时探测。
type InputMode string

const (
	InputPositional InputMode = "positional" // [[f1, f2, ...], ...]
	InputNamed      InputMode = "named"      // [{"name": v, ...}, ...]
)

// Predictor 是回归模型的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（model）实现
//   - 模型本身是黑盒：输入特征矩阵，输出每行一个分数
//   - 可选能力（特征重要性、期望特征名）通过独立接口声明，不做结构探测
//
// 实现：
//   - model.LinearModel：本地线性回归产物
//   - model.TreeEnsemble：本地树模型产物
//   - model.RPCModel：远程模型服务
type Predictor interface {
	// Name 返回模型名称（用于日志/监控）
	Name() string

	// Predict 批量预测，返回值与输入行一一对应
	Predict(ctx context.Context, features *FeatureMatrix) ([]float64, error)

	// InputMode 返回模型接受的输入形式
	InputMode() InputMode
}

// ImportanceProvider 是可选能力：暴露特征重要性。
// FeatureImportances 与 FeatureNames 长度不一致时，调用方应视为不可用。
type ImportanceProvider interface {
	FeatureImportances() ([]float64, error)
	FeatureNames() []string
}

// ExpectedFeatures 是可选能力：暴露训练时的特征列顺序，用于启动时校验。
type ExpectedFeatures interface {
	ExpectedFeatureNames() []string
}

// Closer 是可选能力：释放模型持有的连接。
type Closer interface {
	Close() error
}

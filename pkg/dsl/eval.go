// Package dsl 实现洞察规则 DSL：用 CEL 表达式判断条件，用 text/template 渲染文案。
package dsl

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// 规则可以引用的变量（均为 double，count 除外）
const (
	VarMean  = "mean"
	VarMin   = "min"
	VarMax   = "max"
	VarStd   = "std"
	VarCount = "count"
)

// initCELEnv 初始化 CEL 环境，定义变量类型
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(VarMean, cel.DoubleType),
		cel.Variable(VarMin, cel.DoubleType),
		cel.Variable(VarMax, cel.DoubleType),
		cel.Variable(VarStd, cel.DoubleType),
		cel.Variable(VarCount, cel.IntType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Rule 是一条洞察规则。
//
// When 是 CEL 布尔表达式，为空表示总是命中：
//   - mean > 50.0
//   - mean < 30.0 && count >= 3
//
// Message 是 text/template 模板，可引用同名变量：
//   - Rata-rata umur peserta: {{printf "%.1f" .mean}} tahun.
type Rule struct {
	When    string `mapstructure:"when" yaml:"when" json:"when"`
	Message string `mapstructure:"message" yaml:"message" json:"message"`
}

// Stats 是规则求值的输入
type Stats struct {
	Mean  float64
	Min   float64
	Max   float64
	Std   float64
	Count int
}

func (s Stats) vars() map[string]any {
	return map[string]any{
		VarMean:  s.Mean,
		VarMin:   s.Min,
		VarMax:   s.Max,
		VarStd:   s.Std,
		VarCount: int64(s.Count),
	}
}

type compiledRule struct {
	prg  cel.Program // 为 nil 表示总是命中
	tmpl *template.Template
}

// RuleSet 是编译后的有序规则集，按顺序取第一条命中的规则。
// 编译在构造时完成一次，之后可并发求值。
type RuleSet struct {
	rules []compiledRule
}

// Compile 编译规则集，任一表达式或模板非法都会返回错误
func Compile(rules []Rule) (*RuleSet, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		var cr compiledRule
		if r.When != "" {
			// 编译表达式
			ast, issues := env.Compile(r.When)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("rule %d: compile error: %w", i, issues.Err())
			}
			if !ast.OutputType().IsExactType(cel.BoolType) {
				return nil, fmt.Errorf("rule %d: expression must return bool, got %s", i, ast.OutputType())
			}
			// 创建程序
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("rule %d: program error: %w", i, err)
			}
			cr.prg = prg
		}
		tmpl, err := template.New(fmt.Sprintf("rule%d", i)).Option("missingkey=error").Parse(r.Message)
		if err != nil {
			return nil, fmt.Errorf("rule %d: message template: %w", i, err)
		}
		cr.tmpl = tmpl
		rs.rules = append(rs.rules, cr)
	}
	return rs, nil
}

// Evaluate 返回第一条命中规则渲染后的文案；没有规则命中时 ok 为 false。
func (rs *RuleSet) Evaluate(stats Stats) (msg string, ok bool, err error) {
	vars := stats.vars()
	for i, r := range rs.rules {
		if r.prg != nil {
			out, _, err := r.prg.Eval(vars)
			if err != nil {
				return "", false, fmt.Errorf("rule %d: eval error: %w", i, err)
			}
			matched, isBool := out.Value().(bool)
			if !isBool {
				return "", false, fmt.Errorf("rule %d: expression must return bool, got %T", i, out.Value())
			}
			if !matched {
				continue
			}
		}
		var buf bytes.Buffer
		if err := r.tmpl.Execute(&buf, vars); err != nil {
			return "", false, fmt.Errorf("rule %d: render message: %w", i, err)
		}
		return buf.String(), true, nil
	}
	return "", false, nil
}

// Len 返回规则数
func (rs *RuleSet) Len() int { return len(rs.rules) }

// DefaultAgeRules 返回默认的年龄段洞察规则
func DefaultAgeRules() []Rule {
	return []Rule{
		{When: "mean > 50.0", Message: "Rata-rata umur peserta di atas 50 tahun."},
		{When: "mean < 30.0", Message: "Banyak peserta berusia muda."},
		{Message: `Rata-rata umur peserta: {{printf "%.1f" .mean}} tahun.`},
	}
}

package matching

import (
	"math"
)

// Weights 匹配引擎的三个分量满分与交付阈值。
// 默认 40/30/30，阈值60，可通过配置覆盖。
type Weights struct {
	Skill      float64
	Experience float64
	ATS        float64
	Threshold  int
}

// DefaultWeights 返回设计默认权重
func DefaultWeights() Weights {
	return Weights{
		Skill:      40,
		Experience: 30,
		ATS:        30,
		Threshold:  60,
	}
}

// Requirement 公司请求中参与打分的字段。
// Location字段不参与打分，只作为交付元数据保留。
type Requirement struct {
	Skills          []string
	ExperienceYears *float64
}

// CandidateFeatures 候选CV的特征记录。
// ATSScore为nil表示AI分析未给出ATS数据；显式的0是真实零分，两者均贡献0分。
type CandidateFeatures struct {
	KeySkills            []string
	TotalYearsExperience float64
	ATSScore             *float64
}

// MatchDetails 打分明细，随交付记录持久化供审计展示
type MatchDetails struct {
	Skills     []string `json:"skills,omitempty"`
	Experience *float64 `json:"experience,omitempty"`
	ATSScore   *float64 `json:"ats_score,omitempty"`
}

// Result 单次打分结果
type Result struct {
	Score   int
	Details MatchDetails
}

// Engine 纯函数打分引擎，无任何副作用
type Engine struct {
	weights Weights
}

// NewEngine 创建打分引擎
func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Threshold 返回交付阈值
func (e *Engine) Threshold() int {
	return e.weights.Threshold
}

// Score 计算需求与候选特征之间的加权匹配分。
// 三个分量相互独立：
//   - 技能重合 (满分Skill): 候选技能在需求技能集合中的精确命中数 / 需求技能数。
//     需求未指定技能时该分量为0，不白送分。
//   - 经验 (满分Experience): 候选年限 >= 需求年限给满分，否则线性给分。
//     需求未指定年限时该分量为0。
//   - ATS质量 (满分ATS): min(ats, 100) / 100。仅在特征记录携带ATS数据时计入。
//
// 总分四舍五入取整。对良构输入范围为 0..100。
func (e *Engine) Score(req Requirement, feat CandidateFeatures) Result {
	var score float64
	var details MatchDetails

	// 技能重合
	if len(req.Skills) > 0 && len(feat.KeySkills) > 0 {
		required := make(map[string]struct{}, len(req.Skills))
		for _, s := range req.Skills {
			required[s] = struct{}{}
		}
		var matched []string
		for _, s := range feat.KeySkills {
			if _, ok := required[s]; ok {
				matched = append(matched, s)
			}
		}
		score += float64(len(matched)) / float64(len(req.Skills)) * e.weights.Skill
		details.Skills = matched
	}

	// 经验
	if req.ExperienceYears != nil && *req.ExperienceYears > 0 {
		if feat.TotalYearsExperience >= *req.ExperienceYears {
			score += e.weights.Experience
		} else {
			score += feat.TotalYearsExperience / *req.ExperienceYears * e.weights.Experience
		}
		exp := feat.TotalYearsExperience
		details.Experience = &exp
	}

	// ATS质量
	if feat.ATSScore != nil {
		ats := math.Min(*feat.ATSScore, 100)
		score += ats / 100 * e.weights.ATS
		raw := *feat.ATSScore
		details.ATSScore = &raw
	}

	return Result{
		Score:   int(math.Round(score)),
		Details: details,
	}
}

package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(f float64) *float64 {
	return &f
}

// TestSkillComponentPartialOverlap 需求{"Python","SQL"}、候选{"Python","Java"}时技能分量应为 1/2*40 = 20
func TestSkillComponentPartialOverlap(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	result := engine.Score(
		Requirement{Skills: []string{"Python", "SQL"}},
		CandidateFeatures{KeySkills: []string{"Python", "Java"}},
	)

	assert.Equal(t, 20, result.Score)
	assert.Equal(t, []string{"Python"}, result.Details.Skills, "明细应只记录命中的技能")
}

// TestSkillOverlapIsCaseSensitive 技能匹配是大小写敏感的精确匹配
func TestSkillOverlapIsCaseSensitive(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	result := engine.Score(
		Requirement{Skills: []string{"Python"}},
		CandidateFeatures{KeySkills: []string{"python"}},
	)

	assert.Equal(t, 0, result.Score, "大小写不一致不应命中")
	assert.Empty(t, result.Details.Skills)
}

// TestExperiencePartialCredit 需求10年、候选5年应得 5/10*30 = 15；候选12年应得满分30
func TestExperiencePartialCredit(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	partial := engine.Score(
		Requirement{ExperienceYears: floatPtr(10)},
		CandidateFeatures{TotalYearsExperience: 5},
	)
	assert.Equal(t, 15, partial.Score)
	assert.Equal(t, 5.0, *partial.Details.Experience)

	capped := engine.Score(
		Requirement{ExperienceYears: floatPtr(10)},
		CandidateFeatures{TotalYearsExperience: 12},
	)
	assert.Equal(t, 30, capped.Score, "超过需求年限应封顶为满分")
}

// TestATSComponent ats=80 应得 min(80,100)*0.3 = 24；ats=120 封顶到 100*0.3 = 30
func TestATSComponent(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	result := engine.Score(
		Requirement{},
		CandidateFeatures{ATSScore: floatPtr(80)},
	)
	assert.Equal(t, 24, result.Score)
	assert.Equal(t, 80.0, *result.Details.ATSScore)

	overflow := engine.Score(
		Requirement{},
		CandidateFeatures{ATSScore: floatPtr(120)},
	)
	assert.Equal(t, 30, overflow.Score, "畸形的超限ATS分应封顶到满分")
	assert.Equal(t, 120.0, *overflow.Details.ATSScore, "明细保留原始值供审计")
}

// TestATSZeroVersusAbsent ATS语义：nil表示无数据，显式0是真实零分。
// 两者都贡献0分，但显式0会出现在明细中。
func TestATSZeroVersusAbsent(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	absent := engine.Score(Requirement{}, CandidateFeatures{})
	assert.Equal(t, 0, absent.Score)
	assert.Nil(t, absent.Details.ATSScore, "无ATS数据时明细不应有该项")

	zero := engine.Score(Requirement{}, CandidateFeatures{ATSScore: floatPtr(0)})
	assert.Equal(t, 0, zero.Score)
	assert.NotNil(t, zero.Details.ATSScore, "真实零分应保留在明细中")
	assert.Equal(t, 0.0, *zero.Details.ATSScore)
}

// TestTotalScoreBelowThreshold 技能20 + 经验15 + ATS24 = 59，低于交付阈值60
func TestTotalScoreBelowThreshold(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	result := engine.Score(
		Requirement{
			Skills:          []string{"Python", "SQL"},
			ExperienceYears: floatPtr(10),
		},
		CandidateFeatures{
			KeySkills:            []string{"Python", "Java"},
			TotalYearsExperience: 5,
			ATSScore:             floatPtr(80),
		},
	)

	assert.Equal(t, 59, result.Score)
	assert.Less(t, result.Score, engine.Threshold())
}

// TestThresholdBoundaryRounding 59.4应舍入为59(不交付)，59.5应舍入为60(交付)
func TestThresholdBoundaryRounding(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	// 技能 2/5*40=16, 经验 4.45/10*30=13.35, ATS 100*0.3=30 => 59.35 -> 59
	below := engine.Score(
		Requirement{
			Skills:          []string{"A", "B", "C", "D", "E"},
			ExperienceYears: floatPtr(10),
		},
		CandidateFeatures{
			KeySkills:            []string{"A", "B"},
			TotalYearsExperience: 4.45,
			ATSScore:             floatPtr(100),
		},
	)
	assert.Equal(t, 59, below.Score)

	// 技能 16, 经验 4.5/10*30=13.5, ATS 30 => 59.5 -> 60
	atBoundary := engine.Score(
		Requirement{
			Skills:          []string{"A", "B", "C", "D", "E"},
			ExperienceYears: floatPtr(10),
		},
		CandidateFeatures{
			KeySkills:            []string{"A", "B"},
			TotalYearsExperience: 4.5,
			ATSScore:             floatPtr(100),
		},
	)
	assert.Equal(t, 60, atBoundary.Score)
	assert.GreaterOrEqual(t, atBoundary.Score, engine.Threshold())
}

// TestEmptyRequirementSkillsAwardNoPoints 需求技能为空时技能分量恒为0，不论候选技能多少
func TestEmptyRequirementSkillsAwardNoPoints(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	result := engine.Score(
		Requirement{},
		CandidateFeatures{KeySkills: []string{"Python", "SQL", "Go", "Rust"}},
	)

	assert.Equal(t, 0, result.Score, "未指定需求技能不应白送分")
	assert.Nil(t, result.Details.Skills)
}

// TestMissingRequirementYearsSkipsExperience 需求未指定年限时经验分量为0
func TestMissingRequirementYearsSkipsExperience(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	result := engine.Score(
		Requirement{Skills: []string{"Go"}},
		CandidateFeatures{KeySkills: []string{"Go"}, TotalYearsExperience: 20},
	)

	assert.Equal(t, 40, result.Score, "只应得到技能分量")
	assert.Nil(t, result.Details.Experience)
}

// TestCustomWeights 权重可配置，分量按配置满分缩放
func TestCustomWeights(t *testing.T) {
	engine := NewEngine(Weights{Skill: 50, Experience: 30, ATS: 20, Threshold: 60})

	result := engine.Score(
		Requirement{Skills: []string{"Go", "SQL"}},
		CandidateFeatures{KeySkills: []string{"Go"}, ATSScore: floatPtr(100)},
	)

	// 技能 1/2*50=25, ATS 100/100*20=20
	assert.Equal(t, 45, result.Score)
}

// TestScoreIsPure 同样输入多次调用结果一致，且不修改入参
func TestScoreIsPure(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	req := Requirement{Skills: []string{"Go", "SQL"}, ExperienceYears: floatPtr(3)}
	feat := CandidateFeatures{KeySkills: []string{"Go"}, TotalYearsExperience: 4, ATSScore: floatPtr(90)}

	first := engine.Score(req, feat)
	second := engine.Score(req, feat)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Go", "SQL"}, req.Skills)
	assert.Equal(t, 3.0, *req.ExperienceYears)
}

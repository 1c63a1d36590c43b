package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillListUnmarshalArray(t *testing.T) {
	var skills SkillList
	err := json.Unmarshal([]byte(`["Go", "SQL", "Docker"]`), &skills)
	require.NoError(t, err)
	assert.Equal(t, SkillList{"Go", "SQL", "Docker"}, skills)
}

func TestSkillListUnmarshalCommaString(t *testing.T) {
	// 逗号分隔字符串形式，前后空格被裁剪
	var skills SkillList
	err := json.Unmarshal([]byte(`"Go, SQL , Docker"`), &skills)
	require.NoError(t, err)
	assert.Equal(t, SkillList{"Go", "SQL", "Docker"}, skills)
}

func TestSkillListDropsEmptyEntries(t *testing.T) {
	var skills SkillList
	err := json.Unmarshal([]byte(`"Go,, ,SQL"`), &skills)
	require.NoError(t, err)
	assert.Equal(t, SkillList{"Go", "SQL"}, skills)
}

func TestSkillListRejectsOtherTypes(t *testing.T) {
	var skills SkillList
	err := json.Unmarshal([]byte(`42`), &skills)
	assert.Error(t, err)
}

func TestCreateInputValidation(t *testing.T) {
	years := 3.0
	valid := &CreateCVRequestInput{
		RequestedRole:   "Backend Engineer",
		ExperienceYears: &years,
		Skills:          SkillList{"Go"},
		CVCount:         5,
	}
	assert.NoError(t, valid.Validate())

	// requested_role 必填
	missing := &CreateCVRequestInput{CVCount: 5}
	err := missing.Validate()
	assert.ErrorIs(t, err, ErrValidation)

	// 空白角色名同样视为缺失
	blank := &CreateCVRequestInput{RequestedRole: "   ", CVCount: 5}
	assert.ErrorIs(t, blank.Validate(), ErrValidation)

	// cv_count 必须为正
	zeroCount := &CreateCVRequestInput{RequestedRole: "Backend Engineer"}
	assert.ErrorIs(t, zeroCount.Validate(), ErrValidation)

	// 经验年限不允许为负
	negYears := -1.0
	negative := &CreateCVRequestInput{
		RequestedRole:   "Backend Engineer",
		ExperienceYears: &negYears,
		CVCount:         1,
	}
	assert.ErrorIs(t, negative.Validate(), ErrValidation)
}

func TestUpsertFeaturesInputValidation(t *testing.T) {
	score := 85.0
	valid := &UpsertFeaturesInput{
		ATSScore:             &score,
		TotalYearsExperience: 4,
		KeySkills:            SkillList{"Go"},
	}
	assert.NoError(t, valid.Validate())

	// ats_score 缺失(为null)是合法的
	noScore := &UpsertFeaturesInput{TotalYearsExperience: 4}
	assert.NoError(t, noScore.Validate())

	negScore := -1.0
	invalid := &UpsertFeaturesInput{ATSScore: &negScore}
	assert.ErrorIs(t, invalid.Validate(), ErrValidation)

	negYears := &UpsertFeaturesInput{TotalYearsExperience: -2}
	assert.ErrorIs(t, negYears.Validate(), ErrValidation)
}

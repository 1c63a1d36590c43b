package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCVRequestSkillsAccessor(t *testing.T) {
	skillsJSON, err := SliceToJSON([]string{"Go", "SQL"})
	require.NoError(t, err)

	req := &CVRequest{SkillsJSON: skillsJSON}
	assert.Equal(t, []string{"Go", "SQL"}, req.Skills())

	// 空列返回nil切片，打分侧按无技能要求处理
	empty := &CVRequest{}
	assert.Nil(t, empty.Skills())
}

func TestCVFeatureKeySkillsAccessor(t *testing.T) {
	skillsJSON, err := SliceToJSON([]string{"Kubernetes"})
	require.NoError(t, err)

	feat := &CVFeature{KeySkillsJSON: skillsJSON}
	assert.Equal(t, []string{"Kubernetes"}, feat.KeySkills())

	empty := &CVFeature{}
	assert.Nil(t, empty.KeySkills())
}

func TestSliceToJSONNilSlice(t *testing.T) {
	// nil切片归一化为[]，落库后读回空切片而不是null
	j, err := SliceToJSON(nil)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(j))

	req := &CVRequest{SkillsJSON: j}
	assert.NotNil(t, req.Skills())
	assert.Empty(t, req.Skills())
}

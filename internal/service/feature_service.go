package service

import (
	"context"
	"fmt"

	"jobgate-go/internal/storage"
	"jobgate-go/internal/storage/models"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// UpsertFeaturesInput AI分析服务回写CV特征的参数。
// ATSScore 为指针: null 表示分析器没有产出ATS分，0 是真实的零分。
type UpsertFeaturesInput struct {
	ATSScore             *float64  `json:"ats_score"`
	TotalYearsExperience float64   `json:"total_years_experience"`
	KeySkills            SkillList `json:"key_skills"`
	AchievementCount     int       `json:"achievement_count"`
	HasContactInfo       bool      `json:"has_contact_info"`
	HasEducation         bool      `json:"has_education"`
	HasExperience        bool      `json:"has_experience"`
	IsATSCompliant       bool      `json:"is_ats_compliant"`
}

// Validate 校验特征参数
func (in *UpsertFeaturesInput) Validate() error {
	if in.TotalYearsExperience < 0 {
		return fmt.Errorf("%w: total_years_experience 不能为负数", ErrValidation)
	}
	if in.ATSScore != nil && *in.ATSScore < 0 {
		return fmt.Errorf("%w: ats_score 不能为负数", ErrValidation)
	}
	if in.AchievementCount < 0 {
		return fmt.Errorf("%w: achievement_count 不能为负数", ErrValidation)
	}
	return nil
}

// FeatureService 管理CV的结构化特征记录
type FeatureService struct {
	storage *storage.Storage
	logger  *zerolog.Logger
}

// NewFeatureService 创建特征服务实例
func NewFeatureService(storageManager *storage.Storage, logger *zerolog.Logger) (*FeatureService, error) {
	if storageManager == nil || storageManager.MySQL == nil {
		return nil, ErrStorageNotInit
	}
	if logger == nil {
		defaultLogger := zerolog.Nop()
		logger = &defaultLogger
	}
	return &FeatureService{storage: storageManager, logger: logger}, nil
}

// UpsertFeatures 整体覆写某CV的特征记录。
// CV必须已存在，重复回写以最新一次分析结果为准。
func (s *FeatureService) UpsertFeatures(ctx context.Context, cvID string, input *UpsertFeaturesInput) (*models.CVFeature, error) {
	ctx, span := tracer.Start(ctx, "FeatureService.UpsertFeatures")
	defer span.End()
	span.SetAttributes(attribute.String("cv_id", cvID))

	if err := input.Validate(); err != nil {
		return nil, err
	}

	// CV必须存在，特征是CV的附属记录
	var cv models.CV
	if err := s.storage.MySQL.DB().WithContext(ctx).Where("cv_id = ?", cvID).First(&cv).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrCVNotFound
		}
		return nil, fmt.Errorf("查询CV失败: %w", err)
	}

	skillsJSON, err := models.SliceToJSON([]string(input.KeySkills))
	if err != nil {
		return nil, fmt.Errorf("序列化技能列表失败: %w", err)
	}

	feature := &models.CVFeature{
		CVID:                 cvID,
		ATSScore:             input.ATSScore,
		TotalYearsExperience: input.TotalYearsExperience,
		KeySkillsJSON:        skillsJSON,
		AchievementCount:     input.AchievementCount,
		HasContactInfo:       input.HasContactInfo,
		HasEducation:         input.HasEducation,
		HasExperience:        input.HasExperience,
		IsATSCompliant:       input.IsATSCompliant,
	}

	if err := s.storage.MySQL.UpsertCVFeature(ctx, feature); err != nil {
		return nil, fmt.Errorf("写入CV特征失败: %w", err)
	}

	s.logger.Info().
		Str("cv_id", cvID).
		Int("key_skills", len(input.KeySkills)).
		Msg("CV特征已更新")

	return feature, nil
}

// GetFeatures 查询某CV的特征记录，不存在时返回 ErrFeatureNotFound
func (s *FeatureService) GetFeatures(ctx context.Context, cvID string) (*models.CVFeature, error) {
	ctx, span := tracer.Start(ctx, "FeatureService.GetFeatures")
	defer span.End()
	span.SetAttributes(attribute.String("cv_id", cvID))

	feature, err := s.storage.MySQL.GetCVFeature(ctx, cvID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrFeatureNotFound
		}
		return nil, fmt.Errorf("查询CV特征失败: %w", err)
	}
	return feature, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobgate-go/internal/config"
	"jobgate-go/internal/constants"
	"jobgate-go/internal/storage"
	"jobgate-go/internal/storage/models"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// 定义tracer
var tracer = otel.Tracer("service")

// SkillList 技能列表，JSON反序列化时同时兼容数组和逗号分隔字符串两种形式
type SkillList []string

// UnmarshalJSON 兼容 ["Go","SQL"] 和 "Go, SQL" 两种输入
func (s *SkillList) UnmarshalJSON(data []byte) error {
	var asArray []string
	if err := json.Unmarshal(data, &asArray); err == nil {
		*s = normalizeSkills(asArray)
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = normalizeSkills(strings.Split(asString, ","))
		return nil
	}

	return fmt.Errorf("skills 必须是字符串数组或逗号分隔字符串")
}

// normalizeSkills 去除空白项并裁剪前后空格
func normalizeSkills(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, sk := range raw {
		sk = strings.TrimSpace(sk)
		if sk != "" {
			out = append(out, sk)
		}
	}
	return out
}

// CreateCVRequestInput 公司侧创建CV请求的参数
type CreateCVRequestInput struct {
	RequestedRole   string    `json:"requested_role"`
	ExperienceYears *float64  `json:"experience_years"`
	Skills          SkillList `json:"skills"`
	Location        *string   `json:"location"`
	CVCount         int       `json:"cv_count"`
}

// Validate 校验创建参数
func (in *CreateCVRequestInput) Validate() error {
	if strings.TrimSpace(in.RequestedRole) == "" {
		return fmt.Errorf("%w: requested_role 不能为空", ErrValidation)
	}
	if in.CVCount <= 0 {
		return fmt.Errorf("%w: cv_count 必须大于0", ErrValidation)
	}
	if in.ExperienceYears != nil && *in.ExperienceYears < 0 {
		return fmt.Errorf("%w: experience_years 不能为负数", ErrValidation)
	}
	return nil
}

// CVRequestService 管理CV请求的创建、查询和状态流转
type CVRequestService struct {
	storage *storage.Storage
	cfg     *config.Config
	logger  *zerolog.Logger
}

// NewCVRequestService 创建CV请求服务实例
func NewCVRequestService(cfg *config.Config, storageManager *storage.Storage, logger *zerolog.Logger) (*CVRequestService, error) {
	if storageManager == nil || storageManager.MySQL == nil {
		return nil, ErrStorageNotInit
	}
	if logger == nil {
		defaultLogger := zerolog.Nop()
		logger = &defaultLogger
	}
	return &CVRequestService{
		storage: storageManager,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// CreateRequest 创建一条新的CV请求，初始状态为pending
func (s *CVRequestService) CreateRequest(ctx context.Context, companyID string, input *CreateCVRequestInput) (*models.CVRequest, error) {
	ctx, span := tracer.Start(ctx, "CVRequestService.CreateRequest")
	defer span.End()
	span.SetAttributes(attribute.String("company_id", companyID))

	if err := input.Validate(); err != nil {
		return nil, err
	}

	// 公司必须存在
	if _, err := s.storage.MySQL.GetCompanyByID(ctx, companyID); err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("查询公司失败: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成请求ID失败: %w", err)
	}

	skillsJSON, err := models.SliceToJSON([]string(input.Skills))
	if err != nil {
		return nil, fmt.Errorf("序列化技能列表失败: %w", err)
	}

	request := &models.CVRequest{
		RequestID:       id.String(),
		CompanyID:       companyID,
		RequestedRole:   strings.TrimSpace(input.RequestedRole),
		ExperienceYears: input.ExperienceYears,
		SkillsJSON:      skillsJSON,
		Location:        input.Location,
		CVCount:         input.CVCount,
		Status:          constants.RequestStatusPending,
	}

	if err := s.storage.MySQL.CreateCVRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("创建CV请求失败: %w", err)
	}

	s.invalidateListCache(ctx, companyID)

	s.logger.Info().
		Str("request_id", request.RequestID).
		Str("company_id", companyID).
		Str("requested_role", request.RequestedRole).
		Int("cv_count", request.CVCount).
		Msg("CV请求已创建")

	return request, nil
}

// ListAllRequests 管理端列出全部CV请求，按创建时间倒序
func (s *CVRequestService) ListAllRequests(ctx context.Context) ([]models.CVRequest, error) {
	ctx, span := tracer.Start(ctx, "CVRequestService.ListAllRequests")
	defer span.End()

	requests, err := s.storage.MySQL.ListCVRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询CV请求列表失败: %w", err)
	}
	return requests, nil
}

// ListCompanyRequests 公司侧列出自己的CV请求。
// 先查Redis缓存，未命中时回源数据库并写回缓存。
func (s *CVRequestService) ListCompanyRequests(ctx context.Context, companyID string) ([]models.CVRequest, error) {
	ctx, span := tracer.Start(ctx, "CVRequestService.ListCompanyRequests")
	defer span.End()
	span.SetAttributes(attribute.String("company_id", companyID))

	if s.storage.Redis != nil {
		var cached []models.CVRequest
		err := s.storage.Redis.GetCachedCompanyRequestList(ctx, companyID, &cached)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			// 缓存故障只记录，不阻塞读路径
			s.logger.Warn().Err(err).Str("company_id", companyID).Msg("读取请求列表缓存失败")
		}
	}

	requests, err := s.storage.MySQL.ListCompanyCVRequests(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("查询公司CV请求失败: %w", err)
	}

	if s.storage.Redis != nil {
		if err := s.storage.Redis.CacheCompanyRequestList(ctx, companyID, requests, 5*time.Minute); err != nil {
			s.logger.Warn().Err(err).Str("company_id", companyID).Msg("写入请求列表缓存失败")
		}
	}

	return requests, nil
}

// GetRequest 获取单条CV请求
func (s *CVRequestService) GetRequest(ctx context.Context, requestID string) (*models.CVRequest, error) {
	request, err := s.storage.MySQL.GetCVRequestByID(s.storage.MySQL.DB().WithContext(ctx), requestID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("查询CV请求失败: %w", err)
	}
	return request, nil
}

// CVRequestDetail 单条请求详情视图，附带台帐上已有的交付行数
type CVRequestDetail struct {
	*models.CVRequest
	DeliveredCount int64 `json:"delivered_count"`
}

// GetRequestDetail 获取单条CV请求及其当前交付行数
func (s *CVRequestService) GetRequestDetail(ctx context.Context, requestID string) (*CVRequestDetail, error) {
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	count, err := s.storage.MySQL.CountDeliveriesByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("统计交付行数失败: %w", err)
	}

	return &CVRequestDetail{CVRequest: request, DeliveredCount: count}, nil
}

// UpdateStatus 管理端更新CV请求状态。
// 状态流转必须合法，且目标状态必须是管理端可设置的状态；
// 状态变更与outbox事件写入在同一事务内完成。
func (s *CVRequestService) UpdateStatus(ctx context.Context, requestID string, newStatus string) (*models.CVRequest, error) {
	ctx, span := tracer.Start(ctx, "CVRequestService.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.String("new_status", newStatus),
	)

	if !IsAdminAssignableStatus(newStatus) {
		return nil, fmt.Errorf("%w: 不允许手动设置状态 %q", ErrValidation, newStatus)
	}

	var updated *models.CVRequest
	err := s.storage.MySQL.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.storage.MySQL.GetCVRequestForUpdate(tx, requestID)
		if err != nil {
			if storage.IsNotFound(err) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("锁定CV请求失败: %w", err)
		}

		if err := ValidateTransition(request.Status, newStatus); err != nil {
			return err
		}

		if err := s.storage.MySQL.UpdateCVRequestStatus(tx, requestID, newStatus); err != nil {
			return fmt.Errorf("更新请求状态失败: %w", err)
		}

		// 在同一事务内写入outbox事件，由中继异步发布
		payload, err := models.MapToJSON(map[string]interface{}{
			"request_id": requestID,
			"company_id": request.CompanyID,
			"old_status": request.Status,
			"new_status": newStatus,
			"changed_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("序列化状态变更事件失败: %w", err)
		}

		msg := &models.OutboxMessage{
			AggregateID:      requestID,
			EventType:        constants.EventCVRequestStatusChanged,
			Payload:          string(payload),
			TargetExchange:   s.cfg.RabbitMQ.DeliveryExchange,
			TargetRoutingKey: s.cfg.RabbitMQ.RequestStatusRouting,
		}
		if err := s.storage.MySQL.CreateOutboxMessage(tx, msg); err != nil {
			return fmt.Errorf("写入outbox事件失败: %w", err)
		}

		request.Status = newStatus
		updated = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateListCache(ctx, updated.CompanyID)

	s.logger.Info().
		Str("request_id", requestID).
		Str("status", newStatus).
		Msg("CV请求状态已更新")

	return updated, nil
}

// invalidateListCache 删除公司请求列表缓存，失败只记录日志
func (s *CVRequestService) invalidateListCache(ctx context.Context, companyID string) {
	if s.storage.Redis == nil {
		return
	}
	if err := s.storage.Redis.InvalidateCompanyRequestList(ctx, companyID); err != nil {
		s.logger.Warn().Err(err).Str("company_id", companyID).Msg("删除请求列表缓存失败")
	}
}

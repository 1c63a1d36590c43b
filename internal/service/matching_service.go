package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobgate-go/internal/config"
	"jobgate-go/internal/constants"
	"jobgate-go/internal/matching"
	"jobgate-go/internal/storage"
	"jobgate-go/internal/storage/models"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// MatchRunSummary 一次匹配交付运行的结果汇总
type MatchRunSummary struct {
	RequestID      string `json:"request_id"`
	ScannedCount   int    `json:"scanned_count"`   // 参与打分的候选数
	MatchedCount   int    `json:"matched_count"`   // 达到阈值的候选数
	DeliveredCount int64  `json:"delivered_count"` // 本次新插入的交付行数
	Status         string `json:"status"`          // 运行后的请求状态
}

// DeliveryView 交付记录的对外视图，带限时下载链接
type DeliveryView struct {
	CVID         string          `json:"cv_id"`
	SeekerName   string          `json:"seeker_name,omitempty"`
	Title        string          `json:"title,omitempty"`
	MatchScore   int             `json:"match_score"`
	MatchDetails json.RawMessage `json:"match_details,omitempty"`
	DeliveredAt  time.Time       `json:"delivered_at"`
	DownloadURL  string          `json:"download_url,omitempty"`
}

// MatchingService 执行CV请求的匹配与交付
type MatchingService struct {
	storage *storage.Storage
	cfg     *config.Config
	engine  *matching.Engine
	logger  *zerolog.Logger
}

// NewMatchingService 创建匹配服务实例，打分权重来自配置
func NewMatchingService(cfg *config.Config, storageManager *storage.Storage, logger *zerolog.Logger) (*MatchingService, error) {
	if storageManager == nil || storageManager.MySQL == nil {
		return nil, ErrStorageNotInit
	}
	if logger == nil {
		defaultLogger := zerolog.Nop()
		logger = &defaultLogger
	}

	weights := matching.Weights{
		Skill:      cfg.Matching.SkillWeight,
		Experience: cfg.Matching.ExperienceWeight,
		ATS:        cfg.Matching.ATSWeight,
		Threshold:  cfg.Matching.DeliverThreshold,
	}

	return &MatchingService{
		storage: storageManager,
		cfg:     cfg,
		engine:  matching.NewEngine(weights),
		logger:  logger,
	}, nil
}

// MatchAndDeliver 对一条CV请求执行匹配并落库交付记录。
//
// 整个流程:
//  1. 获取该请求的Redis匹配锁，锁被持有则直接返回 ErrMatchingInProgress；
//  2. 在单个数据库事务内: 行级锁加载请求、分批扫描候选、打分、
//     批量幂等插入交付记录、请求状态流转到delivered、写入outbox事件；
//  3. 释放锁并使公司侧列表缓存失效。
//
// (request_id, cv_id) 唯一约束保证重复触发只补插缺失行，不会产生重复交付。
func (s *MatchingService) MatchAndDeliver(ctx context.Context, requestID string) (*MatchRunSummary, error) {
	ctx, span := tracer.Start(ctx, "MatchingService.MatchAndDeliver")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	// 先拿分布式锁，避免两个运行同时处理同一请求
	var lockValue string
	if s.storage.Redis != nil {
		var err error
		lockValue, err = s.storage.Redis.AcquireMatchLock(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("获取匹配锁失败: %w", err)
		}
		if lockValue == "" {
			return nil, ErrMatchingInProgress
		}
		defer func() {
			if _, err := s.storage.Redis.ReleaseMatchLock(context.WithoutCancel(ctx), requestID, lockValue); err != nil {
				s.logger.Warn().Err(err).Str("request_id", requestID).Msg("释放匹配锁失败")
			}
		}()
	}

	summary := &MatchRunSummary{RequestID: requestID}
	var companyID string

	err := s.storage.MySQL.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.storage.MySQL.GetCVRequestForUpdate(tx, requestID)
		if err != nil {
			if storage.IsNotFound(err) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("锁定CV请求失败: %w", err)
		}
		companyID = request.CompanyID

		// 只有审核通过(或已标记处理中)的请求才能触发匹配
		if request.Status != constants.RequestStatusApproved &&
			request.Status != constants.RequestStatusProcessed {
			return fmt.Errorf("%w: 当前状态为 %q", ErrRequestNotApproved, request.Status)
		}

		requirement := matching.Requirement{
			Skills:          request.Skills(),
			ExperienceYears: request.ExperienceYears,
		}

		batchSize := s.cfg.Matching.ScanBatchSize
		now := time.Now()

		// 分批扫描带特征的候选CV并打分，逐批落库
		scanErr := s.storage.MySQL.ScanEligibleCandidates(ctx, tx, batchSize, func(features []models.CVFeature) error {
			deliveries := make([]models.Delivery, 0, len(features))

			for i := range features {
				feat := &features[i]
				summary.ScannedCount++

				result := s.engine.Score(requirement, matching.CandidateFeatures{
					KeySkills:            feat.KeySkills(),
					TotalYearsExperience: feat.TotalYearsExperience,
					ATSScore:             feat.ATSScore,
				})

				if result.Score < s.engine.Threshold() {
					continue
				}
				summary.MatchedCount++

				detailsJSON, err := json.Marshal(result.Details)
				if err != nil {
					return fmt.Errorf("序列化匹配明细失败: %w", err)
				}

				deliveries = append(deliveries, models.Delivery{
					RequestID:    requestID,
					CVID:         feat.CVID,
					MatchScore:   result.Score,
					MatchDetails: detailsJSON,
					DeliveredAt:  now,
				})
			}

			inserted, err := s.storage.MySQL.BatchUpsertDeliveries(ctx, tx, deliveries)
			if err != nil {
				return fmt.Errorf("写入交付记录失败: %w", err)
			}
			summary.DeliveredCount += inserted
			return nil
		})
		if scanErr != nil {
			return scanErr
		}

		// 状态流转与交付写入绑定在同一事务
		if err := ValidateTransition(request.Status, constants.RequestStatusDelivered); err != nil {
			return err
		}
		if err := s.storage.MySQL.UpdateCVRequestStatus(tx, requestID, constants.RequestStatusDelivered); err != nil {
			return fmt.Errorf("更新请求状态失败: %w", err)
		}
		summary.Status = constants.RequestStatusDelivered

		payload, err := models.MapToJSON(map[string]interface{}{
			"request_id":      requestID,
			"company_id":      request.CompanyID,
			"scanned_count":   summary.ScannedCount,
			"matched_count":   summary.MatchedCount,
			"delivered_count": summary.DeliveredCount,
			"delivered_at":    now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("序列化交付事件失败: %w", err)
		}

		msg := &models.OutboxMessage{
			AggregateID:      requestID,
			EventType:        constants.EventCVRequestDelivered,
			Payload:          string(payload),
			TargetExchange:   s.cfg.RabbitMQ.DeliveryExchange,
			TargetRoutingKey: s.cfg.RabbitMQ.DeliveredRoutingKey,
		}
		if err := s.storage.MySQL.CreateOutboxMessage(tx, msg); err != nil {
			return fmt.Errorf("写入outbox事件失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.storage.Redis != nil && companyID != "" {
		if err := s.storage.Redis.InvalidateCompanyRequestList(ctx, companyID); err != nil {
			s.logger.Warn().Err(err).Str("company_id", companyID).Msg("删除请求列表缓存失败")
		}
	}

	s.logger.Info().
		Str("request_id", requestID).
		Int("scanned", summary.ScannedCount).
		Int("matched", summary.MatchedCount).
		Int64("delivered", summary.DeliveredCount).
		Msg("匹配交付运行完成")

	return summary, nil
}

// ListDeliveries 列出某请求的全部交付记录。
// MinIO可用时为每条CV生成限时的预签名下载链接。
func (s *MatchingService) ListDeliveries(ctx context.Context, requestID string) ([]DeliveryView, error) {
	ctx, span := tracer.Start(ctx, "MatchingService.ListDeliveries")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	// 确认请求存在
	if _, err := s.storage.MySQL.GetCVRequestByID(s.storage.MySQL.DB().WithContext(ctx), requestID); err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("查询CV请求失败: %w", err)
	}

	deliveries, err := s.storage.MySQL.ListDeliveriesByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("查询交付记录失败: %w", err)
	}

	views := make([]DeliveryView, 0, len(deliveries))
	for i := range deliveries {
		d := &deliveries[i]
		view := DeliveryView{
			CVID:         d.CVID,
			MatchScore:   d.MatchScore,
			MatchDetails: json.RawMessage(d.MatchDetails),
			DeliveredAt:  d.DeliveredAt,
		}
		if d.CV != nil {
			view.SeekerName = d.CV.SeekerName
			view.Title = d.CV.Title

			if s.storage.MinIO != nil && d.CV.FilePathOSS != "" {
				url, err := s.storage.MinIO.GetPresignedURL(ctx, d.CV.FilePathOSS, s.storage.MinIO.GetPresignExpiry())
				if err != nil {
					// 链接生成失败不阻塞整个列表
					s.logger.Warn().Err(err).Str("cv_id", d.CVID).Msg("生成CV下载链接失败")
				} else {
					view.DownloadURL = url
				}
			}
		}
		views = append(views, view)
	}

	return views, nil
}

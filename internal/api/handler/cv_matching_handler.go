package handler

import (
	"context"

	"jobgate-go/internal/logger"
	"jobgate-go/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// MatchingHandler 匹配交付相关接口
type MatchingHandler struct {
	matchingSvc *service.MatchingService
}

// NewMatchingHandler 创建匹配处理器
func NewMatchingHandler(matchingSvc *service.MatchingService) *MatchingHandler {
	return &MatchingHandler{matchingSvc: matchingSvc}
}

// HandleTriggerMatch 管理端触发一次匹配交付运行。
// 404: 请求不存在; 400: 请求未审核通过; 409: 匹配已在运行中。
func (h *MatchingHandler) HandleTriggerMatch(ctx context.Context, c *app.RequestContext) {
	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "request_id 不能为空"})
		return
	}

	summary, err := h.matchingSvc.MatchAndDeliver(ctx, requestID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	logger.Info().
		Str("request_id", requestID).
		Int("matched", summary.MatchedCount).
		Int64("delivered", summary.DeliveredCount).
		Msg("匹配运行已完成")

	c.JSON(consts.StatusOK, utils.H{
		"message":         "匹配运行已完成",
		"delivered_count": summary.DeliveredCount,
		"summary":         summary,
	})
}

// HandleListDeliveries 列出某请求的交付记录(带限时下载链接)
func (h *MatchingHandler) HandleListDeliveries(ctx context.Context, c *app.RequestContext) {
	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "request_id 不能为空"})
		return
	}

	deliveries, err := h.matchingSvc.ListDeliveries(ctx, requestID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"deliveries": deliveries, "count": len(deliveries)})
}

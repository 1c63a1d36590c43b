package handler

import (
	"context"

	"jobgate-go/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// FeatureHandler CV特征回写接口，供内部AI分析服务调用
type FeatureHandler struct {
	featureSvc *service.FeatureService
}

// NewFeatureHandler 创建特征处理器
func NewFeatureHandler(featureSvc *service.FeatureService) *FeatureHandler {
	return &FeatureHandler{featureSvc: featureSvc}
}

// HandleUpsertFeatures 整体覆写某CV的结构化特征
func (h *FeatureHandler) HandleUpsertFeatures(ctx context.Context, c *app.RequestContext) {
	cvID := c.Param("cv_id")
	if cvID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "cv_id 不能为空"})
		return
	}

	var input service.UpsertFeaturesInput
	if err := c.BindJSON(&input); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}

	feature, err := h.featureSvc.UpsertFeatures(ctx, cvID, &input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, feature)
}

// HandleGetFeatures 查询某CV当前的特征记录
func (h *FeatureHandler) HandleGetFeatures(ctx context.Context, c *app.RequestContext) {
	cvID := c.Param("cv_id")
	if cvID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "cv_id 不能为空"})
		return
	}

	feature, err := h.featureSvc.GetFeatures(ctx, cvID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, feature)
}

package handler

import (
	"context"
	"errors"

	"jobgate-go/internal/api/middleware"
	"jobgate-go/internal/logger"
	"jobgate-go/internal/service"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// CVRequestHandler CV请求相关接口
type CVRequestHandler struct {
	requestSvc *service.CVRequestService
}

// NewCVRequestHandler 创建CV请求处理器
func NewCVRequestHandler(requestSvc *service.CVRequestService) *CVRequestHandler {
	return &CVRequestHandler{requestSvc: requestSvc}
}

// respondServiceError 将服务层错误映射为HTTP响应
func respondServiceError(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, service.ErrCompanyNotFound),
		errors.Is(err, service.ErrCVNotFound),
		errors.Is(err, service.ErrFeatureNotFound):
		c.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrRequestNotApproved):
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
	case errors.Is(err, service.ErrMatchingInProgress):
		c.JSON(consts.StatusConflict, utils.H{"error": err.Error()})
	default:
		logger.Error().Err(err).Msg("请求处理失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "internal server error"})
	}
}

// HandleAdminListRequests 管理端列出全部CV请求
func (h *CVRequestHandler) HandleAdminListRequests(ctx context.Context, c *app.RequestContext) {
	requests, err := h.requestSvc.ListAllRequests(ctx)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"requests": requests, "count": len(requests)})
}

// HandleAdminGetRequest 管理端查看单条CV请求，附带已交付数量
func (h *CVRequestHandler) HandleAdminGetRequest(ctx context.Context, c *app.RequestContext) {
	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "request_id 不能为空"})
		return
	}

	request, err := h.requestSvc.GetRequestDetail(ctx, requestID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, request)
}

// UpdateStatusRequest 管理端状态更新请求体
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// HandleAdminUpdateStatus 管理端更新CV请求状态
func (h *CVRequestHandler) HandleAdminUpdateStatus(ctx context.Context, c *app.RequestContext) {
	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "request_id 不能为空"})
		return
	}

	var req UpdateStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}
	if req.Status == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "status 不能为空"})
		return
	}

	updated, err := h.requestSvc.UpdateStatus(ctx, requestID, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, updated)
}

// HandleCompanyCreateRequest 公司侧创建CV请求
func (h *CVRequestHandler) HandleCompanyCreateRequest(ctx context.Context, c *app.RequestContext) {
	companyID, ok := middleware.CompanyID(c)
	if !ok {
		c.JSON(consts.StatusForbidden, utils.H{"error": "缺少公司身份"})
		return
	}

	var input service.CreateCVRequestInput
	if err := c.BindJSON(&input); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}

	request, err := h.requestSvc.CreateRequest(ctx, companyID, &input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, request)
}

// HandleCompanyListRequests 公司侧列出自己的CV请求
func (h *CVRequestHandler) HandleCompanyListRequests(ctx context.Context, c *app.RequestContext) {
	companyID, ok := middleware.CompanyID(c)
	if !ok {
		c.JSON(consts.StatusForbidden, utils.H{"error": "缺少公司身份"})
		return
	}

	requests, err := h.requestSvc.ListCompanyRequests(ctx, companyID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"requests": requests, "count": len(requests)})
}

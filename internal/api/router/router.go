package router

import (
	"context"

	"jobgate-go/internal/api/handler"
	"jobgate-go/internal/api/middleware"
	"jobgate-go/internal/config"
	"jobgate-go/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(
	h *server.Hertz,
	cfg *config.Config,
	requestHandler *handler.CVRequestHandler,
	matchingHandler *handler.MatchingHandler,
	featureHandler *handler.FeatureHandler,
) {
	// 健康检查不需要鉴权
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1", middleware.APIKeyAuth(&cfg.Auth))

	// 管理端: 请求审核与匹配触发
	admin := api.Group("/admin", middleware.RequireRole(constants.RoleAdmin))
	admin.GET("/cv-requests", requestHandler.HandleAdminListRequests)
	admin.GET("/cv-requests/:request_id", requestHandler.HandleAdminGetRequest)
	admin.PUT("/cv-requests/:request_id/status", requestHandler.HandleAdminUpdateStatus)
	admin.POST("/cv-matching/match/:request_id", matchingHandler.HandleTriggerMatch)
	admin.GET("/cv-requests/:request_id/deliveries", matchingHandler.HandleListDeliveries)

	// 公司端: 创建与查看自己的请求
	company := api.Group("/company", middleware.RequireRole(constants.RoleCompany))
	company.POST("/cv-requests", requestHandler.HandleCompanyCreateRequest)
	company.GET("/cv-requests", requestHandler.HandleCompanyListRequests)

	// 内部服务: AI分析服务回写CV特征
	internal := api.Group("/internal", middleware.RequireRole(constants.RoleService))
	internal.PUT("/cvs/:cv_id/features", featureHandler.HandleUpsertFeatures)
	internal.GET("/cvs/:cv_id/features", featureHandler.HandleGetFeatures)
}

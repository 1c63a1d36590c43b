package middleware

import (
	"context"

	"jobgate-go/internal/config"
	"jobgate-go/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// APIKeyAuth 基于 X-API-Key 请求头的鉴权中间件。
// Key解析出的角色(及公司身份)写入请求上下文，供后续的角色检查和handler使用。
func APIKeyAuth(cfg *config.AuthConfig) app.HandlerFunc {
	adminKeys := make(map[string]bool, len(cfg.AdminKeys))
	for _, k := range cfg.AdminKeys {
		adminKeys[k] = true
	}
	serviceKeys := make(map[string]bool, len(cfg.ServiceKeys))
	for _, k := range cfg.ServiceKeys {
		serviceKeys[k] = true
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			switch {
			case adminKeys[key]:
				c.Set(constants.CtxKeyRole, constants.RoleAdmin)
			case serviceKeys[key]:
				c.Set(constants.CtxKeyRole, constants.RoleService)
			default:
				companyID, ok := cfg.CompanyKeys[key]
				if !ok {
					return false, nil
				}
				c.Set(constants.CtxKeyRole, constants.RoleCompany)
				c.Set(constants.CtxKeyCompanyID, companyID)
			}
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.JSON(consts.StatusUnauthorized, utils.H{"error": "无效或缺失的API Key"})
			c.Abort()
		}),
	)
}

// RequireRole 限制路由组只允许指定角色访问
func RequireRole(role string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		got, ok := c.Get(constants.CtxKeyRole)
		if !ok || got != role {
			c.JSON(consts.StatusForbidden, utils.H{"error": "没有访问该资源的权限"})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

// CompanyID 从请求上下文取出鉴权中间件写入的公司ID
func CompanyID(c *app.RequestContext) (string, bool) {
	v, ok := c.Get(constants.CtxKeyCompanyID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

package constants

// CVRequestStatus 公司CV请求的生命周期状态
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusProcessed = "processed"
	RequestStatusDelivered = "delivered"
)

// CompanyStatus 公司审批状态
const (
	CompanyStatusPending  = "PENDING"
	CompanyStatusApproved = "APPROVED"
	CompanyStatusRejected = "REJECTED"
)

// Outbox事件类型
const (
	EventCVRequestDelivered     = "cv_request.delivered"
	EventCVRequestStatusChanged = "cv_request.status_changed"
)

// 角色标识，由鉴权中间件写入请求上下文
const (
	RoleAdmin   = "admin"
	RoleCompany = "company"
	RoleService = "service"

	CtxKeyRole      = "role"
	CtxKeyCompanyID = "company_id"
)

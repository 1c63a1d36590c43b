package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "jobgate"

	// MatchModulePrefix 匹配模块
	MatchModulePrefix = "match"
	// RequestModulePrefix CV请求模块
	RequestModulePrefix = "cv_request"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityList 列表缓存实体
	EntityList = "list"

	// KeyMatchLock 匹配运行的分布式锁 (STRING)
	// 格式: jobgate:match:lock:{requestID}
	KeyMatchLock = AppPrefix + ":" + MatchModulePrefix + ":" + EntityLock + ":%s"

	// KeyCompanyRequestList 公司请求列表缓存 (STRING, JSON)
	// 格式: jobgate:cv_request:list:{companyID}
	KeyCompanyRequestList = AppPrefix + ":" + RequestModulePrefix + ":" + EntityList + ":%s"
)

package response

// 通用业务状态码，领域错误码定义在 pkg/apperr，两者共用同一编号空间
const (
	CodeSuccess = 0
	CodeError   = 1

	// 认证 100xx
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)

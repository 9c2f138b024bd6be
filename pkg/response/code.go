package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 商品/套餐模块错误 100xx
	ErrProductNotFound   = 10001
	ErrPlanNotFound      = 10002
	ErrPriceMismatch     = 10003
	ErrInsufficientStock = 10004

	// 折扣模块错误 200xx
	ErrCodeNotFound      = 20001
	ErrCodeExpired       = 20002
	ErrBelowMinimumOrder = 20003
	ErrUsageLimitReached = 20004
	ErrDiscountMismatch  = 20005
	ErrCodeTaken         = 20006

	// 订单模块错误 300xx
	ErrAmountMismatch = 30001
	ErrGatewayFailure = 30002
	ErrUnverified     = 30003

	// Webhook 模块错误 400xx
	ErrSignatureInvalid = 40001

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)

package gateway

import "context"

// OrderHandle 网关侧订单句柄
type OrderHandle struct {
	ID       string
	Amount   float64
	Currency string
}

// Gateway 支付网关的创建订单能力
// 金额一律使用服务端核算值，调用方负责把事务提交推迟到本调用成功之后
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (*OrderHandle, error)
}

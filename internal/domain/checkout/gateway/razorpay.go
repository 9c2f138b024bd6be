package gateway

import (
	"context"
	"fmt"
	"math"
	"time"

	"course_checkout/internal/pkg/config"

	razorpay "github.com/razorpay/razorpay-go"
)

type RazorpayGateway struct {
	client  *razorpay.Client
	timeout time.Duration
}

func NewRazorpayGateway() *RazorpayGateway {
	cfg := config.GlobalConfig.Razorpay
	return &RazorpayGateway{
		client:  razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

type orderResult struct {
	order map[string]interface{}
	err   error
}

// CreateOrder 调用 Razorpay Orders API
// SDK 本身不接收 context，这里在外层套一个有界超时；
// 超时按失败处理，调用方回滚事务，不会留下已创建的本地状态
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (*OrderHandle, error) {
	data := map[string]interface{}{
		"amount":   int64(math.Round(amount * 100)), // 以最小货币单位（paise）计
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan orderResult, 1)
	go func() {
		order, err := g.client.Order.Create(data, nil)
		ch <- orderResult{order: order, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("gateway order creation timed out: %w", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("gateway order creation failed: %w", res.err)
		}
		id, _ := res.order["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("gateway returned no order id")
		}
		return &OrderHandle{ID: id, Amount: amount, Currency: currency}, nil
	}
}

package handler

import (
	"errors"
	"net/http"

	"course_checkout/internal/domain/checkout/service"
	discountService "course_checkout/internal/domain/discount/service"
	"course_checkout/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

// CreateOrder 创建网关订单
// 校验失败一律给出可纠正的具体原因；库存不足用 409 与普通参数错误区分
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	resp, err := h.service.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, resp)
}

func (h *OrderHandler) writeError(c *gin.Context, err error) {
	var (
		priceErr   *service.PriceMismatchError
		stockErr   *service.InsufficientStockError
		gatewayErr *service.GatewayError
	)

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		response.Error(c, http.StatusNotFound, response.ErrProductNotFound, err.Error())
	case errors.Is(err, service.ErrPlanUnverified):
		response.Error(c, http.StatusNotFound, response.ErrPlanNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.As(err, &priceErr):
		response.Error(c, http.StatusBadRequest, response.ErrPriceMismatch, err.Error())
	case errors.As(err, &stockErr):
		response.Error(c, http.StatusConflict, response.ErrInsufficientStock, err.Error())
	case errors.Is(err, service.ErrAmountMismatch):
		response.Error(c, http.StatusBadRequest, response.ErrAmountMismatch, err.Error())
	case errors.Is(err, discountService.ErrBothCodesSupplied):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, discountService.ErrCodeNotFound),
		errors.Is(err, discountService.ErrCodeInactive):
		response.Error(c, http.StatusBadRequest, response.ErrCodeNotFound, err.Error())
	case errors.Is(err, discountService.ErrCodeExpired):
		response.Error(c, http.StatusBadRequest, response.ErrCodeExpired, err.Error())
	case errors.Is(err, discountService.ErrBelowMinimumOrder):
		response.Error(c, http.StatusBadRequest, response.ErrBelowMinimumOrder, err.Error())
	case errors.Is(err, discountService.ErrUsageLimitReached):
		response.Error(c, http.StatusBadRequest, response.ErrUsageLimitReached, err.Error())
	case errors.Is(err, discountService.ErrDiscountMismatch):
		response.Error(c, http.StatusBadRequest, response.ErrDiscountMismatch, err.Error())
	case errors.Is(err, discountService.ErrCodeConflict):
		response.Error(c, http.StatusConflict, response.ErrCodeTaken, err.Error())
	case errors.As(err, &gatewayErr):
		response.Error(c, http.StatusInternalServerError, response.ErrGatewayFailure, "payment gateway unavailable, please retry")
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "internal error")
	}
}

package handler

import (
	"errors"
	"net/http"

	"course_checkout/internal/domain/discount/model"
	"course_checkout/internal/domain/discount/repository"
	"course_checkout/pkg/response"

	"github.com/gin-gonic/gin"
)

// CodeHandler 折扣码录入
// 鉴权由部署层的内网隔离保证，这里只做数据校验
type CodeHandler struct {
	repo repository.DiscountRepository
}

func NewCodeHandler(repo repository.DiscountRepository) *CodeHandler {
	return &CodeHandler{repo: repo}
}

func validDiscountType(t string) bool {
	return t == model.DiscountTypePercentage || t == model.DiscountTypeFixed
}

// CreateReferralCode 创建自助推荐码
func (h *CodeHandler) CreateReferralCode(c *gin.Context) {
	var code model.ReferralCode
	if err := c.ShouldBindJSON(&code); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if code.Code == "" || !validDiscountType(code.DiscountType) || code.DiscountValue <= 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "code, discountType and positive discountValue are required")
		return
	}

	if err := h.repo.CreateReferralCode(&code); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, code)
}

// CreatePartnerCode 创建合作方推荐码
func (h *CodeHandler) CreatePartnerCode(c *gin.Context) {
	var code model.PartnerReferralCode
	if err := c.ShouldBindJSON(&code); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if code.Code == "" || code.PartnerName == "" || !validDiscountType(code.DiscountType) || code.DiscountValue <= 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "code, partnerName, discountType and positive discountValue are required")
		return
	}

	if err := h.repo.CreatePartnerCode(&code); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, code)
}

// CreatePromoPrice 创建套餐促销价规则
func (h *CodeHandler) CreatePromoPrice(c *gin.Context) {
	var promo model.PromoPrice
	if err := c.ShouldBindJSON(&promo); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if promo.PromoAmount <= 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "positive promoAmount is required")
		return
	}
	// 三种匹配方式至少配置一种，否则规则永远命中不了
	if promo.Code == "" && promo.PlanID == nil && (promo.PriceMin == nil || promo.PriceMax == nil || promo.NamePattern == "") {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "one of code, planId, or priceMin+priceMax+namePattern is required")
		return
	}

	if err := h.repo.CreatePromoPrice(&promo); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, promo)
}

func (h *CodeHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrCodeTaken) {
		response.Error(c, http.StatusConflict, response.ErrCodeTaken, err.Error())
		return
	}
	response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "internal error")
}

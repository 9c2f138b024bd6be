package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"course_checkout/internal/domain/discount/model"
	"course_checkout/internal/domain/discount/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// MockDiscountRepository is a mock of DiscountRepository
type MockDiscountRepository struct {
	mock.Mock
}

func (m *MockDiscountRepository) GetReferralByCode(tx *gorm.DB, code string) (*model.ReferralCode, error) {
	args := m.Called(tx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockDiscountRepository) GetPartnerByCode(tx *gorm.DB, code string) (*model.PartnerReferralCode, error) {
	args := m.Called(tx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PartnerReferralCode), args.Error(1)
}

func (m *MockDiscountRepository) GetPromoByPlanID(planID string) (*model.PromoPrice, error) {
	args := m.Called(planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoPrice), args.Error(1)
}

func (m *MockDiscountRepository) GetPromoByPriceAndPattern(price float64, planName string) (*model.PromoPrice, error) {
	args := m.Called(price, planName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoPrice), args.Error(1)
}

func (m *MockDiscountRepository) GetPromoByCode(code string) (*model.PromoPrice, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoPrice), args.Error(1)
}

func (m *MockDiscountRepository) CodeInUse(code string) (bool, error) {
	args := m.Called(code)
	return args.Bool(0), args.Error(1)
}

func (m *MockDiscountRepository) CreateReferralCode(code *model.ReferralCode) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockDiscountRepository) CreatePartnerCode(code *model.PartnerReferralCode) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockDiscountRepository) CreatePromoPrice(promo *model.PromoPrice) error {
	args := m.Called(promo)
	return args.Error(0)
}

func (m *MockDiscountRepository) IncrementReferralUses(tx *gorm.DB, id string) (bool, error) {
	args := m.Called(tx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDiscountRepository) IncrementPartnerUses(tx *gorm.DB, id string) (bool, error) {
	args := m.Called(tx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDiscountRepository) IncrementPromoUses(tx *gorm.DB, id string) (bool, error) {
	args := m.Called(tx, id)
	return args.Bool(0), args.Error(1)
}

func perform(repo repository.DiscountRepository, path string, payload interface{}) *httptest.ResponseRecorder {
	h := NewCodeHandler(repo)
	router := gin.New()
	router.POST("/api/admin/referral-codes", h.CreateReferralCode)
	router.POST("/api/admin/partner-codes", h.CreatePartnerCode)
	router.POST("/api/admin/promo-prices", h.CreatePromoPrice)

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateReferralCode(t *testing.T) {
	t.Run("Valid code is created", func(t *testing.T) {
		repo := new(MockDiscountRepository)
		repo.On("CreateReferralCode", mock.MatchedBy(func(c *model.ReferralCode) bool {
			return c.Code == "TEN" && c.DiscountType == model.DiscountTypePercentage
		})).Return(nil)

		w := perform(repo, "/api/admin/referral-codes", gin.H{
			"code": "TEN", "discountType": "percentage", "discountValue": 10,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("Code colliding with another table gets 409", func(t *testing.T) {
		repo := new(MockDiscountRepository)
		repo.On("CreateReferralCode", mock.Anything).Return(repository.ErrCodeTaken)

		w := perform(repo, "/api/admin/referral-codes", gin.H{
			"code": "TEN", "discountType": "percentage", "discountValue": 10,
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Unknown discount type is rejected", func(t *testing.T) {
		repo := new(MockDiscountRepository)

		w := perform(repo, "/api/admin/referral-codes", gin.H{
			"code": "TEN", "discountType": "bogus", "discountValue": 10,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "CreateReferralCode")
	})
}

func TestCreatePartnerCode(t *testing.T) {
	t.Run("Partner name is required", func(t *testing.T) {
		repo := new(MockDiscountRepository)

		w := perform(repo, "/api/admin/partner-codes", gin.H{
			"code": "PARTNER10", "discountType": "fixed", "discountValue": 500,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "CreatePartnerCode")
	})
}

func TestCreatePromoPrice(t *testing.T) {
	t.Run("Rule with no match mode is rejected", func(t *testing.T) {
		repo := new(MockDiscountRepository)

		w := perform(repo, "/api/admin/promo-prices", gin.H{"promoAmount": 7999})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "CreatePromoPrice")
	})

	t.Run("Explicit code rule is created", func(t *testing.T) {
		repo := new(MockDiscountRepository)
		repo.On("CreatePromoPrice", mock.MatchedBy(func(p *model.PromoPrice) bool {
			return p.Code == "EARLYBIRD" && p.PromoAmount == 7999
		})).Return(nil)

		w := perform(repo, "/api/admin/promo-prices", gin.H{
			"code": "EARLYBIRD", "promoAmount": 7999,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})
}

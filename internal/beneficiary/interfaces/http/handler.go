// 包 http 收款人模块的 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/digitalbank/internal/beneficiary/application"
	"github.com/wyfcoding/digitalbank/internal/beneficiary/domain"
	"github.com/wyfcoding/digitalbank/pkg/middleware"
	"github.com/wyfcoding/digitalbank/pkg/response"
)

// BeneficiaryHandler 收款人 HTTP 处理器
type BeneficiaryHandler struct {
	app *application.BeneficiaryService
}

// NewBeneficiaryHandler 创建收款人 HTTP 处理器
func NewBeneficiaryHandler(app *application.BeneficiaryService) *BeneficiaryHandler {
	return &BeneficiaryHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *BeneficiaryHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/beneficiaries")
	{
		api.POST("", h.Add)
		api.GET("", h.List)
		api.GET("/:id", h.Get)
		api.PUT("/:id", h.Update)
		api.DELETE("/:id", h.Remove)
	}
}

type addBeneficiaryRequest struct {
	Nickname      string `json:"nickname"`
	BankName      string `json:"bank_name" binding:"required"`
	BankCode      string `json:"bank_code" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
	Currency      string `json:"currency"`
	Country       string `json:"country"`
}

// Add 新增收款人
func (h *BeneficiaryHandler) Add(c *gin.Context) {
	var req addBeneficiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.app.Add(c.Request.Context(), application.AddBeneficiaryCommand{
		UserID:        middleware.CallerID(c),
		Nickname:      req.Nickname,
		BankName:      req.BankName,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		Currency:      req.Currency,
		Country:       req.Country,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, b)
}

// List 查询当前用户的全部收款人
func (h *BeneficiaryHandler) List(c *gin.Context) {
	list, err := h.app.List(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, list)
}

// Get 查询收款人
func (h *BeneficiaryHandler) Get(c *gin.Context) {
	b, err := h.app.Get(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, b)
}

type updateBeneficiaryRequest struct {
	Nickname   string `json:"nickname"`
	IsFavorite bool   `json:"is_favorite"`
}

// Update 修改收款人昵称与常用标记
func (h *BeneficiaryHandler) Update(c *gin.Context) {
	var req updateBeneficiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.app.Update(c.Request.Context(), application.UpdateBeneficiaryCommand{
		UserID:        middleware.CallerID(c),
		BeneficiaryID: c.Param("id"),
		Nickname:      req.Nickname,
		IsFavorite:    req.IsFavorite,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, b)
}

// Remove 删除收款人
func (h *BeneficiaryHandler) Remove(c *gin.Context) {
	if err := h.app.Remove(c.Request.Context(), middleware.CallerID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *BeneficiaryHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBeneficiaryNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateBeneficiary):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		response.Error(c, http.StatusForbidden, err.Error())
	default:
		response.InternalError(c, err)
	}
}

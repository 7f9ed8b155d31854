// 包 http 账户模块的 HTTP 接口
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/digitalbank/internal/account/application"
	"github.com/wyfcoding/digitalbank/internal/account/domain"
	otpdomain "github.com/wyfcoding/digitalbank/internal/otp/domain"
	"github.com/wyfcoding/digitalbank/pkg/middleware"
	"github.com/wyfcoding/digitalbank/pkg/response"
)

// AccountHandler 账户 HTTP 处理器
type AccountHandler struct {
	app *application.AccountService
}

// NewAccountHandler 创建账户 HTTP 处理器
func NewAccountHandler(app *application.AccountService) *AccountHandler {
	return &AccountHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *AccountHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/accounts")
	{
		api.POST("", h.OpenAccount)
		api.GET("/me", h.GetMyAccount)
		api.GET("/:id", h.GetAccount)
		api.GET("", h.ListAccounts)
		api.POST("/:id/activate", h.Activate)
		api.POST("/:id/suspend", h.Suspend)
		api.POST("/:id/freeze", h.Freeze)
		api.POST("/:id/unfreeze", h.Unfreeze)
		api.POST("/:id/close", h.Close)
		api.PUT("/pin", h.ChangePin)
	}
}

type openAccountRequest struct {
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"`
	Pin         string `json:"pin" binding:"required,min=4,max=12"`
}

// OpenAccount 开户
func (h *AccountHandler) OpenAccount(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.app.OpenAccount(c.Request.Context(), application.OpenAccountCommand{
		UserID:      middleware.CallerID(c),
		AccountType: req.AccountType,
		Currency:    req.Currency,
		Pin:         req.Pin,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, account)
}

// GetMyAccount 查询当前用户的账户
func (h *AccountHandler) GetMyAccount(c *gin.Context) {
	account, err := h.app.GetByUser(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, account)
}

// GetAccount 按账户 ID 查询
func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.app.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, account)
}

// ListAccounts 分页列出账户
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	limit, offset, ok := response.Pagination(c)
	if !ok {
		return
	}
	accounts, total, err := h.app.ListAccounts(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.SuccessPage(c, accounts, total, limit, offset)
}

// Activate 激活账户
func (h *AccountHandler) Activate(c *gin.Context) { h.transition(c, h.app.Activate) }

// Suspend 暂停账户
func (h *AccountHandler) Suspend(c *gin.Context) { h.transition(c, h.app.Suspend) }

// Freeze 冻结账户
func (h *AccountHandler) Freeze(c *gin.Context) { h.transition(c, h.app.Freeze) }

// Unfreeze 解除限制
func (h *AccountHandler) Unfreeze(c *gin.Context) { h.transition(c, h.app.Unfreeze) }

// Close 销户
func (h *AccountHandler) Close(c *gin.Context) { h.transition(c, h.app.Close) }

func (h *AccountHandler) transition(c *gin.Context, fn func(ctx context.Context, accountID string) error) {
	accountID := c.Param("id")
	if accountID == "" {
		response.Error(c, http.StatusBadRequest, "account id is required")
		return
	}
	if err := fn(c.Request.Context(), accountID); err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, gin.H{"account_id": accountID})
}

type changePinRequest struct {
	NewPin string `json:"new_pin" binding:"required,min=4,max=12"`
	Otp    string `json:"otp" binding:"required"`
}

// ChangePin 修改交易密码
func (h *AccountHandler) ChangePin(c *gin.Context) {
	var req changePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.app.ChangePin(c.Request.Context(), application.ChangePinCommand{
		UserID: middleware.CallerID(c),
		NewPin: req.NewPin,
		Otp:    req.Otp,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, gin.H{"changed": true})
}

func (h *AccountHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAccountNumberTaken):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrAccountFlagged):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, otpdomain.ErrCodeInvalid),
		errors.Is(err, otpdomain.ErrCodeExpired),
		errors.Is(err, otpdomain.ErrCodeUsed):
		response.Error(c, http.StatusUnauthorized, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// 包 http 交易模块的 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	"github.com/wyfcoding/digitalbank/internal/transaction/application"
	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/pkg/middleware"
	"github.com/wyfcoding/digitalbank/pkg/response"
)

// TransactionHandler 交易 HTTP 处理器
type TransactionHandler struct {
	app *application.TransactionService
}

// NewTransactionHandler 创建交易 HTTP 处理器
func NewTransactionHandler(app *application.TransactionService) *TransactionHandler {
	return &TransactionHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *TransactionHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/transactions")
	{
		api.POST("/deposit", h.Deposit)
		api.POST("/withdraw", h.Withdraw)
		api.GET("/stats", h.Stats)
		api.GET("/reference/:ref", h.GetByReference)
		api.GET("/:id", h.Get)
		api.GET("", h.List)
	}
}

type moveFundsRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func (r moveFundsRequest) amount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return decimal.Zero, errors.New("invalid amount")
	}
	return amount, nil
}

// Deposit 入金
func (h *TransactionHandler) Deposit(c *gin.Context) {
	var req moveFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := req.amount()
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := h.app.Deposit(c.Request.Context(), application.DepositCommand{
		UserID:      middleware.CallerID(c),
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, txn)
}

// Withdraw 出金
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	var req moveFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := req.amount()
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := h.app.Withdraw(c.Request.Context(), application.WithdrawCommand{
		UserID:      middleware.CallerID(c),
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, txn)
}

// Get 按交易 ID 查询
func (h *TransactionHandler) Get(c *gin.Context) {
	txn, err := h.app.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, txn)
}

// GetByReference 按引用号查询
func (h *TransactionHandler) GetByReference(c *gin.Context) {
	txn, err := h.app.GetByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, txn)
}

// List 分页查询当前用户的交易
func (h *TransactionHandler) List(c *gin.Context) {
	limit, offset, ok := response.Pagination(c)
	if !ok {
		return
	}
	txns, total, err := h.app.ListForUser(c.Request.Context(), middleware.CallerID(c), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.SuccessPage(c, txns, total, limit, offset)
}

// Stats 查询当前用户的交易统计
func (h *TransactionHandler) Stats(c *gin.Context) {
	stats, err := h.app.StatsForUser(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *TransactionHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, accountdomain.ErrAccountFlagged),
		errors.Is(err, accountdomain.ErrAccountNotActive):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, accountdomain.ErrInsufficientFunds):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrSettlementConflict),
		errors.Is(err, domain.ErrDuplicateReference):
		response.Error(c, http.StatusConflict, err.Error())
	default:
		response.InternalError(c, err)
	}
}

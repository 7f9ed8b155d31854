// 包 http 转账模块的 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	txdomain "github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/internal/transfer/application"
	"github.com/wyfcoding/digitalbank/internal/transfer/domain"
	"github.com/wyfcoding/digitalbank/pkg/middleware"
	"github.com/wyfcoding/digitalbank/pkg/response"
)

// TransferHandler 转账 HTTP 处理器
type TransferHandler struct {
	app *application.TransferOrchestrator
}

// NewTransferHandler 创建转账 HTTP 处理器
func NewTransferHandler(app *application.TransferOrchestrator) *TransferHandler {
	return &TransferHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *TransferHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/transfers")
	{
		api.POST("", h.Execute)
		api.GET("/stats", h.Stats)
		api.GET("/reference/:ref", h.GetByReference)
		api.GET("/:id", h.Get)
		api.GET("", h.List)
	}
}

type transferRequest struct {
	Amount string `json:"amount" binding:"required"`
	// Fee 可选。缺省时由编排器按配置费率计算
	Fee             string             `json:"fee"`
	Type            string             `json:"type" binding:"required"`
	Destination     domain.Destination `json:"destination"`
	Description     string             `json:"description"`
	TransactionPin  string             `json:"transaction_pin" binding:"required"`
	OtpCode         string             `json:"otp_code" binding:"required"`
	SaveBeneficiary bool               `json:"save_beneficiary"`
}

// Execute 发起转账
func (h *TransferHandler) Execute(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid amount")
		return
	}
	var fee *decimal.Decimal
	if req.Fee != "" {
		parsed, err := decimal.NewFromString(req.Fee)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid fee")
			return
		}
		fee = &parsed
	}

	transfer, err := h.app.Execute(c.Request.Context(), application.TransferCommand{
		UserID:          middleware.CallerID(c),
		Amount:          amount,
		Fee:             fee,
		Type:            domain.TransferType(req.Type),
		Destination:     req.Destination,
		Description:     req.Description,
		TransactionPin:  req.TransactionPin,
		OtpCode:         req.OtpCode,
		SaveBeneficiary: req.SaveBeneficiary,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, transfer)
}

// Get 按转账单 ID 查询
func (h *TransferHandler) Get(c *gin.Context) {
	transfer, err := h.app.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, transfer)
}

// GetByReference 按参考号查询
func (h *TransferHandler) GetByReference(c *gin.Context) {
	transfer, err := h.app.GetByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, transfer)
}

// List 分页查询当前用户的转账单
func (h *TransferHandler) List(c *gin.Context) {
	limit, offset, ok := response.Pagination(c)
	if !ok {
		return
	}
	transfers, total, err := h.app.ListForUser(c.Request.Context(), middleware.CallerID(c), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.SuccessPage(c, transfers, total, limit, offset)
}

// Stats 查询当前用户的转账统计
func (h *TransferHandler) Stats(c *gin.Context) {
	stats, err := h.app.StatsForUser(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *TransferHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAuthorization):
		response.Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrUnsupportedRail),
		errors.Is(err, domain.ErrInvalidFee),
		errors.Is(err, txdomain.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, accountdomain.ErrAccountFlagged),
		errors.Is(err, accountdomain.ErrAccountNotActive):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, accountdomain.ErrInsufficientFunds):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, txdomain.ErrSettlementConflict):
		response.Error(c, http.StatusConflict, err.Error())
	default:
		response.InternalError(c, err)
	}
}

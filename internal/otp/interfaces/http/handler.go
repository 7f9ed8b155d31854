// 包 http OTP 模块的 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/digitalbank/internal/otp/application"
	"github.com/wyfcoding/digitalbank/internal/otp/domain"
	"github.com/wyfcoding/digitalbank/pkg/middleware"
	"github.com/wyfcoding/digitalbank/pkg/response"
)

// OtpHandler OTP HTTP 处理器
type OtpHandler struct {
	app *application.OtpService
}

// NewOtpHandler 创建 OTP HTTP 处理器
func NewOtpHandler(app *application.OtpService) *OtpHandler {
	return &OtpHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *OtpHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/otp")
	{
		api.POST("/issue", h.Issue)
	}
}

type issueRequest struct {
	Purpose string `json:"purpose" binding:"required"`
}

// Issue 签发验证码。验证码本身只经通知渠道送达，不在响应中返回。
func (h *OtpHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	otp, err := h.app.Issue(c.Request.Context(), middleware.CallerID(c), req.Purpose)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"otp_id":     otp.OtpID,
		"purpose":    otp.Purpose,
		"expires_at": otp.ExpiresAt,
	})
}

func (h *OtpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownPurpose):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrIssueThrottled):
		response.Error(c, http.StatusTooManyRequests, err.Error())
	default:
		response.InternalError(c, err)
	}
}

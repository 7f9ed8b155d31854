// 包 response 提供统一的 HTTP 响应结构
package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/digitalbank/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	// 业务码，0 表示成功
	Code int `json:"code"`
	// 提示信息
	Message string `json:"message"`
	// 业务数据
	Data any `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 返回错误响应，HTTP 状态码即业务码
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Code:    status,
		Message: message,
	})
}

// InternalError 返回 500。错误明细只进日志，不回显给客户端。
func InternalError(c *gin.Context, err error) {
	logger.Error(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	Error(c, http.StatusInternalServerError, "internal error")
}

// Page 分页数据结构
type Page struct {
	// 列表数据
	Items any `json:"items"`
	// 总条数
	Total int64 `json:"total"`
	// 单页条数
	Limit int `json:"limit"`
	// 偏移量
	Offset int `json:"offset"`
}

// SuccessPage 返回分页成功响应
func SuccessPage(c *gin.Context, items any, total int64, limit, offset int) {
	Success(c, Page{Items: items, Total: total, Limit: limit, Offset: offset})
}

// Pagination 解析 limit/offset 查询参数，非法时直接响应 400
func Pagination(c *gin.Context) (limit, offset int, ok bool) {
	var err error
	limit, offset = 20, 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			Error(c, http.StatusBadRequest, "invalid limit")
			return 0, 0, false
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			Error(c, http.StatusBadRequest, "invalid offset")
			return 0, 0, false
		}
	}
	return limit, offset, true
}

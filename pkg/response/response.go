package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

// Response is the JSON envelope for non-federation endpoints.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Message: msg})
}

func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: http.StatusUnauthorized, Message: "unauthorized"})
}

func NotFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{Code: http.StatusNotFound, Message: msg})
}

func Conflict(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusConflict, Response{Code: http.StatusConflict, Message: msg})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: http.StatusTooManyRequests, Message: "rate limited"})
}

func ServiceUnavailable(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{Code: http.StatusServiceUnavailable, Message: msg})
}

// InternalError logs err and hides it from the client.
func InternalError(c *gin.Context, err error) {
	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Message: "internal error"})
}

func PayloadTooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, Response{Code: http.StatusRequestEntityTooLarge, Message: "payload too large"})
}

package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request correlation id.
const RequestIDKey = "request_id"

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

// Fail writes the error envelope. Only the code, a short message and the
// request id leave the process; details belong in the server log.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":       code,
		"message":    msg,
		"data":       nil,
		"request_id": RequestID(c),
	})
}

func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/common"
)

// Recovery turns panics into the standard 500 envelope. The stack is
// logged with the request id and never sent to the client.
func Recovery(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"request_id": common.RequestID(c),
					"path":       c.FullPath(),
					"panic":      r,
					"stack":      string(debug.Stack()),
				}).Error("panic recovered")
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

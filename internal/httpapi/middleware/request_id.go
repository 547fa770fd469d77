package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-tutor/internal/common"
)

const RequestIDHeader = "X-Request-Id"

// RequestID tags every request with a correlation id. An inbound
// X-Request-Id is kept if it looks sane, otherwise a ULID is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 64 {
			if id, err := common.NewULID(); err == nil {
				rid = id
			}
		}
		c.Set(common.RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/common"
	"github.com/suPer8Hu/ai-tutor/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-tutor/internal/httpapi/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(h *handlers.Handler, jwtSecret string, log *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(otelgin.Middleware(h.Cfg.ServiceName))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(jwtSecret))

	// chat
	authGroup.POST("/chat-stream", h.ChatStream)
	authGroup.POST("/api/chat", h.ChatStream)

	// generation
	authGroup.POST("/generate-content", h.GenerateContent)
	authGroup.POST("/api/generate-content", h.GenerateContent)
	authGroup.POST("/generate-content/jobs", h.CreateGenerationJob)
	authGroup.GET("/generate-content/jobs/:job_id", h.GetGenerationJob)

	// contents
	authGroup.GET("/contents", h.ListContents)
	authGroup.GET("/contents/:id", h.GetContent)
	authGroup.DELETE("/contents/:id", h.DeleteContent)
	authGroup.GET("/contents/:id/chat", h.GetContentChat)

	// profile
	authGroup.GET("/profile", h.GetProfile)
	authGroup.PUT("/profile", h.UpdateProfile)
	return r
}

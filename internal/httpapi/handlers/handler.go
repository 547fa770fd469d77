package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/chat"
	"github.com/suPer8Hu/ai-tutor/internal/common"
	"github.com/suPer8Hu/ai-tutor/internal/config"
	"github.com/suPer8Hu/ai-tutor/internal/content"
	"github.com/suPer8Hu/ai-tutor/internal/httpapi/middleware"
	"github.com/suPer8Hu/ai-tutor/internal/profile"
	"github.com/suPer8Hu/ai-tutor/internal/store/redisstore"
	"gorm.io/gorm"
)

// Error codes carried in the response envelope.
const (
	CodeInvalidJSON      = 10001
	CodeMissingTopics    = 10002
	CodeIdempotencyKey   = 10003
	CodeUnauthorized     = 40101
	CodeContentNotFound  = 40401
	CodeSessionNotFound  = 40402
	CodeJobNotFound      = 40403
	CodeInternal         = 50001
	CodeEnqueueFailed    = 50002
	CodeNotConfigured    = 50003
	CodeAsyncUnavailable = 50301
)

// JobPublisher enqueues generation jobs for the worker.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	Cfg       config.Config
	Log       *logrus.Logger
	Contents  *content.Repo
	Generator *content.Generator
	ChatSvc   *chat.Service
	Profiles  *profile.Repo
	// nil when RabbitMQ is unavailable
	Publisher JobPublisher
}

// NewHandler wires repositories and services. rds and pub may be nil.
func NewHandler(db *gorm.DB, cfg config.Config, reg *ai.Registry, rds *redisstore.Store, pub JobPublisher, log *logrus.Logger) *Handler {
	contents := content.NewRepo(db)

	opts := chat.Options{
		HistoryLimit:      cfg.ChatHistoryLimit,
		CompletionTimeout: cfg.CompletionTimeout,
		Logger:            log,
	}
	if rds != nil {
		opts.Locker = rds
	}

	return &Handler{
		Cfg:       cfg,
		Log:       log,
		Contents:  contents,
		Generator: content.NewGenerator(contents, reg, cfg.GenerationItemsPerTopic, cfg.GenerationConcurrency, log),
		ChatSvc:   chat.NewService(chat.NewRepo(db), contents, reg, opts),
		Profiles:  profile.NewRepo(db),
		Publisher: pub,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) userID(c *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	return uid, ok
}

func (h *Handler) logger(c *gin.Context) *logrus.Entry {
	e := h.Log.WithField("request_id", common.RequestID(c))
	if uid, ok := middleware.UserID(c); ok {
		e = e.WithField("user_id", uid)
	}
	return e
}

// failErr maps domain errors onto the envelope. Anything unknown is logged
// and reported as an opaque internal error.
func (h *Handler) failErr(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		h.logger(c).WithError(err).Error(op)
		common.Fail(c, http.StatusInternalServerError, CodeNotConfigured, ai.ErrNotConfigured.Error())
	case errors.Is(err, chat.ErrContentNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, CodeContentNotFound, "content not found")
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, CodeSessionNotFound, "chat session not found")
	case errors.Is(err, content.ErrNoTopics):
		common.Fail(c, http.StatusBadRequest, CodeMissingTopics, "topics required")
	default:
		h.logger(c).WithError(err).Error(op)
		common.Fail(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

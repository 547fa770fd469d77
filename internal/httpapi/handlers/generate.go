package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-tutor/internal/common"
	"github.com/suPer8Hu/ai-tutor/internal/content"
	"gorm.io/gorm"
)

type generateReq struct {
	Topics []string `json:"topics" binding:"required"`
}

func (h *Handler) bindTopics(c *gin.Context) ([]string, bool) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, CodeInvalidJSON, "invalid json")
		return nil, false
	}
	topics := content.NormalizeTopics(req.Topics)
	if len(topics) == 0 {
		common.Fail(c, http.StatusBadRequest, CodeMissingTopics, "topics required")
		return nil, false
	}
	return topics, true
}

// GenerateContent generates learning contents for the given topics inline.
func (h *Handler) GenerateContent(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	topics, ok := h.bindTopics(c)
	if !ok {
		return
	}

	created, err := h.Generator.Generate(c.Request.Context(), uid, topics)
	if err != nil {
		h.failErr(c, "generate content", err)
		return
	}
	common.OK(c, gin.H{"contents": created})
}

// CreateGenerationJob queues generation for the worker. With an
// Idempotency-Key header, repeated calls return the same job.
func (h *Handler) CreateGenerationJob(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	if h.Publisher == nil {
		common.Fail(c, http.StatusServiceUnavailable, CodeAsyncUnavailable, "async generation unavailable")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, CodeIdempotencyKey, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	topics, ok := h.bindTopics(c)
	if !ok {
		return
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		h.failErr(c, "encode topics", err)
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		h.failErr(c, "new job id", err)
		return
	}

	ctx := c.Request.Context()
	j, created, err := h.Contents.CreateJobOrGetExisting(ctx, &content.GenerationJob{
		ID:             jobID,
		UserID:         uid,
		Topics:         string(topicsJSON),
		IdempotencyKey: idempoKeyPtr,
		Status:         content.JobQueued,
	})
	if err != nil {
		h.failErr(c, "create generation job", err)
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Publisher.PublishJob(ctx, j.ID); err != nil {
			h.logger(c).WithError(err).WithField("job_id", j.ID).Error("publish generation job")
			_ = h.Contents.MarkJobFailed(ctx, j.ID, "enqueue failed")
			common.Fail(c, http.StatusInternalServerError, CodeEnqueueFailed, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID, "status": j.Status})
}

func (h *Handler) GetGenerationJob(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	j, err := h.Contents.GetJobByID(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, CodeJobNotFound, "job not found")
			return
		}
		h.failErr(c, "get generation job", err)
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, CodeJobNotFound, "job not found")
		return
	}

	var topics []string
	_ = json.Unmarshal([]byte(j.Topics), &topics)

	common.OK(c, gin.H{
		"job": gin.H{
			"id":            j.ID,
			"topics":        topics,
			"status":        j.Status,
			"content_count": j.ContentCount,
			"error":         j.Error,
			"created_at":    j.CreatedAt,
			"updated_at":    j.UpdatedAt,
		},
	})
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-tutor/internal/common"
)

func (h *Handler) ListContents(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	list, err := h.Contents.ListWithProgress(c.Request.Context(), uid)
	if err != nil {
		h.failErr(c, "list contents", err)
		return
	}
	common.OK(c, gin.H{"contents": list})
}

func (h *Handler) GetContent(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	item, err := h.Contents.GetForUser(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.failErr(c, "get content", err)
		return
	}
	common.OK(c, gin.H{"content": item})
}

// DeleteContent is scoped to the caller; an unknown or foreign id reports deleted=false.
func (h *Handler) DeleteContent(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	id := c.Param("id")
	deleted, err := h.Contents.DeleteForUser(c.Request.Context(), uid, id)
	if err != nil {
		h.failErr(c, "delete content", err)
		return
	}
	if deleted {
		h.logger(c).WithField("content_id", id).Info("content deleted")
	}
	common.OK(c, gin.H{"id": id, "deleted": deleted})
}

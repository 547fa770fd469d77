package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/chat"
	"github.com/suPer8Hu/ai-tutor/internal/common"
	"github.com/suPer8Hu/ai-tutor/internal/observability"
)

// ChatSessionHeader carries the resolved session id on stream responses.
const ChatSessionHeader = "X-Chat-Session-Id"

type chatMessageReq struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

type chatStreamReq struct {
	Messages      []chatMessageReq `json:"messages" binding:"required,dive"`
	ContentID     string           `json:"contentId" binding:"required"`
	ChatSessionID string           `json:"chatSessionId"`
}

// ChatStream runs one tutoring turn and streams the reply as plain text.
func (h *Handler) ChatStream(c *gin.Context) {
	metrics := observability.Default()

	uid, ok := h.userID(c)
	if !ok {
		return
	}

	var req chatStreamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ChatStreamsTotal.WithLabelValues("rejected").Inc()
		common.Fail(c, http.StatusBadRequest, CodeInvalidJSON, "invalid json")
		return
	}

	msgs := make([]ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	ctx := c.Request.Context()
	turn, err := h.ChatSvc.BeginTurn(ctx, chat.TurnRequest{
		UserID:    uid,
		ContentID: req.ContentID,
		SessionID: req.ChatSessionID,
		Messages:  msgs,
	})
	if err != nil {
		metrics.ChatStreamsTotal.WithLabelValues("rejected").Inc()
		h.failErr(c, "begin chat turn", err)
		return
	}

	start := time.Now()
	chunks, result := h.ChatSvc.StreamReply(ctx, turn)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header(ChatSessionHeader, turn.Session.ID)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	log := h.logger(c).WithFields(logrus.Fields{
		"content_id":      turn.Content.ID,
		"chat_session_id": turn.Session.ID,
	})

	for chunk := range chunks {
		if ctx.Err() == nil {
			if _, err := io.WriteString(c.Writer, chunk); err == nil {
				c.Writer.Flush()
				metrics.ChatStreamBytes.Add(float64(len(chunk)))
				continue
			}
		}
		// client is gone; let generation finish so the reply is still stored
		metrics.ChatStreamsTotal.WithLabelValues("client_gone").Inc()
		go finishDetached(chunks, result, log, start)
		return
	}

	res := <-result
	if res.Err != nil {
		// status is already committed; all we can do is end the body
		metrics.ChatStreamsTotal.WithLabelValues("error").Inc()
		log.WithError(res.Err).Error("chat stream failed")
		return
	}
	metrics.ChatStreamsTotal.WithLabelValues("ok").Inc()
	metrics.ChatStreamDuration.Observe(time.Since(start).Seconds())
}

func finishDetached(chunks <-chan string, result <-chan chat.ReplyResult, log *logrus.Entry, start time.Time) {
	for range chunks {
	}
	res := <-result
	if res.Err != nil {
		log.WithError(res.Err).Warn("detached chat reply failed")
		return
	}
	observability.Default().ChatStreamDuration.Observe(time.Since(start).Seconds())
	log.WithField("message_id", res.Message.ID).Info("chat reply stored after client disconnect")
}

// GetContentChat returns the content with its session id and transcript.
func (h *Handler) GetContentChat(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	tr, err := h.ChatSvc.LoadTranscript(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.failErr(c, "load transcript", err)
		return
	}
	common.OK(c, tr)
}

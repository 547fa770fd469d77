package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-tutor/internal/common"
	"github.com/suPer8Hu/ai-tutor/internal/profile"
)

type updateProfileReq struct {
	DisplayName       *string `json:"display_name" binding:"omitempty,max=100"`
	Bio               *string `json:"bio" binding:"omitempty,max=2000"`
	AvatarURL         *string `json:"avatar_url" binding:"omitempty,max=512"`
	PreferredLanguage *string `json:"preferred_language" binding:"omitempty,oneof=ja en"`
}

func (h *Handler) GetProfile(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	p, err := h.Profiles.GetOrCreate(c.Request.Context(), uid)
	if err != nil {
		h.failErr(c, "get profile", err)
		return
	}
	common.OK(c, gin.H{"profile": p})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, CodeInvalidJSON, "invalid json")
		return
	}

	p, err := h.Profiles.Update(c.Request.Context(), uid, profile.Update{
		DisplayName:       req.DisplayName,
		Bio:               req.Bio,
		AvatarURL:         req.AvatarURL,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		h.failErr(c, "update profile", err)
		return
	}
	common.OK(c, gin.H{"profile": p})
}

package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Session struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string     `gorm:"type:varchar(64);not null;uniqueIndex:uniq_chat_session_user_content,priority:1" json:"user_id"`
	ContentID     string     `gorm:"type:varchar(36);not null;uniqueIndex:uniq_chat_session_user_content,priority:2" json:"content_id"`
	Title         string     `gorm:"type:varchar(255)" json:"title"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Message struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatSessionID string    `gorm:"type:varchar(36);not null;index:idx_chat_msg_session_created,priority:1" json:"chat_session_id"`
	Role          string    `gorm:"type:varchar(16);not null" json:"role"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	CreatedAt     time.Time `gorm:"index:idx_chat_msg_session_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

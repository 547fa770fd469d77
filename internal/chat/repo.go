package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) FindSession(ctx context.Context, userID, contentID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSessionOrGetExisting inserts s, but if (user_id, content_id) already
// exists it returns the existing row instead.
func (r *Repo) CreateSessionOrGetExisting(ctx context.Context, s *Session) (*Session, bool, error) {
	err := r.db.WithContext(ctx).Create(s).Error
	if err == nil {
		return s, true, nil
	}

	existing, getErr := r.FindSession(ctx, s.UserID, s.ContentID)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// InsertMessage stores m and bumps the session's last_message_at.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		now := m.CreatedAt
		if now.IsZero() {
			now = time.Now()
		}
		return tx.Model(&Session{}).
			Where("id = ?", m.ChatSessionID).
			Updates(map[string]any{
				"last_message_at": now,
				"updated_at":      now,
			}).Error
	})
}

// ListMessages returns the session's messages oldest first. limit <= 0 means all;
// otherwise the most recent limit messages are returned, still oldest first.
func (r *Repo) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	var msgs []Message
	if limit <= 0 {
		if err := r.db.WithContext(ctx).
			Where("chat_session_id = ?", sessionID).
			Order("created_at ASC").Order("id ASC").
			Find(&msgs).Error; err != nil {
			return nil, err
		}
		return msgs, nil
	}

	if err := r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *Repo) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("chat_session_id = ?", sessionID).
		Count(&n).Error
	return n, err
}

package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const SourceGenerated = "generated"

type Content struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(64);index:idx_contents_user_created,priority:1;not null" json:"user_id"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Summary    string    `gorm:"type:text" json:"summary"`
	TopicName  string    `gorm:"type:varchar(255);index" json:"topic_name"`
	SourceType string    `gorm:"type:varchar(32)" json:"source_type"`
	CreatedAt  time.Time `gorm:"index:idx_contents_user_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Content) TableName() string { return "contents" }

func (c *Content) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Topic records a subject the user asked to learn about.
type Topic struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Topic) TableName() string { return "learning_topics" }

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Progress is one row per (user, content).
type Progress struct {
	ID                  string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID              string     `gorm:"type:varchar(64);not null;uniqueIndex:uniq_progress_user_content,priority:1" json:"user_id"`
	ContentID           string     `gorm:"type:varchar(36);not null;uniqueIndex:uniq_progress_user_content,priority:2" json:"content_id"`
	LastAccessedAt      *time.Time `json:"last_accessed_at"`
	CompletedPercentage *int       `json:"completed_percentage"`
	TotalStudyMinutes   *int       `json:"total_study_minutes"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (Progress) TableName() string { return "learning_progress" }

func (p *Progress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProgressSummary is what content listings expose about progress.
type ProgressSummary struct {
	LastAccessedAt      *time.Time `json:"last_accessed_at"`
	CompletedPercentage *int       `json:"completed_percentage"`
}

type WithProgress struct {
	Content
	Progress *ProgressSummary `json:"learning_progress"`
}

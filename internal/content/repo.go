package content

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateTopic(ctx context.Context, t *Topic) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) CreateContent(ctx context.Context, c *Content) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// GetForUser returns the content only when userID owns it.
func (r *Repo) GetForUser(ctx context.Context, userID, id string) (*Content, error) {
	var c Content
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListWithProgress returns the user's contents newest first, each with its progress row if any.
func (r *Repo) ListWithProgress(ctx context.Context, userID string) ([]WithProgress, error) {
	var contents []Content
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&contents).Error; err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return []WithProgress{}, nil
	}

	ids := make([]string, 0, len(contents))
	for _, c := range contents {
		ids = append(ids, c.ID)
	}

	var rows []Progress
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND content_id IN ?", userID, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byContent := make(map[string]Progress, len(rows))
	for _, p := range rows {
		byContent[p.ContentID] = p
	}

	out := make([]WithProgress, 0, len(contents))
	for _, c := range contents {
		item := WithProgress{Content: c}
		if p, ok := byContent[c.ID]; ok {
			item.Progress = &ProgressSummary{
				LastAccessedAt:      p.LastAccessedAt,
				CompletedPercentage: p.CompletedPercentage,
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// DeleteForUser removes the content owned by userID together with its chat
// sessions, messages and progress. It reports whether a content row was deleted.
func (r *Repo) DeleteForUser(ctx context.Context, userID, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&Content{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true

		if err := tx.Exec(
			"DELETE FROM chat_messages WHERE chat_session_id IN (SELECT id FROM chat_sessions WHERE content_id = ? AND user_id = ?)",
			id, userID,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM chat_sessions WHERE content_id = ? AND user_id = ?", id, userID).Error; err != nil {
			return err
		}
		return tx.Where("content_id = ? AND user_id = ?", id, userID).Delete(&Progress{}).Error
	})
	return deleted, err
}

// TouchProgress upserts last_accessed_at for (userID, contentID), leaving
// completion and study minutes untouched.
func (r *Repo) TouchProgress(ctx context.Context, userID, contentID string, now time.Time) error {
	p := &Progress{
		UserID:         userID,
		ContentID:      contentID,
		LastAccessedAt: &now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_accessed_at", "updated_at"}),
	}).Create(p).Error
}

func (r *Repo) GetProgress(ctx context.Context, userID, contentID string) (*Progress, error) {
	var p Progress
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *GenerationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*GenerationJob, error) {
	var j GenerationJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&GenerationJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, contentCount int) error {
	return r.db.WithContext(ctx).Model(&GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        JobSucceeded,
			"content_count": contentCount,
			"error":         nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

// RequeueJob puts a job back to queued ahead of a delayed retry, keeping the
// error that caused it.
func (r *Repo) RequeueJob(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobQueued,
			"error":  errMsg,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID string, key string) (*GenerationJob, error) {
	var job GenerationJob
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *GenerationJob) (*GenerationJob, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

package profile

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	LangJapanese = "ja"
	LangEnglish  = "en"
)

type Profile struct {
	ID                string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	DisplayName       string    `gorm:"type:varchar(100)" json:"display_name"`
	Bio               string    `gorm:"type:text" json:"bio"`
	AvatarURL         string    `gorm:"type:varchar(512)" json:"avatar_url"`
	PreferredLanguage string    `gorm:"type:varchar(8);not null;default:ja" json:"preferred_language"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// Update carries the editable fields; nil leaves a field unchanged.
type Update struct {
	DisplayName       *string
	Bio               *string
	AvatarURL         *string
	PreferredLanguage *string
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetOrCreate returns the user's profile, inserting an empty one on first access.
func (r *Repo) GetOrCreate(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.db.WithContext(ctx).First(&p, "id = ?", userID).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p = Profile{ID: userID, PreferredLanguage: LangJapanese}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&p).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Update(ctx context.Context, userID string, u Update) (*Profile, error) {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if u.DisplayName != nil {
		fields["display_name"] = *u.DisplayName
	}
	if u.Bio != nil {
		fields["bio"] = *u.Bio
	}
	if u.AvatarURL != nil {
		fields["avatar_url"] = *u.AvatarURL
	}
	if u.PreferredLanguage != nil {
		fields["preferred_language"] = *u.PreferredLanguage
	}
	if len(fields) > 0 {
		if err := r.db.WithContext(ctx).Model(&Profile{}).
			Where("id = ?", userID).
			Updates(fields).Error; err != nil {
			return nil, err
		}
	}

	var p Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

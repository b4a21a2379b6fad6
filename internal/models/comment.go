package models

import (
	"time"
)

type Comment struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	PostID       string    `gorm:"type:uuid;not null;index" json:"post_id"`
	Post         Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID       string    `gorm:"type:uuid;not null;index" json:"user_id"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	ParentID     *string   `gorm:"type:uuid;index" json:"parent_id"` // nil for top-level comments
	Content      string    `gorm:"type:text;not null" json:"content"`
	ContentHTML  string    `gorm:"type:text" json:"content_html"`
	LikeCount    int       `gorm:"not null;default:0;check:like_count >= 0" json:"like_count"`
	DislikeCount int       `gorm:"not null;default:0;check:dislike_count >= 0" json:"dislike_count"`
	CreatedAt    time.Time `json:"created_at"`
}

package models

import (
	"time"
)

type Post struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Title       string    `gorm:"not null" json:"title"`
	Category    string    `gorm:"size:40;index;default:'general'" json:"category"`
	Content     string    `gorm:"type:text" json:"content"`
	ContentHTML string    `gorm:"type:text" json:"content_html"`
	LikeCount   int       `gorm:"not null;default:0;check:like_count >= 0" json:"like_count"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Not columns; filled by list queries.
	CommentCount int `gorm:"->;-:migration" json:"comment_count"`
	ViewCount    int `gorm:"->;-:migration" json:"view_count"`
}

// PostView records that a user opened a post. Anonymous views have a nil UserID
// and are never deduplicated.
type PostView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_post_view_user" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    *string   `gorm:"type:uuid;uniqueIndex:idx_post_view_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

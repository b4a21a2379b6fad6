package models

import (
	"time"
)

// VoteAction is a user's stance on a comment.
type VoteAction string

const (
	ActionLike    VoteAction = "like"
	ActionDislike VoteAction = "dislike"
)

func (a VoteAction) Valid() bool {
	return a == ActionLike || a == ActionDislike
}

// CommentVote holds one user's current like/dislike on one comment.
// The (comment_id, user_id) unique index is the backstop against double inserts.
type CommentVote struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CommentID string     `gorm:"type:uuid;not null;uniqueIndex:idx_comment_vote_user" json:"comment_id"`
	Comment   Comment    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    string     `gorm:"type:uuid;not null;uniqueIndex:idx_comment_vote_user;index" json:"user_id"`
	Action    VoteAction `gorm:"type:varchar(10);not null" json:"action"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PostLike is a presence-only vote: the row exists while the user likes the post.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_post_like_user" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_post_like_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

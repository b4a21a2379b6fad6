package repositories

import (
	"context"

	"campuslink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const commentCountSelect = "posts.*, " +
	"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count, " +
	"(SELECT COUNT(*) FROM post_views WHERE post_views.post_id = posts.id) AS view_count"

// ForumRepository reads and writes posts and comments.
type ForumRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

func NewForumRepository(db *gorm.DB, retry RetryPolicy) *ForumRepository {
	return &ForumRepository{db: db, retry: retry}
}

// ListPosts returns the newest posts, optionally filtered by category.
func (r *ForumRepository) ListPosts(ctx context.Context, category string, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.retry.do(ctx, "ListPosts", func() error {
		q := r.db.WithContext(ctx).Model(&models.Post{}).
			Select(commentCountSelect).
			Preload("User").
			Order("posts.created_at DESC").
			Limit(limit).
			Offset(offset)
		if category != "" {
			q = q.Where("posts.category = ?", category)
		}
		return q.Find(&posts).Error
	})
	return posts, err
}

// ListPostsByUser returns the posts a user wrote, newest first.
func (r *ForumRepository) ListPostsByUser(ctx context.Context, userID string) ([]models.Post, error) {
	var posts []models.Post
	err := r.retry.do(ctx, "ListPostsByUser", func() error {
		return r.db.WithContext(ctx).Model(&models.Post{}).
			Select(commentCountSelect).
			Where("posts.user_id = ?", userID).
			Order("posts.created_at DESC").
			Find(&posts).Error
	})
	return posts, err
}

func (r *ForumRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	return r.retry.do(ctx, "CreatePost", func() error {
		return r.db.WithContext(ctx).Omit("User").Create(post).Error
	})
}

// GetThread loads a post with its comments, oldest first.
func (r *ForumRepository) GetThread(ctx context.Context, postID string) (*models.Post, []models.Comment, error) {
	var post models.Post
	var comments []models.Comment
	err := r.retry.do(ctx, "GetThread", func() error {
		db := r.db.WithContext(ctx)
		if err := db.Model(&models.Post{}).
			Select(commentCountSelect).
			Preload("User").
			Where("posts.id = ?", postID).
			Take(&post).Error; err != nil {
			return err
		}
		return db.Preload("User").
			Where("post_id = ?", postID).
			Order("created_at ASC").
			Find(&comments).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &post, comments, nil
}

// CreateComment adds a comment to an existing post. A parent comment must belong to the same post.
func (r *ForumRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	return r.retry.do(ctx, "CreateComment", func() error {
		db := r.db.WithContext(ctx)
		if err := db.Select("id").Where("id = ?", comment.PostID).Take(&models.Post{}).Error; err != nil {
			return err
		}
		if comment.ParentID != nil {
			if err := db.Select("id").
				Where("id = ? AND post_id = ?", *comment.ParentID, comment.PostID).
				Take(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		return db.Omit("User", "Post").Create(comment).Error
	})
}

// GetComment is used to resolve the thread of a comment.
func (r *ForumRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.retry.do(ctx, "GetComment", func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).Take(&comment).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeletePost removes a post owned by userID. Comments, votes, likes and views go
// with it through their foreign keys. A post owned by someone else is reported as
// not found.
func (r *ForumRepository) DeletePost(ctx context.Context, postID, userID string) error {
	return r.retry.do(ctx, "DeletePost", func() error {
		result := r.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", postID, userID).
			Delete(&models.Post{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// RecordView stores one view of a post. Repeat views by the same signed in user
// are ignored.
func (r *ForumRepository) RecordView(ctx context.Context, postID string, userID *string) error {
	return r.retry.do(ctx, "RecordView", func() error {
		db := r.db.WithContext(ctx)
		if err := db.Select("id").Where("id = ?", postID).Take(&models.Post{}).Error; err != nil {
			return err
		}
		return db.Omit("Post").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&models.PostView{PostID: postID, UserID: userID}).Error
	})
}

package repositories

import (
	"context"
	"time"

	"campuslink/internal/apperror"
	"campuslink/internal/models"
	"campuslink/internal/services"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository stores post likes and comment votes with their counters.
type VoteRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

func NewVoteRepository(db *gorm.DB, retry RetryPolicy) *VoteRepository {
	return &VoteRepository{db: db, retry: retry}
}

func targetTable(target services.Target) string {
	if target.Kind == services.TargetPost {
		return "posts"
	}
	return "comments"
}

func (r *VoteRepository) Transaction(ctx context.Context, fn func(tx services.VoteStore) error) error {
	return r.retry.do(ctx, "Transaction", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&VoteRepository{db: tx, retry: noRetry})
		})
	})
}

func (r *VoteRepository) FindVote(ctx context.Context, target services.Target, userID string) (models.VoteAction, bool, error) {
	var action models.VoteAction
	found := false
	err := r.retry.do(ctx, "FindVote", func() error {
		db := r.db.WithContext(ctx)
		if target.Kind == services.TargetPost {
			var count int64
			if err := db.Model(&models.PostLike{}).
				Where("post_id = ? AND user_id = ?", target.ID, userID).
				Count(&count).Error; err != nil {
				return err
			}
			found = count > 0
			action = models.ActionLike
			return nil
		}

		var vote models.CommentVote
		err := db.Where("comment_id = ? AND user_id = ?", target.ID, userID).First(&vote).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found, action = true, vote.Action
		return nil
	})
	if !found {
		action = ""
	}
	return action, found, err
}

func (r *VoteRepository) GetCounters(ctx context.Context, target services.Target) (services.Counters, string, error) {
	return r.readCounters(ctx, target, false)
}

// readCounters with lock holds the target row until the transaction ends, so no
// vote can move the counters between the read and a recount.
func (r *VoteRepository) readCounters(ctx context.Context, target services.Target, lock bool) (services.Counters, string, error) {
	var row struct {
		ID           string
		PostID       string
		LikeCount    int
		DislikeCount int
	}
	err := r.retry.do(ctx, "GetCounters", func() error {
		q := r.db.WithContext(ctx).Table(targetTable(target)).Where("id = ?", target.ID)
		if target.Kind == services.TargetPost {
			q = q.Select("id, id AS post_id, like_count, 0 AS dislike_count")
		} else {
			q = q.Select("id, post_id, like_count, dislike_count")
		}
		if lock {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return q.Take(&row).Error
	})
	if err != nil {
		return services.Counters{}, "", errors.Wrapf(err, "%s", target)
	}
	return services.Counters{LikeCount: row.LikeCount, DislikeCount: row.DislikeCount}, row.PostID, nil
}

// InsertVote returns apperror.ErrConflictRetry when the user already has a vote on target.
func (r *VoteRepository) InsertVote(ctx context.Context, target services.Target, userID string, action models.VoteAction) error {
	return r.retry.do(ctx, "InsertVote", func() error {
		var err error
		if target.Kind == services.TargetPost {
			err = r.db.WithContext(ctx).Omit("Post").Create(&models.PostLike{PostID: target.ID, UserID: userID}).Error
		} else {
			err = r.db.WithContext(ctx).Omit("Comment").Create(&models.CommentVote{CommentID: target.ID, UserID: userID, Action: action}).Error
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.ErrConflictRetry
		}
		return err
	})
}

func (r *VoteRepository) UpdateVoteAction(ctx context.Context, target services.Target, userID string, action models.VoteAction) error {
	if target.Kind == services.TargetPost {
		// post likes have a single state
		return nil
	}
	return r.retry.do(ctx, "UpdateVoteAction", func() error {
		res := r.db.WithContext(ctx).Model(&models.CommentVote{}).
			Where("comment_id = ? AND user_id = ?", target.ID, userID).
			Updates(map[string]interface{}{"action": action, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *VoteRepository) DeleteVote(ctx context.Context, target services.Target, userID string) error {
	return r.retry.do(ctx, "DeleteVote", func() error {
		db := r.db.WithContext(ctx)
		if target.Kind == services.TargetPost {
			return db.Where("post_id = ? AND user_id = ?", target.ID, userID).Delete(&models.PostLike{}).Error
		}
		return db.Where("comment_id = ? AND user_id = ?", target.ID, userID).Delete(&models.CommentVote{}).Error
	})
}

// IncrementCounter adds delta to a counter column, never going below 0.
func (r *VoteRepository) IncrementCounter(ctx context.Context, target services.Target, field services.CounterField, delta int) error {
	if field != services.FieldLikeCount && field != services.FieldDislikeCount {
		return errors.Wrapf(apperror.ErrInvalidInput, "unknown counter %q", field)
	}
	if target.Kind == services.TargetPost && field == services.FieldDislikeCount {
		return errors.Wrap(apperror.ErrInvalidInput, "posts have no dislike counter")
	}
	column := string(field)
	return r.retry.do(ctx, "IncrementCounter", func() error {
		res := r.db.WithContext(ctx).Table(targetTable(target)).
			Where("id = ?", target.ID).
			UpdateColumn(column, gorm.Expr("GREATEST("+column+" + ?, 0)", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// RecountTarget sets the counters of target to the number of vote rows. The target
// row is locked first, so concurrent votes wait for the recount and are not lost.
func (r *VoteRepository) RecountTarget(ctx context.Context, target services.Target) (services.RecountResult, error) {
	var res services.RecountResult
	err := r.Transaction(ctx, func(store services.VoteStore) error {
		locked := store.(*VoteRepository)
		tx := locked.db

		before, threadID, err := locked.readCounters(ctx, target, true)
		if err != nil {
			return err
		}
		res.Before, res.ThreadID = before, threadID

		var likes, dislikes int64
		if target.Kind == services.TargetPost {
			if err := tx.Model(&models.PostLike{}).Where("post_id = ?", target.ID).Count(&likes).Error; err != nil {
				return err
			}
		} else {
			var rows []struct {
				Action models.VoteAction
				Total  int64
			}
			if err := tx.Model(&models.CommentVote{}).
				Select("action, COUNT(*) AS total").
				Where("comment_id = ?", target.ID).
				Group("action").
				Scan(&rows).Error; err != nil {
				return err
			}
			for _, row := range rows {
				switch row.Action {
				case models.ActionLike:
					likes = row.Total
				case models.ActionDislike:
					dislikes = row.Total
				}
			}
		}
		res.After = services.Counters{LikeCount: int(likes), DislikeCount: int(dislikes)}
		if !res.Drifted() {
			return nil
		}

		updates := map[string]interface{}{"like_count": likes}
		if target.Kind == services.TargetComment {
			updates["dislike_count"] = dislikes
		}
		return tx.Table(targetTable(target)).Where("id = ?", target.ID).UpdateColumns(updates).Error
	})
	return res, err
}

// TouchedTargets lists posts and comments with votes written since the given time.
// With a zero time it also includes targets with non-zero counters and no votes left.
func (r *VoteRepository) TouchedTargets(ctx context.Context, since time.Time) ([]services.Target, error) {
	var postIDs, commentIDs []string
	err := r.retry.do(ctx, "TouchedTargets", func() error {
		db := r.db.WithContext(ctx)
		posts := db.Model(&models.PostLike{}).Distinct("post_id")
		comments := db.Model(&models.CommentVote{}).Distinct("comment_id")
		if !since.IsZero() {
			posts = posts.Where("created_at >= ?", since)
			comments = comments.Where("updated_at >= ?", since)
		}
		if err := posts.Pluck("post_id", &postIDs).Error; err != nil {
			return err
		}
		if err := comments.Pluck("comment_id", &commentIDs).Error; err != nil {
			return err
		}
		if !since.IsZero() {
			return nil
		}

		var counted []string
		if err := db.Model(&models.Post{}).Where("like_count > 0").Pluck("id", &counted).Error; err != nil {
			return err
		}
		postIDs = append(postIDs, counted...)
		counted = nil
		if err := db.Model(&models.Comment{}).Where("like_count > 0 OR dislike_count > 0").Pluck("id", &counted).Error; err != nil {
			return err
		}
		commentIDs = append(commentIDs, counted...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[services.Target]bool)
	var targets []services.Target
	add := func(kind services.TargetKind, ids []string) {
		for _, id := range ids {
			t := services.Target{Kind: kind, ID: id}
			if !seen[t] {
				seen[t] = true
				targets = append(targets, t)
			}
		}
	}
	add(services.TargetPost, postIDs)
	add(services.TargetComment, commentIDs)
	return targets, nil
}

var (
	_ services.VoteStore     = (*VoteRepository)(nil)
	_ services.CounterSource = (*VoteRepository)(nil)
)

package services

import (
	"context"
	"log"
	"strings"

	"campuslink/internal/apperror"
	"campuslink/internal/models"
	"campuslink/internal/utils"

	"github.com/pkg/errors"
)

type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Target is a post or comment that accumulates votes.
type Target struct {
	Kind TargetKind
	ID   string
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID
}

func (t Target) validate() error {
	if t.Kind != TargetPost && t.Kind != TargetComment {
		return errors.Wrapf(apperror.ErrInvalidInput, "unknown target kind %q", t.Kind)
	}
	if strings.TrimSpace(t.ID) == "" {
		return errors.Wrap(apperror.ErrInvalidInput, "target id is required")
	}
	return nil
}

// Counters is the denormalized aggregate stored on the target row. Posts only use LikeCount.
type Counters struct {
	LikeCount    int `json:"likeCount"`
	DislikeCount int `json:"dislikeCount"`
}

// CounterField names a counter column.
type CounterField string

const (
	FieldLikeCount    CounterField = "like_count"
	FieldDislikeCount CounterField = "dislike_count"
)

func fieldFor(action models.VoteAction) CounterField {
	if action == models.ActionDislike {
		return FieldDislikeCount
	}
	return FieldLikeCount
}

type VoteResult struct {
	Counters
	// Action is the user's stance after the call, empty after a toggle-off.
	Action models.VoteAction `json:"action"`
}

// LikeResult is the post like toggle outcome.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// VoteStore is the persistence the aggregator needs. Implementations must enforce one
// vote per (target, user) and return apperror.ErrConflictRetry when InsertVote hits it.
type VoteStore interface {
	FindVote(ctx context.Context, target Target, userID string) (action models.VoteAction, found bool, err error)
	// GetCounters returns the counters and the id of the thread (post) the target belongs to.
	GetCounters(ctx context.Context, target Target) (Counters, string, error)
	InsertVote(ctx context.Context, target Target, userID string, action models.VoteAction) error
	UpdateVoteAction(ctx context.Context, target Target, userID string, action models.VoteAction) error
	DeleteVote(ctx context.Context, target Target, userID string) error
	// IncrementCounter adds delta to field, clamping the stored value at 0.
	IncrementCounter(ctx context.Context, target Target, field CounterField, delta int) error
	Transaction(ctx context.Context, fn func(tx VoteStore) error) error
}

// TargetScheduler receives targets whose counters were written.
type TargetScheduler interface {
	Schedule(target Target)
}

// Aggregator keeps vote records and target counters consistent.
type Aggregator struct {
	store     VoteStore
	cache     utils.Cache
	scheduler TargetScheduler
	locks     *keyLock
}

// NewAggregator creates an aggregator. cache and scheduler may be nil.
func NewAggregator(store VoteStore, cache utils.Cache, scheduler TargetScheduler) *Aggregator {
	return &Aggregator{
		store:     store,
		cache:     cache,
		scheduler: scheduler,
		locks:     newKeyLock(),
	}
}

// ApplyVote records action by userID on target and returns the refreshed counters.
// Repeating the current action removes the vote, a different action switches it.
func (a *Aggregator) ApplyVote(ctx context.Context, target Target, userID string, action models.VoteAction) (VoteResult, error) {
	if err := target.validate(); err != nil {
		return VoteResult{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return VoteResult{}, errors.Wrap(apperror.ErrInvalidInput, "user id is required")
	}
	if !action.Valid() {
		return VoteResult{}, errors.Wrapf(apperror.ErrInvalidInput, "unknown vote action %q", action)
	}
	if target.Kind == TargetPost && action != models.ActionLike {
		return VoteResult{}, errors.Wrap(apperror.ErrInvalidInput, "posts only accept likes")
	}

	unlock := a.locks.Lock(target.String() + "|" + userID)
	defer unlock()

	result, threadID, err := a.applyOnce(ctx, target, userID, action)
	if errors.Is(err, apperror.ErrConflictRetry) {
		// another request inserted first, re-read and take the update path
		result, threadID, err = a.applyOnce(ctx, target, userID, action)
		if errors.Is(err, apperror.ErrConflictRetry) {
			err = &apperror.StoreError{Op: "ApplyVote retry", Err: err}
		}
	}
	if err != nil {
		return VoteResult{}, err
	}

	a.afterWrite(ctx, target, threadID)
	return result, nil
}

func (a *Aggregator) applyOnce(ctx context.Context, target Target, userID string, action models.VoteAction) (VoteResult, string, error) {
	var (
		result   VoteResult
		threadID string
	)
	err := a.store.Transaction(ctx, func(tx VoteStore) error {
		var err error
		if _, threadID, err = tx.GetCounters(ctx, target); err != nil {
			return err
		}

		existing, found, err := tx.FindVote(ctx, target, userID)
		if err != nil {
			return err
		}

		switch {
		case !found:
			if err := tx.InsertVote(ctx, target, userID, action); err != nil {
				return err
			}
			if err := tx.IncrementCounter(ctx, target, fieldFor(action), 1); err != nil {
				return err
			}
			result.Action = action
		case existing == action:
			if err := tx.DeleteVote(ctx, target, userID); err != nil {
				return err
			}
			if err := tx.IncrementCounter(ctx, target, fieldFor(action), -1); err != nil {
				return err
			}
			result.Action = ""
		default:
			if err := tx.UpdateVoteAction(ctx, target, userID, action); err != nil {
				return err
			}
			if err := tx.IncrementCounter(ctx, target, fieldFor(action), 1); err != nil {
				return err
			}
			if err := tx.IncrementCounter(ctx, target, fieldFor(existing), -1); err != nil {
				return err
			}
			result.Action = action
		}

		result.Counters, _, err = tx.GetCounters(ctx, target)
		return err
	})
	return result, threadID, err
}

func (a *Aggregator) afterWrite(ctx context.Context, target Target, threadID string) {
	if a.cache != nil && threadID != "" {
		a.cache.Delete(ctx, utils.ThreadCacheKey(threadID))
	}
	if a.scheduler != nil {
		a.scheduler.Schedule(target)
	}
}

// ToggleLike likes a post, or removes the like if the user already liked it.
func (a *Aggregator) ToggleLike(ctx context.Context, postID, userID string) (LikeResult, error) {
	res, err := a.ApplyVote(ctx, Target{Kind: TargetPost, ID: postID}, userID, models.ActionLike)
	if err != nil {
		return LikeResult{}, err
	}
	return LikeResult{Liked: res.Action == models.ActionLike, LikeCount: res.LikeCount}, nil
}

// Status returns the current stance of userID on target, empty when there is no vote.
func (a *Aggregator) Status(ctx context.Context, target Target, userID string) (models.VoteAction, error) {
	if err := target.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.Wrap(apperror.ErrInvalidInput, "user id is required")
	}
	action, found, err := a.store.FindVote(ctx, target, userID)
	if err != nil {
		log.Printf("Vote status lookup for %s failed: %v", target, err)
		return "", err
	}
	if !found {
		return "", nil
	}
	return action, nil
}

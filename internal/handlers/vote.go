package handlers

import (
	"context"
	"net/http"

	"campuslink/internal/models"
	"campuslink/internal/services"

	"github.com/gin-gonic/gin"
)

// Voter applies votes and likes.
type Voter interface {
	ApplyVote(ctx context.Context, target services.Target, userID string, action models.VoteAction) (services.VoteResult, error)
	ToggleLike(ctx context.Context, postID, userID string) (services.LikeResult, error)
	Status(ctx context.Context, target services.Target, userID string) (models.VoteAction, error)
}

type VoteHandler struct {
	voter Voter
}

func NewVoteHandler(voter Voter) *VoteHandler {
	return &VoteHandler{voter: voter}
}

type voteRequest struct {
	Action models.VoteAction `json:"action" binding:"required,oneof=like dislike"`
}

// VoteComment likes or dislikes a comment. Repeating the current vote removes it.
func (h *VoteHandler) VoteComment(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	target := services.Target{Kind: services.TargetComment, ID: c.Param("commentId")}
	res, err := h.voter.ApplyVote(c.Request.Context(), target, currentUser(c).ID, req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"likeCount":    res.LikeCount,
		"dislikeCount": res.DislikeCount,
		"voteType":     nullableAction(res.Action),
	})
}

// VoteStatus returns the current user's vote on a comment.
func (h *VoteHandler) VoteStatus(c *gin.Context) {
	target := services.Target{Kind: services.TargetComment, ID: c.Param("commentId")}
	action, err := h.voter.Status(c.Request.Context(), target, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "voteType": nullableAction(action)})
}

// LikePost toggles the current user's like on a post.
func (h *VoteHandler) LikePost(c *gin.Context) {
	res, err := h.voter.ToggleLike(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	action := "unliked"
	if res.Liked {
		action = "liked"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"action":    action,
		"liked":     res.Liked,
		"likeCount": res.LikeCount,
	})
}

func nullableAction(a models.VoteAction) interface{} {
	if a == "" {
		return nil
	}
	return a
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campuslink/internal/models"
	"campuslink/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	postsPerPage   = 20
	threadCacheTTL = 5 * time.Minute
	excerptLength  = 200
)

// ForumStore is the post and comment persistence the forum handlers need.
type ForumStore interface {
	ListPosts(ctx context.Context, category string, limit, offset int) ([]models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	GetThread(ctx context.Context, postID string) (*models.Post, []models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	RecordView(ctx context.Context, postID string, userID *string) error
	ListPostsByUser(ctx context.Context, userID string) ([]models.Post, error)
	DeletePost(ctx context.Context, postID, userID string) error
}

type ForumHandler struct {
	forum     ForumStore
	cache     utils.Cache
	threadTTL time.Duration
}

func NewForumHandler(forum ForumStore, cache utils.Cache) *ForumHandler {
	return &ForumHandler{forum: forum, cache: cache, threadTTL: threadCacheTTL}
}

// WithThreadTTL overrides how long thread views stay cached.
func (h *ForumHandler) WithThreadTTL(ttl time.Duration) *ForumHandler {
	if ttl > 0 {
		h.threadTTL = ttl
	}
	return h
}

type postSummary struct {
	models.Post
	Excerpt string `json:"excerpt"`
}

// ListPosts returns the newest posts, 20 per page.
func (h *ForumHandler) ListPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	posts, err := h.forum.ListPosts(c.Request.Context(), c.Query("category"), postsPerPage, (page-1)*postsPerPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "posts": summarize(posts), "page": page})
}

func summarize(posts []models.Post) []postSummary {
	out := make([]postSummary, 0, len(posts))
	for _, p := range posts {
		summary := postSummary{Post: p, Excerpt: utils.Excerpt(p.ContentHTML, excerptLength)}
		summary.Content, summary.ContentHTML = "", ""
		out = append(out, summary)
	}
	return out
}

// MyPosts lists the current user's posts, newest first.
func (h *ForumHandler) MyPosts(c *gin.Context) {
	posts, err := h.forum.ListPostsByUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": summarize(posts)})
}

// DeletePost deletes one of the current user's posts.
func (h *ForumHandler) DeletePost(c *gin.Context) {
	postID := c.Param("id")
	if err := h.forum.DeletePost(c.Request.Context(), postID, currentUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	if h.cache != nil {
		h.cache.Delete(c.Request.Context(), utils.ThreadCacheKey(postID))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type viewRequest struct {
	PostID string `json:"post_id" binding:"required"`
}

// RecordView counts a view of a post. Signed in users are counted once per post.
func (h *ForumHandler) RecordView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	var userID *string
	if user := currentUser(c); user != nil {
		userID = &user.ID
	}
	if err := h.forum.RecordView(c.Request.Context(), req.PostID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type createPostRequest struct {
	Title    string `json:"title" binding:"required,max=200"`
	Content  string `json:"content" binding:"required"`
	Category string `json:"category" binding:"omitempty,max=40"`
}

func (h *ForumHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	post := models.Post{
		UserID:      currentUser(c).ID,
		Title:       strings.TrimSpace(req.Title),
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		Content:     req.Content,
		ContentHTML: utils.RenderMarkdown(req.Content),
	}
	if post.Category == "" {
		post.Category = "general"
	}
	if err := h.forum.CreatePost(c.Request.Context(), &post); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": post})
}

// Thread returns a post with its comments. Responses are cached until a vote or
// comment changes the thread.
func (h *ForumHandler) Thread(c *gin.Context) {
	ctx := c.Request.Context()
	postID := c.Param("id")

	body, err := utils.ReadThrough(ctx, h.cache, utils.ThreadCacheKey(postID), h.threadTTL, func() ([]byte, error) {
		post, comments, err := h.forum.GetThread(ctx, postID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(gin.H{"success": true, "post": post, "comments": comments})
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

type createCommentRequest struct {
	Content  string  `json:"content" binding:"required,max=10000"`
	ParentID *string `json:"parentId"`
}

func (h *ForumHandler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	postID := c.Param("id")
	comment := models.Comment{
		PostID:      postID,
		UserID:      currentUser(c).ID,
		ParentID:    req.ParentID,
		Content:     req.Content,
		ContentHTML: utils.RenderMarkdown(req.Content),
	}
	if err := h.forum.CreateComment(c.Request.Context(), &comment); err != nil {
		respondError(c, err)
		return
	}
	if h.cache != nil {
		h.cache.Delete(c.Request.Context(), utils.ThreadCacheKey(postID))
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": comment})
}

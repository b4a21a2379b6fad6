package handlers

import (
	"context"
	"net/http"
	"strings"

	"campuslink/internal/apperror"
	"campuslink/internal/middleware"
	"campuslink/internal/models"
	"campuslink/internal/services"
	"campuslink/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const captchaSessionKey = "captcha_answer"

// UserStore is the user persistence the auth and profile handlers need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProgram(ctx context.Context, userID string, program models.ProgramID) error
}

type AuthHandler struct {
	users          UserStore
	captchaService *services.CaptchaService
	cache          utils.Cache
}

// NewAuthHandler creates the auth handlers. cache may be nil.
func NewAuthHandler(users UserStore, captcha *services.CaptchaService, cache utils.Cache) *AuthHandler {
	return &AuthHandler{users: users, captchaService: captcha, cache: cache}
}

// Captcha issues a new signup question and keeps the answer in the session.
func (h *AuthHandler) Captcha(c *gin.Context) {
	question, answer := h.captchaService.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true, "captcha": question})
}

type signupRequest struct {
	Name     string `json:"name" binding:"required,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Captcha  *int   `json:"captcha" binding:"required"`
	Program  string `json:"program"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	session := sessions.Default(c)
	expected, ok := session.Get(captchaSessionKey).(int)
	session.Delete(captchaSessionKey)
	session.Save()
	if !ok || *req.Captcha != expected {
		respondError(c, errors.Wrap(apperror.ErrInvalidInput, "wrong captcha answer"))
		return
	}

	user := models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: req.Email,
	}
	if req.Program != "" {
		program, err := models.ParseProgramID(req.Program)
		if err != nil {
			respondError(c, err)
			return
		}
		user.Program = program
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user.Password = hash

	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		respondError(c, err)
		return
	}

	session.Set(middleware.SessionUserID, user.ID)
	session.Save()
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		respondError(c, err)
		return
	}
	if user == nil || !utils.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "wrong email or password"})
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, user.ID)
	session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the logged in user.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "user": currentUser(c)})
}

type programRequest struct {
	Program string `json:"program" binding:"required"`
}

// UpdateProgram selects the degree program the planner works against.
func (h *AuthHandler) UpdateProgram(c *gin.Context) {
	var req programRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	program, err := models.ParseProgramID(req.Program)
	if err != nil {
		respondError(c, err)
		return
	}

	user := currentUser(c)
	if err := h.users.UpdateProgram(c.Request.Context(), user.ID, program); err != nil {
		respondError(c, err)
		return
	}
	user.Program = program
	if h.cache != nil {
		h.cache.Delete(c.Request.Context(), services.PlanCacheKey(user.ID))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

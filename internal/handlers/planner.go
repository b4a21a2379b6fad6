package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"campuslink/internal/apperror"
	"campuslink/internal/models"
	"campuslink/internal/services"
	"campuslink/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Planner applies course assignments and special requirement rules.
type Planner interface {
	Load(ctx context.Context, userID string, programID models.ProgramID) (*services.Plan, error)
	AssignCourse(ctx context.Context, p *services.Plan, course models.Course, category *models.CategoryKey) error
	SetEthicsSubstitution(ctx context.Context, p *services.Plan, enabled bool, course *models.Course, deductFrom *models.CategoryKey) error
	SetAnchorCredit(ctx context.Context, p *services.Plan, enabled bool) error
	Progress(p *services.Plan) services.Progress
}

// CourseFinder looks up catalogue courses.
type CourseFinder interface {
	List(ctx context.Context, department string) ([]models.Course, error)
	GetByID(ctx context.Context, id string) (*models.Course, error)
}

const planCacheTTL = 5 * time.Minute

type PlannerHandler struct {
	planner Planner
	courses CourseFinder
	cache   utils.Cache
}

// NewPlannerHandler creates the planner handlers. cache may be nil.
func NewPlannerHandler(planner Planner, courses CourseFinder, cache utils.Cache) *PlannerHandler {
	return &PlannerHandler{planner: planner, courses: courses, cache: cache}
}

type planView struct {
	Program    models.Program                                       `json:"program"`
	Categories map[models.CategoryKey][]models.CourseAssignment     `json:"categories"`
	Progress   services.Progress                                    `json:"progress"`
	Rules      map[models.RequirementType]models.SpecialRequirement `json:"rules"`
}

func (h *PlannerHandler) loadPlan(c *gin.Context) (*services.Plan, bool) {
	user := currentUser(c)
	if user.Program == "" {
		respondError(c, errors.Wrap(apperror.ErrInvalidInput, "select a program first"))
		return nil, false
	}
	plan, err := h.planner.Load(c.Request.Context(), user.ID, user.Program)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return plan, true
}

func (h *PlannerHandler) body(plan *services.Plan) ([]byte, error) {
	return json.Marshal(gin.H{"success": true, "plan": planView{
		Program:    plan.Program,
		Categories: plan.Categories,
		Progress:   h.planner.Progress(plan),
		Rules:      plan.Rules,
	}})
}

func (h *PlannerHandler) render(c *gin.Context, plan *services.Plan) {
	body, err := h.body(plan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Show returns the current user's plan with progress against the program.
// The rendered view is cached until the ledger or a program change invalidates it.
func (h *PlannerHandler) Show(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	if user.Program == "" {
		respondError(c, errors.Wrap(apperror.ErrInvalidInput, "select a program first"))
		return
	}

	body, err := utils.ReadThrough(ctx, h.cache, services.PlanCacheKey(user.ID), planCacheTTL, func() ([]byte, error) {
		plan, err := h.planner.Load(ctx, user.ID, user.Program)
		if err != nil {
			return nil, err
		}
		return h.body(plan)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

type assignRequest struct {
	CourseID string  `json:"courseId" binding:"required"`
	Category *string `json:"category"`
}

// Assign moves a course into a category, or out of the plan when category is null.
func (h *PlannerHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	category, err := parseCategory(req.Category)
	if err != nil {
		respondError(c, err)
		return
	}

	plan, ok := h.loadPlan(c)
	if !ok {
		return
	}
	course, err := h.courses.GetByID(c.Request.Context(), req.CourseID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.planner.AssignCourse(c.Request.Context(), plan, *course, category); err != nil {
		respondError(c, err)
		return
	}
	h.render(c, plan)
}

type ethicsRequest struct {
	Enabled            *bool   `json:"enabled" binding:"required"`
	CourseID           string  `json:"courseId"`
	DeductFromCategory *string `json:"deductFromCategory"`
}

// Ethics toggles the ethics course substitution.
func (h *PlannerHandler) Ethics(c *gin.Context) {
	var req ethicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	deductFrom, err := parseCategory(req.DeductFromCategory)
	if err != nil {
		respondError(c, err)
		return
	}

	plan, ok := h.loadPlan(c)
	if !ok {
		return
	}

	var course *models.Course
	if *req.Enabled {
		if req.CourseID == "" {
			respondError(c, errors.Wrap(apperror.ErrInvalidInput, "courseId is required"))
			return
		}
		if course, err = h.courses.GetByID(c.Request.Context(), req.CourseID); err != nil {
			respondError(c, err)
			return
		}
	}

	if err := h.planner.SetEthicsSubstitution(c.Request.Context(), plan, *req.Enabled, course, deductFrom); err != nil {
		respondError(c, err)
		return
	}
	h.render(c, plan)
}

type anchorRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Anchor toggles the anchor course credit.
func (h *PlannerHandler) Anchor(c *gin.Context) {
	var req anchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	plan, ok := h.loadPlan(c)
	if !ok {
		return
	}
	if err := h.planner.SetAnchorCredit(c.Request.Context(), plan, *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	h.render(c, plan)
}

// Courses lists the catalogue, optionally for one department.
func (h *PlannerHandler) Courses(c *gin.Context) {
	courses, err := h.courses.List(c.Request.Context(), c.Query("department"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "courses": courses})
}

func parseCategory(s *string) (*models.CategoryKey, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	key, err := models.ParseCategoryKey(*s)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

package router

import (
	"campuslink/internal/handlers"
	"campuslink/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Forum   *handlers.ForumHandler
	Vote    *handlers.VoteHandler
	Planner *handlers.PlannerHandler
}

// RegisterRoutes mounts the JSON API. Session and LoadUser middleware must already be installed.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	api := r.Group("/api")

	// Public routes
	api.GET("/auth/captcha", h.Auth.Captcha)
	api.POST("/auth/signup", h.Auth.Signup)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/logout", h.Auth.Logout)

	api.GET("/forum/posts", h.Forum.ListPosts)
	api.GET("/forum/posts/:id", h.Forum.Thread)
	api.POST("/forum/views", h.Forum.RecordView)
	api.GET("/courses", h.Planner.Courses)

	// Protected routes
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/user", h.Auth.Me)
		authorized.PUT("/user/program", h.Auth.UpdateProgram)
		authorized.GET("/user/posts", h.Forum.MyPosts)
		authorized.DELETE("/user/posts/:id", h.Forum.DeletePost)

		authorized.POST("/forum/posts", h.Forum.CreatePost)
		authorized.POST("/forum/posts/:id/comments", h.Forum.CreateComment)
		authorized.POST("/forum/posts/:id/like", h.Vote.LikePost)

		authorized.POST("/comments/:commentId/vote", h.Vote.VoteComment)
		authorized.GET("/comments/:commentId/vote-status", h.Vote.VoteStatus)
	}

	planner := api.Group("/planner")
	planner.Use(middleware.AuthRequired())
	{
		planner.GET("", h.Planner.Show)
		planner.POST("/assign", h.Planner.Assign)
		planner.POST("/ethics", h.Planner.Ethics)
		planner.POST("/anchor", h.Planner.Anchor)
	}
}

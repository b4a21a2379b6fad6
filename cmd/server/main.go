package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuslink/internal/config"
	"campuslink/internal/db"
	"campuslink/internal/handlers"
	"campuslink/internal/middleware"
	"campuslink/internal/repositories"
	"campuslink/internal/router"
	"campuslink/internal/services"
	"campuslink/internal/utils"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	conn := db.Init(cfg.DatabaseURL)

	retry := repositories.RetryPolicy{Attempts: cfg.Store.RetryAttempts, Backoff: cfg.Store.RetryBackoff}
	userRepo := repositories.NewUserRepository(conn, retry)
	forumRepo := repositories.NewForumRepository(conn, retry)
	voteRepo := repositories.NewVoteRepository(conn, retry)
	planRepo := repositories.NewPlanRepository(conn, retry)
	courseRepo := repositories.NewCourseRepository(conn, retry)

	cache := newCache(ctx, cfg)

	// Counter reconciliation runs in the background for the life of the server
	reconciler := services.NewReconciler(voteRepo, cache, cfg.ReconcileInterval)
	reconciler.Start(ctx)
	reconciler.StartScheduled(ctx)

	aggregator := services.NewAggregator(voteRepo, cache, reconciler)
	ledger := services.NewLedger(planRepo, cache)

	r := gin.Default()
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("campuslink_session", store))
	r.Use(middleware.LoadUser(userRepo))

	router.RegisterRoutes(r, router.Handlers{
		Auth:    handlers.NewAuthHandler(userRepo, services.NewCaptchaService(), cache),
		Forum:   handlers.NewForumHandler(forumRepo, cache).WithThreadTTL(cfg.Cache.TTL),
		Vote:    handlers.NewVoteHandler(aggregator),
		Planner: handlers.NewPlannerHandler(ledger, courseRepo, cache),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		log.Printf("CampusLink server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	if err := closeCache(cache); err != nil {
		log.Printf("Cache close failed: %v", err)
	}
}

// closeCache releases caches that hold connections, such as the redis client.
func closeCache(c utils.Cache) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func newCache(ctx context.Context, cfg *config.Config) utils.Cache {
	if cfg.Cache.Driver != "redis" {
		return utils.NewLRUCache(cfg.Cache.Size)
	}
	c, err := utils.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, falling back to in-process cache: %v", err)
		return utils.NewLRUCache(cfg.Cache.Size)
	}
	log.Printf("Using redis cache at %s", cfg.Redis.Addr)
	return c
}

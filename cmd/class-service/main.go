package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/learnsphere/class-service/internal/broadcast"
	"github.com/learnsphere/class-service/internal/handler"
	"github.com/learnsphere/class-service/internal/middleware"
	"github.com/learnsphere/class-service/internal/models"
	"github.com/learnsphere/class-service/internal/repository"
	"github.com/learnsphere/class-service/internal/service"
	"github.com/learnsphere/class-service/pkg/cache"
	"github.com/learnsphere/class-service/pkg/config"
	"github.com/learnsphere/class-service/pkg/database"
	"github.com/learnsphere/class-service/pkg/logger"
	corsmiddleware "github.com/learnsphere/class-service/pkg/middleware/cors"
	reqidmiddleware "github.com/learnsphere/class-service/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	tokenIssuer, err := service.NewTokenIssuer(cfg.Meeting.SigningKey)
	if err != nil {
		logr.Sugar().Fatalw("failed to init token issuer", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	classRepo := repository.NewClassRepository(db)
	quickLinkRepo := repository.NewQuickLinkRepository(db)
	queryRepo := repository.NewQueryRepository(db)

	broadcaster := broadcast.NewRedisBroadcaster(redisClient, logr)
	authSvc := service.NewAuthService(cfg.Auth.Secret, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	quickLinkSvc := service.NewQuickLinkService(quickLinkRepo, classRepo, validate, logr)
	querySvc := service.NewQueryService(queryRepo, classRepo, validate, logr)
	meetingSvc := service.NewMeetingService(classRepo, broadcaster, tokenIssuer, metricsSvc, logr, service.MeetingConfig{
		JoinTokenTTL: cfg.Meeting.JoinTokenTTL,
		WriteRetries: cfg.Meeting.WriteRetries,
		BaseURL:      cfg.Meeting.BaseURL,
	})

	classHandler := handler.NewClassHandler(classSvc)
	quickLinkHandler := handler.NewQuickLinkHandler(quickLinkSvc)
	queryHandler := handler.NewQueryHandler(querySvc)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	authed := middleware.JWT(authSvc)

	classes := api.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.GET("/teacher/:teacherId", classHandler.ListByTeacher)
		classes.GET("/student/:studentId", classHandler.ListByStudent)
		classes.POST("/teacher/create-class", authed, middleware.RequireRoles(models.RoleTeacher), classHandler.Create)
		classes.POST("/student/join-class", authed, middleware.RequireRoles(models.RoleStudent), classHandler.Join)
		classes.DELETE("/:id", authed, classHandler.Delete)

		classes.GET("/:id/quick-links", quickLinkHandler.List)
		classes.POST("/:id/quick-links", authed, middleware.RequireRoles(models.RoleTeacher), quickLinkHandler.Create)
		classes.DELETE("/:id/quick-links/:linkId", authed, quickLinkHandler.Delete)

		classes.GET("/:id/queries", authed, queryHandler.List)
		classes.POST("/:id/queries", authed, middleware.RequireRoles(models.RoleStudent), queryHandler.Create)
		classes.PUT("/:id/queries/:queryId/answer", authed, middleware.RequireRoles(models.RoleTeacher), queryHandler.Answer)
	}

	meetings := api.Group("/meetings")
	{
		meetings.POST("/class/:classId/start", authed, meetingHandler.Start)
		meetings.POST("/class/:classId/stop", authed, meetingHandler.Stop)
		meetings.GET("/class/:classId/status", meetingHandler.Status)
		meetings.GET("/class/:classId/join-token", authed, meetingHandler.JoinToken)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}

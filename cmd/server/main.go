package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/coursehub/coursehub-api/api/swagger"
	"github.com/coursehub/coursehub-api/internal/handler"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/realtime"
	"github.com/coursehub/coursehub-api/internal/repository"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/cache"
	"github.com/coursehub/coursehub-api/pkg/config"
	"github.com/coursehub/coursehub-api/pkg/database"
	"github.com/coursehub/coursehub-api/pkg/logger"
	corsmiddleware "github.com/coursehub/coursehub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coursehub/coursehub-api/pkg/middleware/requestid"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

// @title CourseHub API
// @version 1.0.0
// @description Course management platform: chapters, office hours, announcements and student feedback
// @BasePath /api/v1
// @schemes http https

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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached reads without Redis.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	profileRepo := repository.NewProfileRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	hub := realtime.NewHub(realtime.HubConfig{
		SendBufferSize: cfg.Realtime.SendBufferSize,
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		Logger:         logr,
		OnConnect:      metricsSvc.RealtimeConnectionOpened,
		OnDisconnect:   metricsSvc.RealtimeConnectionClosed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chapterFeed := realtime.NewChapterFeed()
	if chapters, err := chapterRepo.List(ctx, models.ChapterFilter{}); err != nil {
		logr.Warn("failed to seed chapter feed", zap.Error(err))
	} else {
		chapterFeed.Replace(chapters)
	}
	hub.AttachChapterFeed(chapterFeed)

	auditSvc := service.NewAuditService(auditRepo, logr, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	})
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	authSvc := service.NewAuthService(profileRepo, auditSvc, nil, logr, service.AuthConfig{
		AccessTokenSecret:   cfg.JWT.Secret,
		AccessTokenExpiry:   cfg.JWT.Expiration,
		RefreshTokenExpiry:  cfg.JWT.RefreshExpiration,
		Issuer:              cfg.JWT.Issuer,
		AdminBootstrapEmail: cfg.Admin.BootstrapEmail,
	})
	profileSvc := service.NewProfileService(profileRepo, auditSvc, nil, logr, cfg.Admin.BootstrapEmail)
	chapterSvc := service.NewChapterService(chapterRepo, cacheRepo, hub, auditSvc, nil, logr, cfg.Cache.ChapterListTTL)
	slotSvc := service.NewSlotService(slotRepo, hub, auditSvc, nil, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, cacheRepo, hub, auditSvc, nil, logr, cfg.Cache.AnnouncementPanelTTL)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, auditSvc, nil, logr)

	var store *storage.LocalStorage
	var signer *storage.SignedURLSigner
	if cfg.Exports.Enabled {
		store, err = storage.NewLocalStorage(cfg.Exports.Dir)
		if err != nil {
			logr.Fatal("failed to prepare export directory", zap.Error(err))
		}
		signer = storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Exports.DownloadTTL)
	}
	exportSvc := service.NewExportService(profileRepo, chapterRepo, feedbackRepo, slotRepo, store, signer, cfg.Exports.MaxRows, logr)

	gate := middleware.NewGate(profileSvc, cfg.Gate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	chapterHandler := handler.NewChapterHandler(chapterSvc, cfg.Gate)
	slotHandler := handler.NewSlotHandler(slotSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc)
	adminHandler := handler.NewAdminHandler(profileSvc, metricsSvc, exportSvc, auditSvc, cfg.Exports)
	realtimeHandler := handler.NewRealtimeHandler(hub, profileSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public routes resolve the access level when a token is present but
	// never require one.
	public := api.Group("")
	public.Use(middleware.OptionalJWT(authSvc), gate.Resolve())
	{
		public.GET("/chapters", chapterHandler.List)
		public.GET("/chapters/:id", chapterHandler.Get)
		public.GET("/availability", slotHandler.List)
		public.GET("/announcements", announcementHandler.Panel)
		public.GET("/feedback", feedbackHandler.ListPublic)
	}

	// Guest routes bounce signed-in callers back home.
	guest := api.Group("/auth")
	guest.Use(middleware.OptionalJWT(authSvc), gate.RequireGuest())
	{
		guest.POST("/signup", authHandler.SignUp)
		guest.POST("/signin", authHandler.SignIn)
	}
	api.POST("/auth/refresh", authHandler.Refresh)

	// Authenticated routes; anonymous callers are redirected to sign in
	// rather than handed a bare 401.
	authed := api.Group("")
	authed.Use(middleware.OptionalJWT(authSvc), gate.RequireAuth())
	{
		authed.GET("/auth/session", authHandler.Session)
		authed.POST("/auth/signout", authHandler.SignOut)
		authed.PUT("/auth/password", authHandler.ChangePassword)
		authed.GET("/profile", profileHandler.Me)

		// Everything below needs an approved account with a loadable profile.
		approved := authed.Group("")
		approved.Use(middleware.RequireApproved())
		{
			approved.PUT("/profile", profileHandler.UpdateMe)
			approved.POST("/feedback", feedbackHandler.Submit)
			approved.GET("/feedback/mine", feedbackHandler.ListOwn)
		}

		staff := authed.Group("")
		staff.Use(middleware.RequireApproved(), middleware.RequireRoles(models.RoleProfessor, models.RoleAdmin))
		{
			staff.POST("/availability", slotHandler.Create)
			staff.PUT("/availability/:id", slotHandler.Update)
			staff.DELETE("/availability/:id", slotHandler.Deactivate)
			staff.GET("/announcements/mine", announcementHandler.ListOwn)
			staff.POST("/announcements", announcementHandler.Create)
			staff.PUT("/announcements/:id", announcementHandler.Update)
			staff.DELETE("/announcements/:id", announcementHandler.Delete)
		}

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireApproved(), middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/profiles", adminHandler.ListProfiles)
			admin.PUT("/profiles/:id/approval", adminHandler.SetApproval)
			admin.GET("/audit-logs", adminHandler.AuditLogs)
			admin.POST("/chapters", chapterHandler.Create)
			admin.PUT("/chapters/:id", chapterHandler.Update)
			admin.DELETE("/chapters/:id", chapterHandler.Delete)
			admin.GET("/feedback", feedbackHandler.ListAll)
			admin.PUT("/feedback/:id", feedbackHandler.Moderate)
			admin.GET("/exports/download", adminHandler.Download)
			admin.GET("/exports/:resource", adminHandler.Export)
		}
	}

	// Websocket clients are programs, not navigating browsers, so a missing
	// token is a plain 401 here instead of a redirect.
	if cfg.Realtime.Enabled {
		ws := api.Group("")
		ws.Use(middleware.JWT(authSvc), gate.RequireAuth())
		ws.GET("/realtime", realtimeHandler.Subscribe)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

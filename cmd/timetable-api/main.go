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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title School Timetable API
// @version 1.0.0
// @description Automatic weekly timetable generation for schools
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, using in-process locks without report cache", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	schoolRepo := repository.NewSchoolDataRepository(db)
	entryRepo := repository.NewTimetableEntryRepository(db)
	runRepo := repository.NewTimetableRunRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	lockRepo := repository.NewRunLockRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.ReportCacheTTL, logr, redisClient != nil)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewAMQPPublisher(cfg.Events.AMQPURL)
	}
	dispatcher := service.NewEventDispatcher(publisher, service.EventDispatcherConfig{
		Queue:   cfg.Events.Queue,
		Workers: cfg.Events.Workers,
		Retries: cfg.Events.Retries,
	}, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	dispatcher.Start(rootCtx)
	defer dispatcher.Stop()

	generatorSvc := service.NewTimetableGeneratorService(
		schoolRepo,
		entryRepo,
		runRepo,
		lockRepo,
		db,
		cacheSvc,
		metricsSvc,
		dispatcher,
		validate,
		logr,
		service.TimetableGeneratorConfig{
			StepBudget:     cfg.Timetable.StepBudget,
			TimeBudget:     cfg.Timetable.TimeBudget,
			BacktrackLimit: cfg.Timetable.BacktrackLimit,
			CompactGaps:    cfg.Timetable.CompactGaps,
			ProposalTTL:    cfg.Timetable.ProposalTTL,
			LockTTL:        cfg.Timetable.LockTTL,
		},
	)
	exportSvc := service.NewTimetableExportService(generatorSvc, logr)

	timetableHandler := handler.NewTimetableHandler(generatorSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Timetable.Enabled {
		api := r.Group(cfg.APIPrefix)
		timetables := api.Group("/schools/:schoolId/timetables")
		timetables.Use(internalmiddleware.JWT(tokenSvc), internalmiddleware.SchoolScope("schoolId"))
		{
			manage := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
			timetables.POST("/generate", manage, timetableHandler.Generate)
			timetables.POST("/proposals/:proposalId/commit", manage, timetableHandler.CommitProposal)
			timetables.GET("/runs/latest", timetableHandler.LatestRun)
			timetables.GET("/entries", timetableHandler.Entries)
		}
	} else {
		logr.Sugar().Infow("timetable routes disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Timetable.TimeBudget + 30*time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

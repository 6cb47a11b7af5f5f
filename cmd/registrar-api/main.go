package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/registrar-api/api/swagger"
	"github.com/noah-isme/registrar-api/internal/app"
	"github.com/noah-isme/registrar-api/internal/handler"
	"github.com/noah-isme/registrar-api/internal/middleware"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/registrar-api/pkg/middleware/requestid"
)

// @title Registrar API
// @version 1.0.0
// @description Academic records core: catalog, admission, grading, transcripts and standing.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.New(cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build application", "error", err)
	}
	core.Start(context.WithoutCancel(ctx))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(core.Metrics))

	handler.Register(r, cfg.APIPrefix, core.Auth, handler.Handlers{
		Auth:        handler.NewAuthHandler(),
		Courses:     handler.NewCourseHandler(core.Courses),
		Sections:    handler.NewSectionHandler(core.Sections),
		Grades:      handler.NewGradeHandler(core.Grades),
		Enrollments: handler.NewEnrollmentHandler(core.Admission),
		Records:     handler.NewRecordsHandler(core.Transcripts, core.Standing),
		Audit:       handler.NewAuditHandler(core.Audit),
		Metrics:     handler.NewMetricsHandler(core.Metrics, core.Store),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("http shutdown failed", "error", err)
	}
	if err := core.Close(shutdownCtx); err != nil {
		logr.Sugar().Errorw("failed to release resources", "error", err)
	}
}

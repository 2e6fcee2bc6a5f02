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
	"go.uber.org/zap"

	"github.com/noah-isme/sma-student-records/api/swagger"
	"github.com/noah-isme/sma-student-records/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-student-records/internal/middleware"
	"github.com/noah-isme/sma-student-records/internal/panel"
	"github.com/noah-isme/sma-student-records/internal/repository"
	"github.com/noah-isme/sma-student-records/internal/service"
	"github.com/noah-isme/sma-student-records/internal/session"
	"github.com/noah-isme/sma-student-records/pkg/cache"
	"github.com/noah-isme/sma-student-records/pkg/config"
	"github.com/noah-isme/sma-student-records/pkg/database"
	"github.com/noah-isme/sma-student-records/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-student-records/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-student-records/pkg/middleware/requestid"
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Staff accounts, refresh tokens and the audit log always live in Postgres.
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var students service.StudentRepository
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		students = repository.NewStudentRepository(db)
	default:
		client, coll, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		students = repository.NewStudentDocumentRepository(coll, cfg.Mongo.Timeout)
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	hub := session.NewHub(redisClient, cfg.Panel.IdentityChannel, logr.Named("identity"))
	revocations := session.NewRevocations(cfg.JWT.Expiration)
	defer hub.Watch(revocations.Observe)()
	go hub.Run(ctx)

	validate := validator.New()
	metrics := service.NewMetricsService()
	users := repository.NewUserRepository(db)

	authService := service.NewAuthService(users, hub, validate, logr.Named("auth"), service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	studentService := service.NewStudentService(students, validate, metrics, logr.Named("students"))
	exportService := service.NewExportService(studentService, logr.Named("export"), nil, nil)
	registry := panel.NewRegistry(studentService, hub, authService, metrics, logr.Named("panel"))
	defer registry.Close()

	router := newRouter(cfg, logr, metrics, checks, handler.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Students: handler.NewStudentHandler(studentService, exportService),
		Panel:    handler.NewPanelHandler(registry),
	}, handler.Guards{
		Required: internalmiddleware.JWT(authService, revocations),
		Optional: internalmiddleware.OptionalJWT(authService, revocations),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, checks map[string]handler.ReadinessCheck, h handler.Handlers, guards handler.Guards) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	ops := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		swagger.SwaggerInfo.BasePath = cfg.APIPrefix
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), h, guards)
	return r
}

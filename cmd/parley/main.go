package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/internal/app"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/capabilities"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/platform/cache"
	"github.com/parleyhq/parley/internal/platform/db"
	"github.com/parleyhq/parley/internal/roles"
	"github.com/parleyhq/parley/internal/shared"
	"github.com/parleyhq/parley/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "parley_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	authzService := authz.NewService(dbpool)
	authzMiddleware := authz.Middleware{Source: authzService, Logger: logger}

	roleMap := roles.NewRoleMap(cfg.RoleMap, cfg.DefaultForumRole)
	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, roleMap)
	rolesHandler := roles.NewHandler(logger, rolesService, authzMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, authzMiddleware)

	capStore := capabilities.NewRepository(dbpool)
	capCache := capabilities.NewCache(redisClient, cfg.CapabilityCacheTTL)
	capService := capabilities.NewService(capStore, rolesService, rolesService, authzService, capabilities.Default(), capCache, auditLogger, logger)
	capHandler := capabilities.NewHandler(logger, capService, authzMiddleware)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		RolesHandler:        rolesHandler,
		CapabilitiesHandler: capHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

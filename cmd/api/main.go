package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/logger"
	"taskhub/internal/queue"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"
	"taskhub/internal/router"
	"taskhub/internal/service"
	"taskhub/internal/storage"
	"taskhub/internal/websocket"
	"taskhub/internal/worker"

	"github.com/gin-gonic/gin"
)

// @title           Taskhub API
// @version         1.0
// @description     Projects, categories and tasks with role based access control.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Init(cfg.Log.Format, cfg.Log.Level)
	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewConnection(cfg.Database, cfg.IsRelease())
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	log.Info("Database connected", "driver", cfg.Database.Driver)

	withRBAC := cfg.RBAC.Backend != string(rbac.BackendNone)
	if err := database.Migrate(db, withRBAC); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// RBAC capability is decided once; the schema flag is still probed per request
	var enforcer *rbac.Enforcer
	if withRBAC && cfg.RBAC.Backend != string(rbac.BackendFallback) {
		enforcer, err = rbac.NewEnforcer(db, log)
		if err != nil {
			log.Warn("Policy enforcer unavailable", "error", err)
			enforcer = nil
		}
	}
	prober := rbac.NewSchemaProber(db, cfg.RBAC.ProbeTimeout, log)
	backend, err := rbac.DetectBackend(ctx, cfg.RBAC.Backend, prober, enforcer, log)
	if err != nil {
		return err
	}

	var checker rbac.PermissionChecker
	var policies service.PolicyStore
	if backend == rbac.BackendFull {
		checker = enforcer
		policies = enforcer
	}

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	jobRepo := repository.NewJobRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)

	resolver := rbac.NewResolver(backend, checker, log)
	gate := rbac.NewGate(backend, checker, roleRepo, log)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	jobQueue, err := queue.New(cfg.Queue, log)
	if err != nil {
		return fmt.Errorf("failed to initialize job queue: %w", err)
	}
	defer jobQueue.Close()

	hub := websocket.NewHub(cfg.Server.Origins(), log)
	go hub.Run(ctx)

	// Services
	access := service.NewRoleAccess(userRepo, roleRepo, policies, resolver, log)
	auditService := service.NewAuditService(auditRepo, log)
	authService := service.NewAuthService(userRepo, tokenRepo, txManager, access, cfg.Auth, log)
	userService := service.NewUserService(userRepo, roleRepo, taskRepo, tokenRepo, txManager, access, log)
	roleService := service.NewRoleService(roleRepo, userRepo, txManager, policies, log)
	projectService := service.NewProjectService(projectRepo, userRepo, auditService, log)
	categoryService := service.NewCategoryService(categoryRepo)
	taskService := service.NewTaskService(taskRepo, projectRepo, categoryRepo, userRepo, auditService, store, hub, log)
	statisticsService := service.NewStatisticsService(statisticsRepo, access, log)
	transferService := service.NewTransferService(jobRepo, taskRepo, projectRepo, categoryRepo, txManager, store, jobQueue, hub, log)

	seedCtx := rbac.WithSchemaPresence(ctx, backend != rbac.BackendNone)
	if err := roleService.SeedDefaultRolesAndPermissions(seedCtx); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	if backend == rbac.BackendFull {
		if err := roleService.SyncPolicies(seedCtx); err != nil {
			return fmt.Errorf("failed to sync policies: %w", err)
		}
	}
	if cfg.Database.SeedUsers {
		if err := userService.SeedDemoUsers(seedCtx); err != nil {
			return fmt.Errorf("failed to seed users: %w", err)
		}
	}

	w := worker.New(jobRepo, jobQueue, transferService, hub, cfg.Queue.Workers, log)
	stopWorker := w.Background(ctx)
	// Every return below drains the worker before the queue is closed.
	defer stopWorker()

	engine, err := router.New(cfg, router.Deps{
		Auth:       authService,
		Users:      userService,
		Roles:      roleService,
		Projects:   projectService,
		Categories: categoryService,
		Tasks:      taskService,
		Transfers:  transferService,
		Audit:      auditService,
		Statistics: statisticsService,
		Prober:     prober,
		Backend:    backend,
		Gate:       gate,
		Hub:        hub,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "address", srv.Addr, "rbac_backend", backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	stopWorker()
	log.Info("Server stopped")
	return nil
}

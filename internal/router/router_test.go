package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/queue"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/internal/storage"
	"taskhub/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type envelope struct {
	Status     string              `json:"status"`
	StatusCode int                 `json:"status_code"`
	Data       json.RawMessage     `json:"data"`
	Error      string              `json:"error"`
	Errors     map[string][]string `json:"errors"`
}

type app struct {
	engine *gin.Engine
	users  service.UserService
	ctx    context.Context
}

const testOrigin = "http://localhost:5173"

func newApp(t *testing.T, backend rbac.Backend) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:   config.ServerConfig{Mode: gin.TestMode, AllowedOrigins: []string{testOrigin}},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "router.db")},
		Auth:     config.AuthConfig{JWTSecret: "router-secret", TokenTTL: time.Hour},
	}
	db, err := database.NewConnection(cfg.Database, true)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, backend != rbac.BackendNone))

	var checker rbac.PermissionChecker
	var policies service.PolicyStore
	if backend == rbac.BackendFull {
		enforcer, err := rbac.NewEnforcer(db, discardLogger)
		require.NoError(t, err)
		checker, policies = enforcer, enforcer
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	q := queue.NewMemoryQueue(10, discardLogger)
	t.Cleanup(func() { q.Close() })
	hub := websocket.NewHub(nil, discardLogger)
	go hub.Run(ctx)

	tx := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	jobRepo := repository.NewJobRepository(db)

	access := service.NewRoleAccess(userRepo, roleRepo, policies, rbac.NewResolver(backend, checker, discardLogger), discardLogger)
	audit := service.NewAuditService(repository.NewAuditRepository(db), discardLogger)
	roles := service.NewRoleService(roleRepo, userRepo, tx, policies, discardLogger)
	deps := Deps{
		Auth:       service.NewAuthService(userRepo, tokenRepo, tx, access, cfg.Auth, discardLogger),
		Users:      service.NewUserService(userRepo, roleRepo, taskRepo, tokenRepo, tx, access, discardLogger),
		Roles:      roles,
		Projects:   service.NewProjectService(projectRepo, userRepo, audit, discardLogger),
		Categories: service.NewCategoryService(categoryRepo),
		Tasks:      service.NewTaskService(taskRepo, projectRepo, categoryRepo, userRepo, audit, store, hub, discardLogger),
		Transfers:  service.NewTransferService(jobRepo, taskRepo, projectRepo, categoryRepo, tx, store, q, hub, discardLogger),
		Audit:      audit,
		Statistics: service.NewStatisticsService(repository.NewStatisticsRepository(db), access, discardLogger),
		Prober:     rbac.NewSchemaProber(db, time.Second, discardLogger),
		Backend:    backend,
		Gate:       rbac.NewGate(backend, checker, roleRepo, discardLogger),
		Hub:        hub,
		Logger:     discardLogger,
	}

	seedCtx := rbac.WithSchemaPresence(ctx, backend != rbac.BackendNone)
	require.NoError(t, roles.SeedDefaultRolesAndPermissions(seedCtx))
	if backend == rbac.BackendFull {
		require.NoError(t, roles.SyncPolicies(seedCtx))
	}

	engine, err := New(cfg, deps)
	require.NoError(t, err)
	return &app{engine: engine, users: deps.Users, ctx: seedCtx}
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (a *app) login(t *testing.T, email string) string {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/login", "", gin.H{"email": email, "password": "password"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func (a *app) createUser(t *testing.T, email, role string) {
	t.Helper()
	_, err := a.users.CreateUser(a.ctx, service.CreateUserRequest{
		Name:                 email,
		Email:                email,
		Password:             "password",
		PasswordConfirmation: "password",
		Role:                 role,
	})
	require.NoError(t, err)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	a := newApp(t, rbac.BackendNone)

	w, _ := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK"}`, w.Body.String())

	w, _ = a.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"API endpoint not found"}`, w.Body.String())
}

func TestNewRequiresAllowedOrigins(t *testing.T) {
	for _, origins := range [][]string{nil, {"", "  "}} {
		cfg := &config.Config{Server: config.ServerConfig{Mode: gin.TestMode, AllowedOrigins: origins}}
		engine, err := New(cfg, Deps{})
		assert.Error(t, err)
		assert.Nil(t, engine)
	}
}

func TestCORSOrigins(t *testing.T) {
	a := newApp(t, rbac.BackendFallback)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", testOrigin)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	a := newApp(t, rbac.BackendFull)

	w, env := a.do(t, http.MethodPost, "/api/register", "", gin.H{
		"name":                  "Ann",
		"email":                 "not-an-email",
		"password":              "short",
		"password_confirmation": "other",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "password")
	assert.Contains(t, env.Errors, "password_confirmation")

	w, _ = a.do(t, http.MethodPost, "/api/login", "", gin.H{"email": "ghost@example.com", "password": "password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t, rbac.BackendFull)

	w, env := a.do(t, http.MethodPost, "/api/register", "", gin.H{
		"name":                  "Ann",
		"email":                 "ann@example.com",
		"password":              "password",
		"password_confirmation": "password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg service.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, rbac.DefaultUserRole, reg.User.Role)
	assert.True(t, reg.User.Permissions.CreateTask)
	assert.True(t, reg.User.Permissions.Delete)
	require.NotEmpty(t, w.Result().Cookies())

	w, env = a.do(t, http.MethodGet, "/api/user", reg.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me service.AuthUser
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "ann@example.com", me.Email)

	w, _ = a.do(t, http.MethodPost, "/api/logout", reg.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = a.do(t, http.MethodGet, "/api/user", reg.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthenticated.", env.Error)
}

func TestRoleAndPermissionGuards(t *testing.T) {
	a := newApp(t, rbac.BackendFull)
	a.createUser(t, "admin@example.com", rbac.AdministratorRole)
	a.createUser(t, "user@example.com", rbac.DefaultUserRole)
	admin := a.login(t, "admin@example.com")
	user := a.login(t, "user@example.com")

	w, _ := a.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	newUser := gin.H{
		"name":                  "Carl",
		"email":                 "carl@example.com",
		"password":              "password",
		"password_confirmation": "password",
		"role":                  rbac.DefaultUserRole,
	}
	w, env := a.do(t, http.MethodPost, "/api/users", user, newUser)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, env.Error, rbac.AdministratorRole)

	w, _ = a.do(t, http.MethodPost, "/api/users", admin, newUser)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	category := gin.H{"name": "Work", "color": "#1f2937"}
	w, env = a.do(t, http.MethodPost, "/api/categories", user, category)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, env.Error, rbac.PermCreateCategories)

	w, _ = a.do(t, http.MethodPost, "/api/categories", admin, category)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = a.do(t, http.MethodGet, "/api/categories", user, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(t, http.MethodGet, "/api/roles", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = a.do(t, http.MethodGet, "/api/roles", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPermissionRoutesDenyWithoutEnforcer(t *testing.T) {
	a := newApp(t, rbac.BackendFallback)
	a.createUser(t, "admin@example.com", rbac.AdministratorRole)
	admin := a.login(t, "admin@example.com")

	w, _ := a.do(t, http.MethodGet, "/api/users", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(t, http.MethodPost, "/api/categories", admin, gin.H{"name": "Work"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	a := newApp(t, rbac.BackendNone)
	a.createUser(t, "user@example.com", rbac.DefaultUserRole)
	user := a.login(t, "user@example.com")

	w, _ := a.do(t, http.MethodGet, "/api/projects/not-a-uuid", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardAndAuditRoutes(t *testing.T) {
	a := newApp(t, rbac.BackendFallback)
	a.createUser(t, "admin@example.com", rbac.AdministratorRole)
	a.createUser(t, "user@example.com", rbac.DefaultUserRole)
	admin := a.login(t, "admin@example.com")
	user := a.login(t, "user@example.com")

	w, _ := a.do(t, http.MethodPost, "/api/projects", user, gin.H{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := a.do(t, http.MethodGet, "/api/statistics", user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats struct {
		TotalProjects int64 `json:"total_projects"`
		TotalTasks    int64 `json:"total_tasks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 1, stats.TotalProjects)
	assert.Zero(t, stats.TotalTasks)

	w, env = a.do(t, http.MethodGet, "/api/statistics?start_date=yesterday", user, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Errors, "start_date")

	w, _ = a.do(t, http.MethodGet, "/api/audit-logs", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = a.do(t, http.MethodGet, "/api/audit-logs?auditable_type=project", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var logs struct {
		Items []struct {
			Event string `json:"event"`
		} `json:"data"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	assert.EqualValues(t, 1, logs.Total)
	require.Len(t, logs.Items, 1)
	assert.Equal(t, "created", logs.Items[0].Event)
}

package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/model"
	"taskhub/internal/queue"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"
	"taskhub/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type notification struct {
	userID uuid.UUID
	event  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(userID uuid.UUID, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID: userID, event: event})
}

func (n *recordingNotifier) events(userID uuid.UUID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.userID == userID {
			out = append(out, s.event)
		}
	}
	return out
}

// testEnv wires every service against a temporary sqlite database.
type testEnv struct {
	ctx     context.Context
	db      *gorm.DB
	backend rbac.Backend

	users      repository.UserRepository
	roles      repository.RoleRepository
	projects   repository.ProjectRepository
	categories repository.CategoryRepository
	tasks      repository.TaskRepository
	tokens     repository.TokenRepository
	jobs       repository.JobRepository

	store    storage.Storage
	queue    *queue.MemoryQueue
	notifier *recordingNotifier

	auth      AuthService
	userSvc   UserService
	roleSvc   RoleService
	project   ProjectService
	category  CategoryService
	task      TaskService
	transfers TransferService
	stats     StatisticsService
	audit     AuditService

	gate *rbac.Gate
}

func newTestEnv(t *testing.T, backend rbac.Backend) *testEnv {
	t.Helper()
	db, err := database.NewConnection(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "service.db"),
	}, true)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, backend != rbac.BackendNone))

	var checker rbac.PermissionChecker
	var policies PolicyStore
	if backend == rbac.BackendFull {
		enforcer, err := rbac.NewEnforcer(db, discardLogger)
		require.NoError(t, err)
		checker, policies = enforcer, enforcer
	}

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	q := queue.NewMemoryQueue(10, discardLogger)
	t.Cleanup(func() { q.Close() })

	e := &testEnv{
		ctx:        rbac.WithSchemaPresence(context.Background(), backend != rbac.BackendNone),
		db:         db,
		backend:    backend,
		users:      repository.NewUserRepository(db),
		roles:      repository.NewRoleRepository(db),
		projects:   repository.NewProjectRepository(db),
		categories: repository.NewCategoryRepository(db),
		tasks:      repository.NewTaskRepository(db),
		tokens:     repository.NewTokenRepository(db),
		jobs:       repository.NewJobRepository(db),
		store:      store,
		queue:      q,
		notifier:   &recordingNotifier{},
	}
	tx := repository.NewTransactionManager(db)
	audit := NewAuditService(repository.NewAuditRepository(db), discardLogger)
	access := NewRoleAccess(e.users, e.roles, policies, rbac.NewResolver(backend, checker, discardLogger), discardLogger)

	e.auth = NewAuthService(e.users, e.tokens, tx, access, config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour}, discardLogger)
	e.userSvc = NewUserService(e.users, e.roles, e.tasks, e.tokens, tx, access, discardLogger)
	e.roleSvc = NewRoleService(e.roles, e.users, tx, policies, discardLogger)
	e.project = NewProjectService(e.projects, e.users, audit, discardLogger)
	e.category = NewCategoryService(e.categories)
	e.task = NewTaskService(e.tasks, e.projects, e.categories, e.users, audit, store, e.notifier, discardLogger)
	e.transfers = NewTransferService(e.jobs, e.tasks, e.projects, e.categories, tx, store, q, e.notifier, discardLogger)
	e.stats = NewStatisticsService(repository.NewStatisticsRepository(db), access, discardLogger)
	e.audit = audit
	e.gate = rbac.NewGate(backend, checker, e.roles, discardLogger)

	if backend != rbac.BackendNone {
		require.NoError(t, e.roleSvc.SeedDefaultRolesAndPermissions(e.ctx))
		require.NoError(t, e.roleSvc.SyncPolicies(e.ctx))
	}
	return e
}

func (e *testEnv) createUser(t *testing.T, email, role string) *model.User {
	t.Helper()
	res, err := e.userSvc.CreateUser(e.ctx, CreateUserRequest{
		Name:                 email,
		Email:                email,
		Password:             "password",
		PasswordConfirmation: "password",
		Role:                 role,
	})
	require.NoError(t, err)
	user, err := e.users.GetByID(e.ctx, res.ID)
	require.NoError(t, err)
	return user
}

func (e *testEnv) createProject(t *testing.T, owner *model.User, name string) *model.Project {
	t.Helper()
	p, err := e.project.CreateProject(e.ctx, owner, ProjectRequest{Name: &name})
	require.NoError(t, err)
	return p
}

func (e *testEnv) createCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	c, err := e.category.CreateCategory(e.ctx, CategoryRequest{Name: &name})
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T {
	return &v
}

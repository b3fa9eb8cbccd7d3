package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

type txKey struct{}

// txScope is the open transaction carried by a context, plus the work
// deferred until it commits.
type txScope struct {
	db *gorm.DB

	mu       sync.Mutex
	onCommit []func()
}

func (s *txScope) queue(fn func()) {
	s.mu.Lock()
	s.onCommit = append(s.onCommit, fn)
	s.mu.Unlock()
}

func (s *txScope) drain() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks := s.onCommit
	s.onCommit = nil
	return hooks
}

func scopeFrom(ctx context.Context) (*txScope, bool) {
	s, ok := ctx.Value(txKey{}).(*txScope)
	return s, ok
}

// TransactionManager runs service work in a single gorm transaction that
// repositories pick up from the context.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

// RunInTx runs fn inside a transaction. Nested calls join the outer one, so a
// rollback anywhere discards everything. Hooks queued with AfterCommit run in
// order once the outermost transaction commits and are dropped on rollback.
func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := scopeFrom(ctx); ok {
		return fn(ctx)
	}

	scope := &txScope{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope.db = tx
		return fn(context.WithValue(ctx, txKey{}, scope))
	})
	if err != nil {
		return err
	}
	for _, hook := range scope.drain() {
		hook()
	}
	return nil
}

// AfterCommit schedules fn for when the transaction in ctx commits. Outside a
// transaction fn runs immediately. Casbin writes go through the root pool, so
// they belong here rather than inside the transaction.
func AfterCommit(ctx context.Context, fn func()) {
	if scope, ok := scopeFrom(ctx); ok {
		scope.queue(fn)
		return
	}
	fn()
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := scopeFrom(ctx)
	return ok
}

// GetDB returns the transaction carried by ctx, or rootDB when there is none.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if scope, ok := scopeFrom(ctx); ok {
		return scope.db.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/egaotan/rwa-conduit/program"
	"go.uber.org/zap"
)

type txKey struct{}

// Backend is the host execution model: operations run one at a time, and a failed
// operation leaves every registered journal exactly as it found it.
type Backend struct {
	logger   *zap.SugaredLogger
	lock     sync.Mutex
	jlock    sync.Mutex
	journals []program.Journal
	height   uint64
	// owned by the goroutine holding lock
	hooks    []func()
}

func NewBackend(logger *zap.SugaredLogger) *Backend {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	backend := &Backend{
		logger:   logger,
		journals: make([]program.Journal, 0),
	}
	return backend
}

func (backend *Backend) Register(j program.Journal) {
	backend.jlock.Lock()
	defer backend.jlock.Unlock()
	backend.journals = append(backend.journals, j)
}

// Height is the number of committed top-level operations.
func (backend *Backend) Height() uint64 {
	backend.jlock.Lock()
	defer backend.jlock.Unlock()
	return backend.height
}

// Atomic runs fn as one operation. A call made with a context that is already inside an
// operation of this backend runs inline, with its own rollback scope.
func (backend *Backend) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if backend.InTx(ctx) {
		return backend.run(ctx, fn)
	}
	hooks, err := backend.atomic(ctx, fn)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		hook()
	}
	return nil
}

func (backend *Backend) atomic(ctx context.Context, fn func(ctx context.Context) error) ([]func(), error) {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	backend.hooks = nil
	if err := backend.run(context.WithValue(ctx, txKey{}, backend), fn); err != nil {
		backend.hooks = nil
		return nil, err
	}
	for _, j := range backend.registered() {
		j.Commit()
	}
	backend.jlock.Lock()
	backend.height++
	backend.jlock.Unlock()
	hooks := backend.hooks
	backend.hooks = nil
	return hooks, nil
}

// OnCommit defers fn until the enclosing top-level operation commits, dropping it if the
// scope that scheduled it reverts. Outside an operation fn runs at once.
func (backend *Backend) OnCommit(ctx context.Context, fn func()) {
	if !backend.InTx(ctx) {
		fn()
		return
	}
	backend.hooks = append(backend.hooks, fn)
}

func (backend *Backend) InTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Backend)
	return ok && owner == backend
}

func (backend *Backend) registered() []program.Journal {
	backend.jlock.Lock()
	defer backend.jlock.Unlock()
	journals := make([]program.Journal, len(backend.journals))
	copy(journals, backend.journals)
	return journals
}

func (backend *Backend) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	journals := backend.registered()
	pending := len(backend.hooks)
	snapshots := make([]int, len(journals))
	for i, j := range journals {
		snapshots[i] = j.Snapshot()
	}
	revert := func() {
		for i := len(journals) - 1; i >= 0; i-- {
			journals[i].RevertToSnapshot(snapshots[i])
		}
		backend.hooks = backend.hooks[:pending]
	}
	defer func() {
		if r := recover(); r != nil {
			revert()
			err = fmt.Errorf("backend: operation panicked: %v", r)
			backend.logger.Errorf("operation reverted: %v", err)
		}
	}()
	if err = fn(ctx); err != nil {
		revert()
		backend.logger.Debugf("operation reverted: %v", err)
		return err
	}
	return nil
}

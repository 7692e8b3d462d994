// Package locking provides in-process exclusive locks keyed by arbitrary
// identifiers. It serializes pipeline runs that target the same root resource.
//
// Waiters are queued FIFO and the lock is handed directly to the head waiter
// on release, so acquisition is starvation-free and never polls.
package locking

import (
	"context"
	"sync"
	"time"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTimeout is used when Acquire is called with a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// entry tracks the hold state of a single key. It exists only while the key
// is held or has waiters; Release of the last interest removes it.
type entry struct {
	held    bool
	waiters []chan struct{}
}

// Manager grants and releases exclusive holds on named keys.
// All state is process-local; a single Manager is shared by every concurrent
// pipeline run and its internal mutations are serialized by one mutex.
type Manager struct {
	mu     sync.Mutex
	keys   map[string]*entry
	logger *zap.Logger
}

// NewManager creates a lock manager. If logger is nil a production zap logger
// is used, matching the rest of the SDK.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Manager{
		keys:   make(map[string]*entry),
		logger: logger,
	}
}

// Acquire blocks until no other caller holds key, then marks it held.
// If the lock cannot be obtained within timeout (or the context is cancelled
// first), it fails with errors.ErrLockTimeout and the key remains with its
// current owner; a timed-out waiter leaves no state behind.
func (m *Manager) Acquire(ctx context.Context, key string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &entry{}
		m.keys[key] = e
	}
	if !e.held {
		e.held = true
		m.mu.Unlock()
		m.logger.Debug("lock acquired", zap.String("key", key))
		return nil
	}

	// Key is held: join the FIFO waiter queue. The channel is closed by
	// Release when ownership is handed to this waiter.
	grant := make(chan struct{})
	e.waiters = append(e.waiters, grant)
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-grant:
		m.logger.Debug("lock acquired after wait", zap.String("key", key))
		return nil
	case <-timer.C:
		return m.abandonWait(key, grant, sdkerrors.NewError("LOCK_TIMEOUT", "timed out waiting for lock "+key, sdkerrors.ErrLockTimeout))
	case <-ctx.Done():
		return m.abandonWait(key, grant, sdkerrors.NewError("LOCK_TIMEOUT", "context cancelled waiting for lock "+key, sdkerrors.ErrLockTimeout))
	}
}

// abandonWait removes a timed-out waiter from the queue. If the grant raced
// ahead of the timeout, this waiter already owns the lock and must pass it on
// before reporting failure.
func (m *Manager) abandonWait(key string, grant chan struct{}, failure error) error {
	m.mu.Lock()
	e, ok := m.keys[key]
	if ok {
		for i, w := range e.waiters {
			if w == grant {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				m.mu.Unlock()
				return failure
			}
		}
	}
	// Not in the queue anymore: the release handed us the lock concurrently
	// with the timeout. Hand it to the next waiter (or clear it) and still
	// report the timeout to the caller.
	if ok {
		m.releaseLocked(key, e)
	}
	m.mu.Unlock()
	return failure
}

// Release clears the held state for key. When waiters are queued the lock is
// handed to the earliest one; otherwise the entry is removed entirely.
// Releasing a key that is not held is a no-op logged at Warn level.
func (m *Manager) Release(key string) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok || !e.held {
		m.mu.Unlock()
		m.logger.Warn("release of unheld lock", zap.String("key", key), zap.Error(sdkerrors.ErrLockNotHeld))
		return
	}
	m.releaseLocked(key, e)
	m.mu.Unlock()
	m.logger.Debug("lock released", zap.String("key", key))
}

// releaseLocked hands the lock to the head waiter or destroys the entry.
// Callers must hold m.mu.
func (m *Manager) releaseLocked(key string, e *entry) {
	if len(e.waiters) > 0 {
		grant := e.waiters[0]
		e.waiters = e.waiters[1:]
		// held stays true for the new owner.
		close(grant)
		return
	}
	delete(m.keys, key)
}

// Held reports whether key is currently held. Intended for observability and
// tests; callers must not use it to decide whether to Acquire.
func (m *Manager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	return ok && e.held
}

// WithLock runs fn while holding key, releasing it on every exit path.
func (m *Manager) WithLock(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if err := m.Acquire(ctx, key, timeout); err != nil {
		return err
	}
	defer m.Release(key)
	return fn()
}

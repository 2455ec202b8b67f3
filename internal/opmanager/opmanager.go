// Package opmanager tracks cooperatively cancellable long-running
// operations by a client-provided operation id (spec.md §4.10).
//
// The original source modeled this with an asyncio.Event registry; here it
// is redesigned per spec.md §9 as a context.CancelFunc registry, so callees
// simply thread ctx through their I/O instead of polling a flag.
package opmanager

import (
	"context"
	"sync"
)

// Manager is a process-wide registry of in-flight operations.
type Manager struct {
	mu  sync.Mutex
	ops map[string]context.CancelFunc
}

func New() *Manager {
	return &Manager{ops: make(map[string]context.CancelFunc)}
}

// Register derives a cancellable context from parent and tracks it under
// operationID. The caller must call the returned release func (typically via
// defer) when the operation's handler returns.
func (m *Manager) Register(parent context.Context, operationID string) (ctx context.Context, release func()) {
	if operationID == "" {
		ctx, cancel := context.WithCancel(parent)
		return ctx, cancel
	}

	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	m.ops[operationID] = cancel
	m.mu.Unlock()

	release = func() {
		m.mu.Lock()
		delete(m.ops, operationID)
		m.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Cancel signals cancellation for operationID if it is currently registered.
// Canceling an unknown id returns false without error, per spec.md §4.10.
func (m *Manager) Cancel(operationID string) bool {
	m.mu.Lock()
	cancel, ok := m.ops[operationID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Track registers operationID, runs fn with the derived context, and
// releases the registration on return — the context-manager equivalent of
// the original's @asynccontextmanager track().
func (m *Manager) Track(parent context.Context, operationID string, fn func(ctx context.Context) error) error {
	ctx, release := m.Register(parent, operationID)
	defer release()
	return fn(ctx)
}

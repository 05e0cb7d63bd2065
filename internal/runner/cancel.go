package runner

import (
	"context"
	"sync"

	"github.com/reconforge/api/pkg/domain/shared"
)

// CancelRegistry maps running jobs to their cancellation functions so
// a stop request can interrupt in-flight tool processes. Each worker
// process registers the jobs it is executing; cross-process stop
// requests are relayed over the redis notifier.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[shared.ID]context.CancelFunc
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[shared.ID]context.CancelFunc)}
}

// Register derives a cancellable context for a job run and tracks its
// cancel function until Release is called.
func (r *CancelRegistry) Register(ctx context.Context, id shared.ID) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()
	return runCtx, cancel
}

// Release removes a job from the registry. Safe to call after Cancel.
func (r *CancelRegistry) Release(id shared.ID) {
	r.mu.Lock()
	delete(r.cancels, id)
	r.mu.Unlock()
}

// Cancel interrupts a running job. It reports whether the job was
// executing in this process.
func (r *CancelRegistry) Cancel(id shared.ID) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Len returns the number of jobs currently executing in this process.
func (r *CancelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

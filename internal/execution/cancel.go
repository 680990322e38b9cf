package execution

import (
	"sync"

	"github.com/google/uuid"
)

// CancelRegistry holds the set of scenarios with a pending cancellation
// request. Cancellation is advisory and cooperative: workers read the flag
// between steps only, an in-flight model call is never interrupted.
type CancelRegistry struct {
	mu  sync.Mutex
	set map[uuid.UUID]struct{}
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{set: make(map[uuid.UUID]struct{}, 4)}
}

func (r *CancelRegistry) Request(scenarioID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set[scenarioID] = struct{}{}
}

func (r *CancelRegistry) Cancelled(scenarioID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[scenarioID]
	return ok
}

// Clear drops any pending request; called at the start of each execution.
func (r *CancelRegistry) Clear(scenarioID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.set, scenarioID)
}

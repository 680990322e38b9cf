// SPDX-License-Identifier: Apache-2.0

package execution

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
)

// logCapacity bounds each scenario's execution log; the oldest entries are
// dropped once the cap is reached.
const logCapacity = 100

// Tracker owns the process-wide execution status table and the per-scenario
// execution logs. Workers mutate it concurrently, but each worker only
// writes its own model's progress entry and its own model-tagged log lines,
// so writers never contend on the same logical slot.
type Tracker struct {
	mu     sync.RWMutex
	status map[uuid.UUID]domain.ExecutionStatus
	logs   map[uuid.UUID][]domain.LogEntry
}

func NewTracker() *Tracker {
	return &Tracker{
		status: make(map[uuid.UUID]domain.ExecutionStatus, 8),
		logs:   make(map[uuid.UUID][]domain.LogEntry, 8),
	}
}

// SetStatus overwrites the scenario's status record.
func (t *Tracker) SetStatus(scenarioID uuid.UUID, st domain.ExecutionStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status[scenarioID] = cloneStatus(st)
}

// UpdateStatus applies fn to the scenario's status record under the lock.
// A zero-valued record is created when none exists yet.
func (t *Tracker) UpdateStatus(scenarioID uuid.UUID, fn func(*domain.ExecutionStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.status[scenarioID]
	fn(&st)
	t.status[scenarioID] = st
}

// Status returns a snapshot of the scenario's status record.
func (t *Tracker) Status(scenarioID uuid.UUID) (domain.ExecutionStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.status[scenarioID]
	if !ok {
		return domain.ExecutionStatus{}, false
	}
	return cloneStatus(st), true
}

// SetModelProgress writes one model's progress entry. Each worker owns its
// own key.
func (t *Tracker) SetModelProgress(scenarioID uuid.UUID, model string, p domain.ModelProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.status[scenarioID]
	if st.ModelProgress == nil {
		st.ModelProgress = make(map[string]domain.ModelProgress, 2)
	}
	st.ModelProgress[model] = p
	t.status[scenarioID] = st
}

// Running lists the scenarios whose most recent execution is still running.
func (t *Tracker) Running() []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uuid.UUID, 0, 2)
	for id, st := range t.status {
		if st.Status == domain.ExecRunning {
			out = append(out, id)
		}
	}
	return out
}

// IsRunning reports whether the scenario's most recent execution is active.
func (t *Tracker) IsRunning(scenarioID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.status[scenarioID]
	return ok && (st.Status == domain.ExecRunning || st.Status == domain.ExecPending)
}

// Log appends one entry to the scenario's bounded execution log.
func (t *Tracker) Log(scenarioID uuid.UUID, level domain.LogLevel, message string, details map[string]any) {
	entry := domain.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Details:   details,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	entries := append(t.logs[scenarioID], entry)
	if len(entries) > logCapacity {
		entries = entries[len(entries)-logCapacity:]
	}
	t.logs[scenarioID] = entries
}

// Logs returns the most recent limit entries in chronological order.
// limit <= 0 returns everything retained.
func (t *Tracker) Logs(scenarioID uuid.UUID, limit int) []domain.LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := t.logs[scenarioID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]domain.LogEntry, len(entries))
	copy(out, entries)
	return out
}

// ClearLogs resets the scenario's log at the start of a new run.
func (t *Tracker) ClearLogs(scenarioID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.logs, scenarioID)
}

// Remove prunes all tracked state for a scenario.
func (t *Tracker) Remove(scenarioID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.status, scenarioID)
	delete(t.logs, scenarioID)
}

func cloneStatus(st domain.ExecutionStatus) domain.ExecutionStatus {
	if st.ModelProgress == nil {
		return st
	}
	progress := make(map[string]domain.ModelProgress, len(st.ModelProgress))
	for k, v := range st.ModelProgress {
		progress[k] = v
	}
	st.ModelProgress = progress
	return st
}

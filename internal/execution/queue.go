// SPDX-License-Identifier: Apache-2.0

package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/metrics"
)

// Queue is the batch execution queue: a FIFO of scenarios drained strictly
// one at a time through the executor. Execution inside a scenario is
// parallel across models; across scenarios it is always serial so resource
// use stays bounded.
type Queue struct {
	baseCtx  context.Context
	store    Store
	executor *Executor
	tracker  *Tracker
	cancels  *CancelRegistry
	logger   *slog.Logger

	mu       sync.Mutex
	items    []domain.QueuedScenario
	draining bool
	current  uuid.UUID
}

// EnqueueReport lists what a batch request actually did.
type EnqueueReport struct {
	Added   []QueueEntryRef `json:"added"`
	Skipped []QueueSkip     `json:"skipped"`
	Length  int             `json:"queue_length"`
}

type QueueEntryRef struct {
	ScenarioID uuid.UUID `json:"scenario_id"`
	Name       string    `json:"name"`
}

type QueueSkip struct {
	ScenarioID uuid.UUID `json:"scenario_id"`
	Reason     string    `json:"reason"`
}

// State is a snapshot of the queue.
type State struct {
	Queue              []domain.QueuedScenario `json:"queue"`
	CurrentlyExecuting *uuid.UUID              `json:"currently_executing,omitempty"`
	IsBatchRunning     bool                    `json:"is_batch_running"`
}

// Enqueue validates and appends the given scenarios. Scenarios that are
// unknown, have no audio-bearing steps, are already queued, or are already
// running are skipped, making the call idempotent against duplicates. The
// drain loop is started if it is not already active.
func (q *Queue) Enqueue(ctx context.Context, scenarioIDs []uuid.UUID) EnqueueReport {
	report := EnqueueReport{Added: []QueueEntryRef{}, Skipped: []QueueSkip{}}

	for _, id := range scenarioIDs {
		sc, err := q.store.GetScenario(ctx, id)
		if err != nil {
			report.Skipped = append(report.Skipped, QueueSkip{ScenarioID: id, Reason: "not found"})
			continue
		}

		eligible := len(sc.EligibleSteps())
		if eligible == 0 {
			report.Skipped = append(report.Skipped, QueueSkip{ScenarioID: id, Reason: "no audio recordings"})
			continue
		}

		q.mu.Lock()
		if q.contains(id) || q.current == id {
			q.mu.Unlock()
			report.Skipped = append(report.Skipped, QueueSkip{ScenarioID: id, Reason: "already queued or running"})
			continue
		}
		if q.tracker.IsRunning(id) {
			q.mu.Unlock()
			report.Skipped = append(report.Skipped, QueueSkip{ScenarioID: id, Reason: "already queued or running"})
			continue
		}

		// Pending must land before the entry is visible to the drain
		// goroutine, or it could overwrite the run's Running status.
		q.tracker.SetStatus(id, domain.ExecutionStatus{
			Status:     domain.ExecPending,
			TotalSteps: eligible,
		})
		q.items = append(q.items, domain.QueuedScenario{
			ScenarioID: id,
			Name:       sc.Name,
			QueuedAt:   time.Now(),
		})
		q.mu.Unlock()

		report.Added = append(report.Added, QueueEntryRef{ScenarioID: id, Name: sc.Name})
	}

	q.mu.Lock()
	report.Length = len(q.items)
	metrics.SetQueueDepth(len(q.items))
	start := !q.draining && len(q.items) > 0
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}

	return report
}

// drain pops and executes queued scenarios one at a time until the queue is
// empty. Scenarios cancelled while still queued are skipped.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			q.logger.Info("batch queue drained")
			return
		}
		head := q.items[0]
		q.items = q.items[1:]
		metrics.SetQueueDepth(len(q.items))
		q.current = head.ScenarioID
		q.mu.Unlock()

		if q.cancels.Cancelled(head.ScenarioID) {
			q.cancels.Clear(head.ScenarioID)
			q.tracker.SetStatus(head.ScenarioID, domain.ExecutionStatus{Status: domain.ExecCancelled})
			q.clearCurrent()
			continue
		}

		q.logger.Info("running queued scenario",
			"scenario_id", head.ScenarioID,
			"name", head.Name,
		)
		if err := q.executor.Execute(q.baseCtx, head.ScenarioID, nil); err != nil {
			q.logger.Error("queued scenario failed to start",
				"scenario_id", head.ScenarioID,
				"error", err,
			)
		}
		q.clearCurrent()
	}
}

func (q *Queue) clearCurrent() {
	q.mu.Lock()
	q.current = uuid.Nil
	q.mu.Unlock()
}

// Snapshot returns the current queue state.
func (q *Queue) Snapshot() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := State{
		Queue:          make([]domain.QueuedScenario, len(q.items)),
		IsBatchRunning: q.draining,
	}
	copy(st.Queue, q.items)
	if q.current != uuid.Nil {
		id := q.current
		st.CurrentlyExecuting = &id
	}
	return st
}

// Remove deletes one queued entry and prunes its tracked state. Removing a
// scenario that is not queued returns domain.ErrNotQueued.
func (q *Queue) Remove(scenarioID uuid.UUID) error {
	q.mu.Lock()
	found := false
	kept := q.items[:0]
	for _, item := range q.items {
		if item.ScenarioID == scenarioID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	metrics.SetQueueDepth(len(q.items))
	q.mu.Unlock()

	if !found {
		return domain.ErrNotQueued
	}
	q.tracker.Remove(scenarioID)
	return nil
}

// Reorder replaces the queue order with the caller-supplied one. Ids not
// currently queued are ignored; queued entries the caller did not name keep
// their original relative order at the tail.
func (q *Queue) Reorder(scenarioIDs []uuid.UUID) []domain.QueuedScenario {
	q.mu.Lock()
	defer q.mu.Unlock()

	remaining := make(map[uuid.UUID]domain.QueuedScenario, len(q.items))
	order := make([]uuid.UUID, 0, len(q.items))
	for _, item := range q.items {
		remaining[item.ScenarioID] = item
		order = append(order, item.ScenarioID)
	}

	next := make([]domain.QueuedScenario, 0, len(q.items))
	for _, id := range scenarioIDs {
		if item, ok := remaining[id]; ok {
			next = append(next, item)
			delete(remaining, id)
		}
	}
	for _, id := range order {
		if item, ok := remaining[id]; ok {
			next = append(next, item)
		}
	}

	q.items = next
	out := make([]domain.QueuedScenario, len(next))
	copy(out, next)
	return out
}

// CancelAll flags every currently running scenario for cancellation and
// empties the queue. It returns how many running scenarios were flagged and
// how many queued entries were dropped.
func (q *Queue) CancelAll() (running int, cleared int) {
	for _, id := range q.tracker.Running() {
		q.cancels.Request(id)
		running++
	}

	q.mu.Lock()
	cleared = len(q.items)
	for _, item := range q.items {
		q.tracker.SetStatus(item.ScenarioID, domain.ExecutionStatus{Status: domain.ExecCancelled})
	}
	q.items = nil
	metrics.SetQueueDepth(0)
	q.mu.Unlock()

	q.logger.Info("batch cancelled", "running", running, "cleared", cleared)
	return running, cleared
}

func (q *Queue) contains(id uuid.UUID) bool {
	for _, item := range q.items {
		if item.ScenarioID == id {
			return true
		}
	}
	return false
}

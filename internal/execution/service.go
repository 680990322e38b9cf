// SPDX-License-Identifier: Apache-2.0

package execution

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/compare"
	"github.com/mouhalis/voiceval/internal/domain"
)

// Deps carries everything the execution service needs from the rest of the
// application.
type Deps struct {
	Store  Store
	Runner StepRunner
	Models []string
	Retry  RetryPolicy
	Logger *slog.Logger
}

// Service is the execution facade: single-scenario runs, single-step
// re-runs, status and log inspection, cancellation, and the batch queue.
// One Service owns all execution state for the process.
type Service struct {
	baseCtx  context.Context
	store    Store
	models   []string
	executor *Executor
	tracker  *Tracker
	cancels  *CancelRegistry
	queue    *Queue
	logger   *slog.Logger
}

// NewService builds the service. baseCtx bounds the lifetime of background
// executions; cancelling it stops them at the next step boundary.
func NewService(baseCtx context.Context, deps Deps) *Service {
	tracker := NewTracker()
	cancels := NewCancelRegistry()
	executor := &Executor{
		store:   deps.Store,
		runner:  deps.Runner,
		models:  deps.Models,
		retry:   deps.Retry,
		tracker: tracker,
		cancels: cancels,
		logger:  deps.Logger,
	}
	return &Service{
		baseCtx:  baseCtx,
		store:    deps.Store,
		models:   deps.Models,
		executor: executor,
		tracker:  tracker,
		cancels:  cancels,
		queue: &Queue{
			baseCtx:  baseCtx,
			store:    deps.Store,
			executor: executor,
			tracker:  tracker,
			cancels:  cancels,
			logger:   deps.Logger,
		},
		logger: deps.Logger,
	}
}

// StartExecution kicks off a full scenario run in the background and
// returns immediately. It fails fast when the scenario is unknown, already
// running, or has no step with an audio recording.
func (s *Service) StartExecution(ctx context.Context, scenarioID uuid.UUID) error {
	sc, err := s.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return err
	}
	if len(sc.EligibleSteps()) == 0 {
		return domain.ErrNoEligibleSteps
	}
	if s.tracker.IsRunning(scenarioID) {
		return domain.ErrAlreadyRunning
	}

	go func() {
		if err := s.executor.Execute(s.baseCtx, scenarioID, nil); err != nil {
			s.logger.Error("background execution failed", "scenario_id", scenarioID, "error", err)
		}
	}()
	return nil
}

// StartStep re-runs a single step in the background, preserving every other
// step's results. The step must have an audio recording.
func (s *Service) StartStep(ctx context.Context, scenarioID, stepID uuid.UUID) error {
	sc, err := s.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return err
	}
	step, ok := sc.StepByID(stepID)
	if !ok {
		return domain.ErrStepNotFound
	}
	if !step.HasAudio() {
		return domain.ErrNoEligibleSteps
	}
	if s.tracker.IsRunning(scenarioID) {
		return domain.ErrAlreadyRunning
	}

	go func() {
		if err := s.executor.Execute(s.baseCtx, scenarioID, []uuid.UUID{stepID}); err != nil {
			s.logger.Error("background step execution failed",
				"scenario_id", scenarioID, "step_id", stepID, "error", err)
		}
	}()
	return nil
}

// Status returns the tracked execution status, defaulting to pending for
// scenarios that have never run.
func (s *Service) Status(scenarioID uuid.UUID) domain.ExecutionStatus {
	st, ok := s.tracker.Status(scenarioID)
	if !ok {
		return domain.ExecutionStatus{Status: domain.ExecPending}
	}
	return st
}

// Cancel requests cancellation of a running execution. Workers observe the
// flag at their next step boundary; already completed work is kept.
func (s *Service) Cancel(scenarioID uuid.UUID) {
	s.cancels.Request(scenarioID)
	s.tracker.Log(scenarioID, domain.LogWarning, "cancellation requested", nil)
	s.logger.Info("cancellation requested", "scenario_id", scenarioID)
}

// Logs returns up to limit most recent execution log entries.
func (s *Service) Logs(scenarioID uuid.UUID, limit int) []domain.LogEntry {
	return s.tracker.Logs(scenarioID, limit)
}

// EnqueueBatch adds scenarios to the batch queue and starts draining it.
func (s *Service) EnqueueBatch(ctx context.Context, scenarioIDs []uuid.UUID) EnqueueReport {
	return s.queue.Enqueue(ctx, scenarioIDs)
}

// QueueState reports the queue contents and whether a batch is draining.
func (s *Service) QueueState() State {
	return s.queue.Snapshot()
}

// RemoveFromQueue drops a queued scenario.
func (s *Service) RemoveFromQueue(scenarioID uuid.UUID) error {
	return s.queue.Remove(scenarioID)
}

// ReorderQueue applies a caller-supplied order to the queue.
func (s *Service) ReorderQueue(scenarioIDs []uuid.UUID) []domain.QueuedScenario {
	return s.queue.Reorder(scenarioIDs)
}

// CancelBatch cancels running executions and clears the queue.
func (s *Service) CancelBatch() (running int, cleared int) {
	return s.queue.CancelAll()
}

// Comparison computes per-step and per-model accuracy for a scenario from
// its stored results.
func (s *Service) Comparison(ctx context.Context, scenarioID uuid.UUID) (compare.ScenarioComparison, error) {
	sc, err := s.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return compare.ScenarioComparison{}, err
	}
	return compare.Scenario(sc, s.models), nil
}

// Models returns the configured model list.
func (s *Service) Models() []string {
	out := make([]string, len(s.models))
	copy(out, s.models)
	return out
}

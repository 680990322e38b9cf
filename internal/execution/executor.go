// SPDX-License-Identifier: Apache-2.0

package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/metrics"
)

// Executor runs one scenario against every configured model. Models are
// fully independent and race freely; the executor only waits for all of
// them and folds their outcomes into the scenario's final status.
type Executor struct {
	store   Store
	runner  StepRunner
	models  []string
	retry   RetryPolicy
	tracker *Tracker
	cancels *CancelRegistry
	logger  *slog.Logger
}

// Execute runs the scenario to completion. A nil stepIDs means a fresh full
// run: every step's prior model results are cleared first. A non-nil subset
// re-runs only the named steps and preserves results on untouched ones.
func (e *Executor) Execute(ctx context.Context, scenarioID uuid.UUID, stepIDs []uuid.UUID) error {
	e.cancels.Clear(scenarioID)
	e.tracker.ClearLogs(scenarioID)
	e.tracker.Log(scenarioID, domain.LogInfo, "starting scenario execution", nil)

	sc, err := e.store.GetScenario(ctx, scenarioID)
	if err != nil {
		e.tracker.SetStatus(scenarioID, domain.ExecutionStatus{
			Status: domain.ExecFailed,
			Error:  err.Error(),
		})
		e.tracker.Log(scenarioID, domain.LogError, "scenario load failed", nil)
		e.logger.Error("scenario load failed", "scenario_id", scenarioID, "error", err)
		return err
	}

	if stepIDs == nil {
		if err := e.store.ClearModelResults(ctx, scenarioID); err != nil {
			e.logger.Error("clear prior results failed", "scenario_id", scenarioID, "error", err)
		} else {
			e.tracker.Log(scenarioID, domain.LogInfo, "cleared previous execution results", nil)
		}
	}

	allSteps := sc.OrderedSteps()
	stepsToRun := eligibleSteps(allSteps, stepIDs)

	progress := make(map[string]domain.ModelProgress, len(e.models))
	for _, model := range e.models {
		progress[model] = domain.ModelProgress{
			TotalSteps: len(stepsToRun),
			Status:     domain.ModelPending,
		}
	}

	e.tracker.SetStatus(scenarioID, domain.ExecutionStatus{
		Status:        domain.ExecRunning,
		TotalModels:   len(e.models),
		TotalSteps:    len(stepsToRun),
		StepsSkipped:  len(allSteps) - len(stepsToRun),
		ModelProgress: progress,
	})
	e.tracker.Log(scenarioID, domain.LogInfo,
		fmt.Sprintf("processing %d step(s) with %d model(s) in parallel", len(stepsToRun), len(e.models)),
		map[string]any{"models": e.models})
	e.logger.Info("scenario execution started",
		"scenario_id", scenarioID,
		"steps", len(stepsToRun),
		"models", len(e.models),
		"subset", stepIDs != nil,
	)

	// One worker per model, concurrently. Workers never abort each other:
	// each returns nil and deposits its outcome (panics included) into its
	// own slot.
	results := make([]workerResult, len(e.models))
	var g errgroup.Group
	for i, model := range e.models {
		w := &modelWorker{
			scenarioID:     scenarioID,
			model:          model,
			steps:          stepsToRun,
			allSteps:       allSteps,
			promptTemplate: sc.SystemPrompt,
			subsetRun:      stepIDs != nil,
			store:          e.store,
			runner:         e.runner,
			retry:          e.retry,
			tracker:        e.tracker,
			cancels:        e.cancels,
			logger:         e.logger,
		}

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = workerResult{
						model:       model,
						stepsFailed: len(stepsToRun),
						err:         fmt.Errorf("worker panic: %v", r),
					}
					e.tracker.SetModelProgress(scenarioID, model, domain.ModelProgress{
						TotalSteps: len(stepsToRun),
						Status:     domain.ModelFailed,
					})
					e.tracker.Log(scenarioID, domain.LogError,
						fmt.Sprintf("[%s] worker crashed: %v", model, r),
						map[string]any{"model": model})
				}
			}()
			results[i] = w.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	finalState := e.aggregate(scenarioID, results)
	metrics.IncScenarioExecution(string(finalState))
	e.logger.Info("scenario execution finished",
		"scenario_id", scenarioID,
		"status", finalState,
	)
	return nil
}

// aggregate folds the worker outcomes into the scenario's terminal status.
// Precedence: Cancelled > Failed > Completed. Partial success stays visible
// through per-model progress and persisted step results.
func (e *Executor) aggregate(scenarioID uuid.UUID, results []workerResult) domain.ExecutionState {
	var (
		processed, failed, completed int
		errs                         []string
		cancelled                    bool
	)

	for _, res := range results {
		processed += res.stepsProcessed
		failed += res.stepsFailed
		cancelled = cancelled || res.cancelled

		switch {
		case res.err != nil:
			errs = append(errs, fmt.Sprintf("%s: %v", res.model, res.err))
		case !res.cancelled:
			completed++
		}
	}

	state := domain.ExecCompleted
	errMsg := ""
	switch {
	case cancelled || e.cancels.Cancelled(scenarioID):
		state = domain.ExecCancelled
	case len(errs) > 0:
		state = domain.ExecFailed
		errMsg = strings.Join(errs, "; ")
	}

	e.tracker.UpdateStatus(scenarioID, func(st *domain.ExecutionStatus) {
		st.Status = state
		st.Error = errMsg
		st.StepsProcessed = processed
		st.StepsFailed = failed
		st.ModelsCompleted = completed
	})

	switch state {
	case domain.ExecCancelled:
		e.tracker.Log(scenarioID, domain.LogWarning, "execution cancelled by user", nil)
	case domain.ExecFailed:
		e.tracker.Log(scenarioID, domain.LogError, "execution failed: "+errMsg, nil)
	default:
		e.tracker.Log(scenarioID, domain.LogSuccess, "scenario execution completed", nil)
	}

	return state
}

// eligibleSteps filters the ordered step list down to the audio-bearing
// steps, intersected with the requested subset when one is given.
func eligibleSteps(ordered []domain.Step, stepIDs []uuid.UUID) []domain.Step {
	var subset map[uuid.UUID]struct{}
	if stepIDs != nil {
		subset = make(map[uuid.UUID]struct{}, len(stepIDs))
		for _, id := range stepIDs {
			subset[id] = struct{}{}
		}
	}

	out := make([]domain.Step, 0, len(ordered))
	for _, st := range ordered {
		if !st.HasAudio() {
			continue
		}
		if subset != nil {
			if _, ok := subset[st.ID]; !ok {
				continue
			}
		}
		out = append(out, st)
	}
	return out
}

// SPDX-License-Identifier: Apache-2.0

package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/metrics"
)

// modelWorker drives one model sequentially through a scenario's steps,
// threading the predicted cart from step to step. Step order is the only
// ordering guarantee the orchestrator gives: a step fully completes
// (success or recorded failure) before the next one starts, because each
// step's cart depends on the previous outcome for that same model.
type modelWorker struct {
	scenarioID     uuid.UUID
	model          string
	steps          []domain.Step // ordered steps to execute
	allSteps       []domain.Step // full ordered list, for cart continuity
	promptTemplate string
	subsetRun      bool

	store   Store
	runner  StepRunner
	retry   RetryPolicy
	tracker *Tracker
	cancels *CancelRegistry
	logger  *slog.Logger
}

type workerResult struct {
	model          string
	stepsProcessed int
	stepsFailed    int
	cancelled      bool
	err            error
}

func (w *modelWorker) run(ctx context.Context) workerResult {
	res := workerResult{model: w.model}

	w.runner.ResetSession(w.scenarioID, w.model)

	w.tracker.Log(w.scenarioID, domain.LogInfo,
		fmt.Sprintf("[%s] starting %d step(s)", w.model, len(w.steps)),
		map[string]any{"model": w.model, "steps": len(w.steps)})

	currentCart := w.seedCart()

	for idx, step := range w.steps {
		// Cooperative cancellation, checked only at step boundaries.
		if w.cancels.Cancelled(w.scenarioID) {
			res.cancelled = true
			w.tracker.SetModelProgress(w.scenarioID, w.model, domain.ModelProgress{
				CurrentStep: idx,
				TotalSteps:  len(w.steps),
				Status:      domain.ModelCancelled,
			})
			w.tracker.Log(w.scenarioID, domain.LogWarning,
				fmt.Sprintf("[%s] cancelled at step %d", w.model, idx+1),
				map[string]any{"model": w.model})
			return res
		}

		w.tracker.SetModelProgress(w.scenarioID, w.model, domain.ModelProgress{
			CurrentStep: idx + 1,
			TotalSteps:  len(w.steps),
			Status:      domain.ModelRunning,
		})
		w.tracker.Log(w.scenarioID, domain.LogInfo,
			fmt.Sprintf("[%s] processing step %d", w.model, step.StepNumber),
			map[string]any{"model": w.model, "step_id": step.ID.String()})

		predicted, err := w.executeStep(ctx, step, currentCart)
		if err != nil {
			res.stepsFailed++
			metrics.IncModelStep(w.model, "failed")
			w.tracker.Log(w.scenarioID, domain.LogError,
				fmt.Sprintf("[%s] step %d failed: %v", w.model, step.StepNumber, err),
				map[string]any{"model": w.model})
			// A single step failure does not abort this model's run.
			continue
		}

		res.stepsProcessed++
		currentCart = predicted
		metrics.IncModelStep(w.model, "succeeded")
		w.tracker.Log(w.scenarioID, domain.LogSuccess,
			fmt.Sprintf("[%s] step %d completed", w.model, step.StepNumber),
			map[string]any{"model": w.model, "cart_items": len(currentCart)})
	}

	w.tracker.SetModelProgress(w.scenarioID, w.model, domain.ModelProgress{
		CurrentStep: len(w.steps),
		TotalSteps:  len(w.steps),
		Status:      domain.ModelCompleted,
	})
	w.tracker.Log(w.scenarioID, domain.LogSuccess,
		fmt.Sprintf("[%s] completed all steps", w.model),
		map[string]any{"model": w.model})

	return res
}

// executeStep invokes one step-call through the retry policy and persists
// either a full success result or a full error result for (step, model).
func (w *modelWorker) executeStep(ctx context.Context, step domain.Step, currentCart []domain.CartItem) ([]domain.CartItem, error) {
	started := time.Now()

	outcome, callErr := w.retry.Invoke(ctx, func() (StepOutcome, error) {
		return w.runner.RunStep(ctx, StepRequest{
			ScenarioID:     w.scenarioID,
			Step:           step,
			Model:          w.model,
			PromptTemplate: w.promptTemplate,
			CurrentCart:    currentCart,
		})
	})
	metrics.ObserveStepCallDuration(time.Since(started))

	if callErr != nil {
		saveErr := w.store.SaveStepResult(ctx, w.scenarioID, step.ID, domain.ModelExecutionResult{
			ModelName:  w.model,
			ExecutedAt: time.Now(),
			Error:      callErr.Error(),
		})
		if saveErr != nil {
			w.logger.Error("persist error result failed",
				"scenario_id", w.scenarioID,
				"step_id", step.ID,
				"model", w.model,
				"error", saveErr,
			)
		}
		return nil, callErr
	}

	result := domain.ModelExecutionResult{
		ModelName:     w.model,
		Transcription: outcome.Transcription,
		Response:      outcome.Response,
		RawResponse:   outcome.RawResponse,
		PredictedCart: outcome.PredictedCart,
		InputTokens:   outcome.InputTokens,
		OutputTokens:  outcome.OutputTokens,
		LatencyMS:     outcome.Latency.Milliseconds(),
		ExecutedAt:    time.Now(),
	}
	if err := w.store.SaveStepResult(ctx, w.scenarioID, step.ID, result); err != nil {
		w.logger.Error("persist step result failed",
			"scenario_id", w.scenarioID,
			"step_id", step.ID,
			"model", w.model,
			"error", err,
		)
		return nil, fmt.Errorf("persist step result: %w", err)
	}

	return outcome.PredictedCart, nil
}

// seedCart resolves the cart this worker starts from. A full run always
// starts empty. A subset re-run inherits the latest preceding step's
// persisted cart for this model, scanning backward by step number, so cart
// continuity survives partial re-runs.
func (w *modelWorker) seedCart() []domain.CartItem {
	if !w.subsetRun || len(w.steps) == 0 {
		return nil
	}

	first := w.steps[0].StepNumber
	for i := len(w.allSteps) - 1; i >= 0; i-- {
		prev := w.allSteps[i]
		if prev.StepNumber >= first {
			continue
		}
		prior, ok := prev.ModelResults[w.model]
		if !ok || prior.Error != "" {
			continue
		}

		w.tracker.Log(w.scenarioID, domain.LogInfo,
			fmt.Sprintf("[%s] seeding cart from step %d", w.model, prev.StepNumber),
			map[string]any{"model": w.model, "cart_items": len(prior.PredictedCart)})
		return prior.PredictedCart
	}

	return nil
}

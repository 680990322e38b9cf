// SPDX-License-Identifier: Apache-2.0

// Package execution is the scenario execution orchestrator: it drives the
// configured models through a scenario's steps, one concurrent worker per
// model with strictly sequential steps inside each worker, and owns the
// process-wide status, log, cancellation and queue state.
//
// Model invocation and persistence are external collaborators reached
// through the narrow interfaces below; the orchestrator knows nothing about
// how either is implemented.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
)

// StepRequest is one step-call against one model.
type StepRequest struct {
	ScenarioID     uuid.UUID
	Step           domain.Step
	Model          string
	PromptTemplate string
	CurrentCart    []domain.CartItem
}

// StepOutcome is a successful step-call result.
type StepOutcome struct {
	PredictedCart []domain.CartItem
	Transcription string
	Response      string
	RawResponse   string
	InputTokens   int
	OutputTokens  int
	Latency       time.Duration
}

// StepRunner is the model-invocation collaborator. Implementations must wrap
// transient quota failures with domain.ErrRateLimited; any other error is
// treated as a plain step failure and never retried.
type StepRunner interface {
	RunStep(ctx context.Context, req StepRequest) (StepOutcome, error)

	// ResetSession drops any conversational state scoped to
	// (scenario, model). Called once before a worker's first step.
	ResetSession(scenarioID uuid.UUID, model string)
}

// Store is the slice of the persistence collaborator the orchestrator needs.
type Store interface {
	GetScenario(ctx context.Context, id uuid.UUID) (domain.Scenario, error)
	SaveStepResult(ctx context.Context, scenarioID, stepID uuid.UUID, result domain.ModelExecutionResult) error
	ClearModelResults(ctx context.Context, scenarioID uuid.UUID) error
}

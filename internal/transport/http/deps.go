// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/compare"
	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/execution"
)

// ScenarioExecutor is the slice of the execution service the router needs.
type ScenarioExecutor interface {
	StartExecution(ctx context.Context, scenarioID uuid.UUID) error
	StartStep(ctx context.Context, scenarioID, stepID uuid.UUID) error
	Status(scenarioID uuid.UUID) domain.ExecutionStatus
	Cancel(scenarioID uuid.UUID)
	Logs(scenarioID uuid.UUID, limit int) []domain.LogEntry

	EnqueueBatch(ctx context.Context, scenarioIDs []uuid.UUID) execution.EnqueueReport
	QueueState() execution.State
	RemoveFromQueue(scenarioID uuid.UUID) error
	ReorderQueue(scenarioIDs []uuid.UUID) []domain.QueuedScenario
	CancelBatch() (running int, cleared int)

	Comparison(ctx context.Context, scenarioID uuid.UUID) (compare.ScenarioComparison, error)
	Models() []string
}

// SPDX-License-Identifier: Apache-2.0

// Package repository persists scenarios, products and settings. Two
// implementations exist: an in-memory store for development and tests, and
// a Postgres-backed store for real deployments. Both satisfy Store.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
)

// ScenarioUpdate is a partial scenario update; nil fields are untouched.
type ScenarioUpdate struct {
	Name         *string
	Description  *string
	SystemPrompt *string
}

// StepUpdate is a partial step update; nil fields are untouched.
type StepUpdate struct {
	VoiceText       *string
	GroundTruthCart *[]domain.CartItem
}

// ProductUpdate is a partial product update; nil fields are untouched.
type ProductUpdate struct {
	Title         *string
	UnitsRelation *int
	MainUnit      *string
	SecondaryUnit *string
}

// Store is the full persistence surface. The execution orchestrator uses
// only a narrow slice of it; the HTTP layer uses all of it.
type Store interface {
	CreateScenario(ctx context.Context, name, description string, numSteps int) (domain.Scenario, error)
	ListScenarios(ctx context.Context) ([]domain.Scenario, error)
	GetScenario(ctx context.Context, id uuid.UUID) (domain.Scenario, error)
	UpdateScenario(ctx context.Context, id uuid.UUID, upd ScenarioUpdate) (domain.Scenario, error)
	DeleteScenario(ctx context.Context, id uuid.UUID) error
	CloneScenario(ctx context.Context, id uuid.UUID, newName string) (domain.Scenario, error)

	AddStep(ctx context.Context, scenarioID uuid.UUID, stepNumber int, groundTruth []domain.CartItem) (domain.Step, error)
	UpdateStep(ctx context.Context, scenarioID, stepID uuid.UUID, upd StepUpdate) (domain.Step, error)
	DeleteStep(ctx context.Context, scenarioID, stepID uuid.UUID) error
	SetStepAudio(ctx context.Context, scenarioID, stepID uuid.UUID, audioPath string) (domain.Step, error)
	SaveStepResult(ctx context.Context, scenarioID, stepID uuid.UUID, result domain.ModelExecutionResult) error
	ClearModelResults(ctx context.Context, scenarioID uuid.UUID) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// SystemPrompt returns the stored default prompt template, falling
	// back to the built-in one when none was ever saved.
	SystemPrompt(ctx context.Context) (string, error)
	SetSystemPrompt(ctx context.Context, template string) error
}

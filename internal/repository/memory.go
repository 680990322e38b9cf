// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/prompt"
)

// MemoryStore keeps everything in process memory. Used when no database is
// configured, and by tests. All returned values are deep copies.
type MemoryStore struct {
	mu        sync.RWMutex
	scenarios map[uuid.UUID]domain.Scenario
	products  []domain.Product
	settings  map[string]string
	logger    *slog.Logger
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		scenarios: make(map[uuid.UUID]domain.Scenario, 8),
		settings:  make(map[string]string, 2),
		logger:    logger,
	}
}

func (s *MemoryStore) CreateScenario(ctx context.Context, name, description string, numSteps int) (domain.Scenario, error) {
	template, _ := s.SystemPrompt(ctx)
	now := time.Now()

	sc := domain.Scenario{
		ID:           uuid.New(),
		Name:         name,
		Description:  description,
		SystemPrompt: template,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i := 1; i <= numSteps; i++ {
		sc.Steps = append(sc.Steps, domain.Step{
			ID:         uuid.New(),
			StepNumber: i,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	s.mu.Lock()
	s.scenarios[sc.ID] = cloneScenario(sc)
	s.mu.Unlock()

	s.logger.Info("scenario created", "scenario_id", sc.ID, "steps", numSteps)
	return sc, nil
}

func (s *MemoryStore) ListScenarios(_ context.Context) ([]domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		out = append(out, cloneScenario(sc))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetScenario(_ context.Context, id uuid.UUID) (domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scenarios[id]
	if !ok {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}
	return cloneScenario(sc), nil
}

func (s *MemoryStore) UpdateScenario(_ context.Context, id uuid.UUID, upd ScenarioUpdate) (domain.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scenarios[id]
	if !ok {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}

	if upd.Name != nil {
		sc.Name = *upd.Name
	}
	if upd.Description != nil {
		sc.Description = *upd.Description
	}
	if upd.SystemPrompt != nil {
		sc.SystemPrompt = *upd.SystemPrompt
	}
	sc.UpdatedAt = time.Now()

	s.scenarios[id] = sc
	return cloneScenario(sc), nil
}

func (s *MemoryStore) DeleteScenario(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scenarios[id]; !ok {
		return domain.ErrScenarioNotFound
	}
	delete(s.scenarios, id)
	s.logger.Info("scenario deleted", "scenario_id", id)
	return nil
}

func (s *MemoryStore) CloneScenario(_ context.Context, id uuid.UUID, newName string) (domain.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.scenarios[id]
	if !ok {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}

	if newName == "" {
		newName = original.Name + " (Copy)"
	}
	now := time.Now()

	clone := domain.Scenario{
		ID:           uuid.New(),
		Name:         newName,
		Description:  original.Description,
		SystemPrompt: original.SystemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Steps keep their recordings and ground truth; execution state does
	// not travel with the clone.
	for _, step := range original.Steps {
		clone.Steps = append(clone.Steps, domain.Step{
			ID:              uuid.New(),
			StepNumber:      step.StepNumber,
			AudioPath:       step.AudioPath,
			VoiceText:       step.VoiceText,
			GroundTruthCart: append([]domain.CartItem(nil), step.GroundTruthCart...),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	s.scenarios[clone.ID] = cloneScenario(clone)
	s.logger.Info("scenario cloned", "scenario_id", id, "clone_id", clone.ID)
	return clone, nil
}

func (s *MemoryStore) AddStep(_ context.Context, scenarioID uuid.UUID, stepNumber int, groundTruth []domain.CartItem) (domain.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scenarios[scenarioID]
	if !ok {
		return domain.Step{}, domain.ErrScenarioNotFound
	}

	if stepNumber <= 0 {
		for _, step := range sc.Steps {
			if step.StepNumber >= stepNumber {
				stepNumber = step.StepNumber + 1
			}
		}
		if stepNumber <= 0 {
			stepNumber = 1
		}
	}

	now := time.Now()
	step := domain.Step{
		ID:              uuid.New(),
		StepNumber:      stepNumber,
		GroundTruthCart: append([]domain.CartItem(nil), groundTruth...),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	sc.Steps = append(sc.Steps, step)
	sort.Slice(sc.Steps, func(i, j int) bool {
		return sc.Steps[i].StepNumber < sc.Steps[j].StepNumber
	})
	sc.UpdatedAt = now
	s.scenarios[scenarioID] = sc

	return cloneStep(step), nil
}

func (s *MemoryStore) UpdateStep(_ context.Context, scenarioID, stepID uuid.UUID, upd StepUpdate) (domain.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateStep(scenarioID, stepID, func(step *domain.Step) {
		if upd.VoiceText != nil {
			step.VoiceText = *upd.VoiceText
		}
		if upd.GroundTruthCart != nil {
			step.GroundTruthCart = append([]domain.CartItem(nil), (*upd.GroundTruthCart)...)
		}
	})
}

func (s *MemoryStore) DeleteStep(_ context.Context, scenarioID, stepID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scenarios[scenarioID]
	if !ok {
		return domain.ErrScenarioNotFound
	}

	for i, step := range sc.Steps {
		if step.ID == stepID {
			sc.Steps = append(sc.Steps[:i], sc.Steps[i+1:]...)
			sc.UpdatedAt = time.Now()
			s.scenarios[scenarioID] = sc
			return nil
		}
	}
	return domain.ErrStepNotFound
}

func (s *MemoryStore) SetStepAudio(_ context.Context, scenarioID, stepID uuid.UUID, audioPath string) (domain.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateStep(scenarioID, stepID, func(step *domain.Step) {
		step.AudioPath = audioPath
	})
}

func (s *MemoryStore) SaveStepResult(_ context.Context, scenarioID, stepID uuid.UUID, result domain.ModelExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.mutateStep(scenarioID, stepID, func(step *domain.Step) {
		if step.ModelResults == nil {
			step.ModelResults = make(map[string]domain.ModelExecutionResult, 2)
		}
		step.ModelResults[result.ModelName] = result
	})
	return err
}

func (s *MemoryStore) ClearModelResults(_ context.Context, scenarioID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scenarios[scenarioID]
	if !ok {
		return domain.ErrScenarioNotFound
	}

	now := time.Now()
	for i := range sc.Steps {
		sc.Steps[i].ModelResults = nil
		sc.Steps[i].UpdatedAt = now
	}
	sc.UpdatedAt = now
	s.scenarios[scenarioID] = sc
	return nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...), nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	p.NormalizeDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.products {
		if existing.ID == p.ID {
			s.products[i] = p
			return p, nil
		}
	}
	s.products = append(s.products, p)
	return p, nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, id string, upd ProductUpdate) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		if s.products[i].ID != id {
			continue
		}
		if upd.Title != nil {
			s.products[i].Title = *upd.Title
		}
		if upd.UnitsRelation != nil {
			s.products[i].UnitsRelation = *upd.UnitsRelation
		}
		if upd.MainUnit != nil {
			s.products[i].MainUnit = *upd.MainUnit
		}
		if upd.SecondaryUnit != nil {
			s.products[i].SecondaryUnit = *upd.SecondaryUnit
		}
		return s.products[i], nil
	}
	return domain.Product{}, domain.ErrProductNotFound
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.products {
		if p.ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return nil
		}
	}
	return domain.ErrProductNotFound
}

const systemPromptKey = "system_prompt"

func (s *MemoryStore) SystemPrompt(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stored, ok := s.settings[systemPromptKey]; ok && stored != "" {
		return stored, nil
	}
	return prompt.DefaultSystemPrompt, nil
}

func (s *MemoryStore) SetSystemPrompt(_ context.Context, template string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[systemPromptKey] = template
	return nil
}

// mutateStep applies fn to one step under the already-held write lock.
func (s *MemoryStore) mutateStep(scenarioID, stepID uuid.UUID, fn func(*domain.Step)) (domain.Step, error) {
	sc, ok := s.scenarios[scenarioID]
	if !ok {
		return domain.Step{}, domain.ErrScenarioNotFound
	}

	for i := range sc.Steps {
		if sc.Steps[i].ID != stepID {
			continue
		}
		fn(&sc.Steps[i])
		now := time.Now()
		sc.Steps[i].UpdatedAt = now
		sc.UpdatedAt = now
		s.scenarios[scenarioID] = sc
		return cloneStep(sc.Steps[i]), nil
	}
	return domain.Step{}, domain.ErrStepNotFound
}

func cloneScenario(sc domain.Scenario) domain.Scenario {
	out := sc
	out.Steps = make([]domain.Step, len(sc.Steps))
	for i, step := range sc.Steps {
		out.Steps[i] = cloneStep(step)
	}
	return out
}

func cloneStep(step domain.Step) domain.Step {
	out := step
	out.GroundTruthCart = append([]domain.CartItem(nil), step.GroundTruthCart...)
	if step.ModelResults != nil {
		out.ModelResults = make(map[string]domain.ModelExecutionResult, len(step.ModelResults))
		for model, res := range step.ModelResults {
			res.PredictedCart = append([]domain.CartItem(nil), res.PredictedCart...)
			out.ModelResults[model] = res
		}
	}
	return out
}

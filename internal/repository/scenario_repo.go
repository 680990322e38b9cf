// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mouhalis/voiceval/internal/domain"
)

func (p *Postgres) CreateScenario(ctx context.Context, name, description string, numSteps int) (domain.Scenario, error) {
	template, err := p.SystemPrompt(ctx)
	if err != nil {
		return domain.Scenario{}, err
	}

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

	if err := p.insertScenario(ctx, sc); err != nil {
		return domain.Scenario{}, err
	}
	p.logger.Info("scenario created", "scenario_id", sc.ID, "steps", numSteps)
	return sc, nil
}

func (p *Postgres) insertScenario(ctx context.Context, sc domain.Scenario) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.logger.Error("begin tx failed", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO scenarios (id, name, description, system_prompt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sc.ID, sc.Name, sc.Description, sc.SystemPrompt, sc.CreatedAt, sc.UpdatedAt); err != nil {
		p.logger.Error("insert scenario failed", "scenario_id", sc.ID, "error", err)
		return err
	}

	for _, step := range sc.Steps {
		gt, err := json.Marshal(emptyIfNil(step.GroundTruthCart))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO steps (id, scenario_id, step_number, audio_path, voice_text, ground_truth, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, step.ID, sc.ID, step.StepNumber, step.AudioPath, step.VoiceText, gt, step.CreatedAt, step.UpdatedAt); err != nil {
			p.logger.Error("insert step failed", "scenario_id", sc.ID, "step", step.StepNumber, "error", err)
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) ListScenarios(ctx context.Context) ([]domain.Scenario, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, description, system_prompt, created_at, updated_at
		FROM scenarios ORDER BY created_at
	`)
	if err != nil {
		p.logger.Error("list scenarios failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Scenario
	for rows.Next() {
		var sc domain.Scenario
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.SystemPrompt, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		steps, err := p.loadSteps(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Steps = steps
	}
	return out, nil
}

func (p *Postgres) GetScenario(ctx context.Context, id uuid.UUID) (domain.Scenario, error) {
	var sc domain.Scenario
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, description, system_prompt, created_at, updated_at
		FROM scenarios WHERE id=$1
	`, id).Scan(&sc.ID, &sc.Name, &sc.Description, &sc.SystemPrompt, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}
	if err != nil {
		p.logger.Error("get scenario failed", "scenario_id", id, "error", err)
		return domain.Scenario{}, err
	}

	sc.Steps, err = p.loadSteps(ctx, id)
	if err != nil {
		return domain.Scenario{}, err
	}
	return sc, nil
}

func (p *Postgres) loadSteps(ctx context.Context, scenarioID uuid.UUID) ([]domain.Step, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, step_number, audio_path, voice_text, ground_truth, created_at, updated_at
		FROM steps WHERE scenario_id=$1 ORDER BY step_number
	`, scenarioID)
	if err != nil {
		p.logger.Error("load steps failed", "scenario_id", scenarioID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var steps []domain.Step
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			step domain.Step
			gt   []byte
		)
		if err := rows.Scan(&step.ID, &step.StepNumber, &step.AudioPath, &step.VoiceText, &gt, &step.CreatedAt, &step.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(gt, &step.GroundTruthCart); err != nil {
			return nil, fmt.Errorf("decode ground truth for step %s: %w", step.ID, err)
		}
		index[step.ID] = len(steps)
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return steps, nil
	}

	resRows, err := p.pool.Query(ctx, `
		SELECT r.step_id, r.model_name, r.transcription, r.response, r.raw_response,
		       r.predicted_cart, r.input_tokens, r.output_tokens, r.latency_ms, r.executed_at, r.error
		FROM step_model_results r
		JOIN steps s ON s.id = r.step_id
		WHERE s.scenario_id=$1
	`, scenarioID)
	if err != nil {
		p.logger.Error("load step results failed", "scenario_id", scenarioID, "error", err)
		return nil, err
	}
	defer resRows.Close()

	for resRows.Next() {
		var (
			stepID    uuid.UUID
			res       domain.ModelExecutionResult
			predicted []byte
		)
		if err := resRows.Scan(&stepID, &res.ModelName, &res.Transcription, &res.Response, &res.RawResponse,
			&predicted, &res.InputTokens, &res.OutputTokens, &res.LatencyMS, &res.ExecutedAt, &res.Error); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(predicted, &res.PredictedCart); err != nil {
			return nil, fmt.Errorf("decode predicted cart for step %s: %w", stepID, err)
		}

		i, ok := index[stepID]
		if !ok {
			continue
		}
		if steps[i].ModelResults == nil {
			steps[i].ModelResults = make(map[string]domain.ModelExecutionResult, 2)
		}
		steps[i].ModelResults[res.ModelName] = res
	}
	return steps, resRows.Err()
}

func (p *Postgres) UpdateScenario(ctx context.Context, id uuid.UUID, upd ScenarioUpdate) (domain.Scenario, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE scenarios SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			system_prompt = COALESCE($4, system_prompt),
			updated_at = NOW()
		WHERE id=$1
	`, id, upd.Name, upd.Description, upd.SystemPrompt)
	if err != nil {
		p.logger.Error("update scenario failed", "scenario_id", id, "error", err)
		return domain.Scenario{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}
	return p.GetScenario(ctx, id)
}

func (p *Postgres) DeleteScenario(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM scenarios WHERE id=$1`, id)
	if err != nil {
		p.logger.Error("delete scenario failed", "scenario_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScenarioNotFound
	}
	p.logger.Info("scenario deleted", "scenario_id", id)
	return nil
}

func (p *Postgres) CloneScenario(ctx context.Context, id uuid.UUID, newName string) (domain.Scenario, error) {
	original, err := p.GetScenario(ctx, id)
	if err != nil {
		return domain.Scenario{}, err
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
	for _, step := range original.Steps {
		clone.Steps = append(clone.Steps, domain.Step{
			ID:              uuid.New(),
			StepNumber:      step.StepNumber,
			AudioPath:       step.AudioPath,
			VoiceText:       step.VoiceText,
			GroundTruthCart: step.GroundTruthCart,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	if err := p.insertScenario(ctx, clone); err != nil {
		return domain.Scenario{}, err
	}
	p.logger.Info("scenario cloned", "scenario_id", id, "clone_id", clone.ID)
	return clone, nil
}

func (p *Postgres) AddStep(ctx context.Context, scenarioID uuid.UUID, stepNumber int, groundTruth []domain.CartItem) (domain.Step, error) {
	if stepNumber <= 0 {
		err := p.pool.QueryRow(ctx, `
			SELECT COALESCE(MAX(step_number), 0) + 1 FROM steps WHERE scenario_id=$1
		`, scenarioID).Scan(&stepNumber)
		if err != nil {
			p.logger.Error("next step number failed", "scenario_id", scenarioID, "error", err)
			return domain.Step{}, err
		}
	}

	gt, err := json.Marshal(emptyIfNil(groundTruth))
	if err != nil {
		return domain.Step{}, err
	}

	now := time.Now()
	step := domain.Step{
		ID:              uuid.New(),
		StepNumber:      stepNumber,
		GroundTruthCart: groundTruth,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := p.pool.Exec(ctx, `
		INSERT INTO steps (id, scenario_id, step_number, audio_path, voice_text, ground_truth, created_at, updated_at)
		VALUES ($1, $2, $3, '', '', $4, $5, $5)
	`, step.ID, scenarioID, step.StepNumber, gt, now); err != nil {
		p.logger.Error("insert step failed", "scenario_id", scenarioID, "error", err)
		return domain.Step{}, err
	}
	return step, nil
}

func (p *Postgres) UpdateStep(ctx context.Context, scenarioID, stepID uuid.UUID, upd StepUpdate) (domain.Step, error) {
	var gt []byte
	if upd.GroundTruthCart != nil {
		var err error
		gt, err = json.Marshal(emptyIfNil(*upd.GroundTruthCart))
		if err != nil {
			return domain.Step{}, err
		}
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE steps SET
			voice_text = COALESCE($3, voice_text),
			ground_truth = COALESCE($4, ground_truth),
			updated_at = NOW()
		WHERE id=$2 AND scenario_id=$1
	`, scenarioID, stepID, upd.VoiceText, gt)
	if err != nil {
		p.logger.Error("update step failed", "step_id", stepID, "error", err)
		return domain.Step{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Step{}, domain.ErrStepNotFound
	}
	return p.getStep(ctx, scenarioID, stepID)
}

func (p *Postgres) DeleteStep(ctx context.Context, scenarioID, stepID uuid.UUID) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM steps WHERE id=$2 AND scenario_id=$1`,
		scenarioID, stepID,
	)
	if err != nil {
		p.logger.Error("delete step failed", "step_id", stepID, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStepNotFound
	}
	return nil
}

func (p *Postgres) SetStepAudio(ctx context.Context, scenarioID, stepID uuid.UUID, audioPath string) (domain.Step, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE steps SET audio_path=$3, updated_at=NOW()
		WHERE id=$2 AND scenario_id=$1
	`, scenarioID, stepID, audioPath)
	if err != nil {
		p.logger.Error("set step audio failed", "step_id", stepID, "error", err)
		return domain.Step{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Step{}, domain.ErrStepNotFound
	}
	return p.getStep(ctx, scenarioID, stepID)
}

func (p *Postgres) getStep(ctx context.Context, scenarioID, stepID uuid.UUID) (domain.Step, error) {
	var (
		step domain.Step
		gt   []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, step_number, audio_path, voice_text, ground_truth, created_at, updated_at
		FROM steps WHERE id=$2 AND scenario_id=$1
	`, scenarioID, stepID).Scan(&step.ID, &step.StepNumber, &step.AudioPath, &step.VoiceText, &gt, &step.CreatedAt, &step.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Step{}, domain.ErrStepNotFound
	}
	if err != nil {
		return domain.Step{}, err
	}
	if err := json.Unmarshal(gt, &step.GroundTruthCart); err != nil {
		return domain.Step{}, err
	}
	return step, nil
}

// SaveStepResult replaces the whole (step, model) result row.
func (p *Postgres) SaveStepResult(ctx context.Context, scenarioID, stepID uuid.UUID, result domain.ModelExecutionResult) error {
	var owned bool
	if err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM steps WHERE id=$2 AND scenario_id=$1)`,
		scenarioID, stepID,
	).Scan(&owned); err != nil {
		return err
	}
	if !owned {
		return domain.ErrStepNotFound
	}

	predicted, err := json.Marshal(emptyIfNil(result.PredictedCart))
	if err != nil {
		return err
	}
	executedAt := result.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO step_model_results
			(step_id, model_name, transcription, response, raw_response, predicted_cart,
			 input_tokens, output_tokens, latency_ms, executed_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (step_id, model_name) DO UPDATE SET
			transcription = EXCLUDED.transcription,
			response = EXCLUDED.response,
			raw_response = EXCLUDED.raw_response,
			predicted_cart = EXCLUDED.predicted_cart,
			input_tokens = EXCLUDED.input_tokens,
			output_tokens = EXCLUDED.output_tokens,
			latency_ms = EXCLUDED.latency_ms,
			executed_at = EXCLUDED.executed_at,
			error = EXCLUDED.error
	`, stepID, result.ModelName, result.Transcription, result.Response, result.RawResponse,
		predicted, result.InputTokens, result.OutputTokens, result.LatencyMS, executedAt, result.Error)
	if err != nil {
		p.logger.Error("save step result failed", "step_id", stepID, "model", result.ModelName, "error", err)
	}
	return err
}

func (p *Postgres) ClearModelResults(ctx context.Context, scenarioID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM step_model_results r
		USING steps s
		WHERE r.step_id = s.id AND s.scenario_id=$1
	`, scenarioID)
	if err != nil {
		p.logger.Error("clear model results failed", "scenario_id", scenarioID, "error", err)
	}
	return err
}

func emptyIfNil(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return []domain.CartItem{}
	}
	return items
}

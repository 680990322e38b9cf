// SPDX-License-Identifier: Apache-2.0

package compare

import (
	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
)

// StepComparison is one step's scoring across every configured model.
type StepComparison struct {
	StepID          uuid.UUID         `json:"step_id"`
	StepNumber      int               `json:"step_number"`
	GroundTruthCart []domain.CartItem `json:"ground_truth_cart"`
	Comparisons     []Result          `json:"comparisons"`
}

// ModelSummary aggregates one model's metrics over every scored step of a
// scenario. Averages divide by StepsScored; they are zero when no step for
// this model holds a stored result.
type ModelSummary struct {
	StepsScored       int     `json:"steps_scored"`
	ExactMatches      int     `json:"exact_matches"`
	AvgPrecision      float64 `json:"avg_precision"`
	AvgRecall         float64 `json:"avg_recall"`
	AvgF1             float64 `json:"avg_f1"`
	ExactMatchRate    float64 `json:"exact_match_rate"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalLatencyMS    int64   `json:"total_latency_ms"`
}

// ScenarioComparison is the full on-demand comparison report for one
// scenario. It is derived from persisted results and never stored.
type ScenarioComparison struct {
	ScenarioID   uuid.UUID               `json:"scenario_id"`
	ScenarioName string                  `json:"scenario_name"`
	Steps        []StepComparison        `json:"steps"`
	Summary      map[string]ModelSummary `json:"summary"`
}

type runningTotals struct {
	precision, recall, f1 float64
	summary               ModelSummary
}

// Scenario scores every step of sc that carries a non-empty ground-truth
// cart, for each configured model. Steps lacking a stored result for a model
// still yield a zero-valued comparison row, but only stored results
// contribute to that model's summary averages.
func Scenario(sc domain.Scenario, models []string) ScenarioComparison {
	totals := make(map[string]*runningTotals, len(models))
	for _, m := range models {
		totals[m] = &runningTotals{}
	}

	out := ScenarioComparison{
		ScenarioID:   sc.ID,
		ScenarioName: sc.Name,
		Steps:        []StepComparison{},
		Summary:      make(map[string]ModelSummary, len(models)),
	}

	for _, step := range sc.OrderedSteps() {
		if len(step.GroundTruthCart) == 0 {
			continue
		}

		sComp := StepComparison{
			StepID:          step.ID,
			StepNumber:      step.StepNumber,
			GroundTruthCart: step.GroundTruthCart,
			Comparisons:     make([]Result, 0, len(models)),
		}

		for _, model := range models {
			result, stored := step.ModelResults[model]

			var predicted []domain.CartItem
			if stored {
				predicted = result.PredictedCart
			}

			cr := Carts(step.GroundTruthCart, predicted, model)
			sComp.Comparisons = append(sComp.Comparisons, cr)

			if stored {
				rt := totals[model]
				rt.precision += cr.Precision
				rt.recall += cr.Recall
				rt.f1 += cr.F1Score
				rt.summary.StepsScored++
				if cr.ExactMatch {
					rt.summary.ExactMatches++
				}
				rt.summary.TotalInputTokens += result.InputTokens
				rt.summary.TotalOutputTokens += result.OutputTokens
				rt.summary.TotalLatencyMS += result.LatencyMS
			}
		}

		out.Steps = append(out.Steps, sComp)
	}

	for _, model := range models {
		rt := totals[model]
		s := rt.summary
		if s.StepsScored > 0 {
			n := float64(s.StepsScored)
			s.AvgPrecision = round4(rt.precision / n)
			s.AvgRecall = round4(rt.recall / n)
			s.AvgF1 = round4(rt.f1 / n)
			s.ExactMatchRate = round4(float64(s.ExactMatches) / n)
		}
		out.Summary[model] = s
	}

	return out
}

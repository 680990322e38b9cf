// SPDX-License-Identifier: Apache-2.0

package compare

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
)

func item(id string, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID:   id,
		ProductName: "Product " + id,
		Quantity:    qty,
		Unit:        domain.UnitBox,
	}
}

func TestCartsMissingAndExtra(t *testing.T) {
	gt := []domain.CartItem{item("1", 3), item("2", 5)}
	pred := []domain.CartItem{item("1", 3), item("3", 1)}

	res := Carts(gt, pred, "gemini-2.5-pro")

	if len(res.MissingItems) != 1 || res.MissingItems[0].ProductID != "2" {
		t.Fatalf("expected product 2 missing, got %+v", res.MissingItems)
	}
	if len(res.ExtraItems) != 1 || res.ExtraItems[0].ProductID != "3" {
		t.Fatalf("expected product 3 extra, got %+v", res.ExtraItems)
	}
	if res.Precision != 0.5 {
		t.Fatalf("expected precision=0.5, got %v", res.Precision)
	}
	if res.Recall != 0.5 {
		t.Fatalf("expected recall=0.5, got %v", res.Recall)
	}
	if res.F1Score != 0.5 {
		t.Fatalf("expected f1=0.5, got %v", res.F1Score)
	}
	if res.ExactMatch {
		t.Fatal("expected exact_match=false")
	}
}

func TestCartsOrderDoesNotMatter(t *testing.T) {
	gt := []domain.CartItem{item("1", 2), item("2", 4), item("3", 1), item("4", 7)}
	pred := []domain.CartItem{item("4", 7), item("2", 4), item("1", 2), item("3", 1)}

	res := Carts(gt, pred, "gemini-2.5-flash")

	if !res.ExactMatch {
		t.Fatalf("expected exact match, got %+v", res)
	}
	if res.Precision != 1.0 || res.Recall != 1.0 || res.F1Score != 1.0 {
		t.Fatalf("expected all metrics 1.0, got p=%v r=%v f1=%v",
			res.Precision, res.Recall, res.F1Score)
	}
}

func TestCartsQuantityMismatch(t *testing.T) {
	gt := []domain.CartItem{item("1", 3)}
	pred := []domain.CartItem{item("1", 5)}

	res := Carts(gt, pred, "m")

	if len(res.QuantityMismatches) != 1 {
		t.Fatalf("expected one mismatch, got %+v", res.QuantityMismatches)
	}
	mm := res.QuantityMismatches[0]
	if mm.ExpectedQuantity != 3 || mm.ActualQuantity != 5 {
		t.Fatalf("unexpected mismatch quantities: %+v", mm)
	}
	if mm.Unit != domain.UnitBox {
		t.Fatalf("expected mismatch to carry ground-truth unit, got %s", mm.Unit)
	}
	if len(res.MissingItems) != 0 || len(res.ExtraItems) != 0 {
		t.Fatalf("mismatched item must not be missing or extra: %+v", res)
	}
	if res.ExactMatch {
		t.Fatal("expected exact_match=false on quantity mismatch")
	}
}

func TestCartsEmptyPredicted(t *testing.T) {
	gt := []domain.CartItem{item("1", 3), item("2", 5)}

	res := Carts(gt, nil, "m")

	if res.Precision != 0 || res.Recall != 0 || res.F1Score != 0 {
		t.Fatalf("expected zero metrics, got %+v", res)
	}
	if len(res.MissingItems) != 2 {
		t.Fatalf("expected both items missing, got %+v", res.MissingItems)
	}
	if res.ExactMatch {
		t.Fatal("expected exact_match=false")
	}
}

func TestCartsEmptyGroundTruth(t *testing.T) {
	pred := []domain.CartItem{item("7", 1)}

	res := Carts(nil, pred, "m")

	if res.Recall != 0 || res.Precision != 0 || res.F1Score != 0 {
		t.Fatalf("expected zero metrics for empty ground truth, got %+v", res)
	}
	if len(res.ExtraItems) != 1 {
		t.Fatalf("expected one extra item, got %+v", res.ExtraItems)
	}
}

func TestCartsBothEmptyIsExactMatch(t *testing.T) {
	res := Carts(nil, nil, "m")
	if !res.ExactMatch {
		t.Fatal("two empty carts must be an exact match")
	}
	if res.F1Score != 0 {
		t.Fatalf("f1 must be 0 when precision+recall=0, got %v", res.F1Score)
	}
}

func TestCartsMetricsStayInRange(t *testing.T) {
	cases := []struct {
		name string
		gt   []domain.CartItem
		pred []domain.CartItem
	}{
		{"disjoint", []domain.CartItem{item("1", 1)}, []domain.CartItem{item("2", 1)}},
		{"subset", []domain.CartItem{item("1", 1), item("2", 2)}, []domain.CartItem{item("1", 1)}},
		{"superset", []domain.CartItem{item("1", 1)}, []domain.CartItem{item("1", 1), item("2", 2)}},
		{"all wrong quantities", []domain.CartItem{item("1", 1), item("2", 2)}, []domain.CartItem{item("1", 9), item("2", 9)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Carts(tc.gt, tc.pred, "m")
			for _, v := range []float64{res.Precision, res.Recall, res.F1Score} {
				if v < 0 || v > 1 {
					t.Fatalf("metric out of [0,1]: %+v", res)
				}
			}
			if res.Precision+res.Recall == 0 && res.F1Score != 0 {
				t.Fatalf("f1 must be 0 when p+r=0: %+v", res)
			}
		})
	}
}

func TestCartsDuplicateIDsLastWriteWins(t *testing.T) {
	gt := []domain.CartItem{item("1", 3)}
	// Duplicate product id in the prediction: the later entry replaces the
	// earlier one before scoring.
	pred := []domain.CartItem{item("1", 9), item("1", 3)}

	res := Carts(gt, pred, "m")

	if len(res.QuantityMismatches) != 0 {
		t.Fatalf("expected later duplicate to win, got %+v", res.QuantityMismatches)
	}
	// Sizes still differ (2 raw entries vs 1), so no exact match and
	// precision is computed over the raw predicted length.
	if res.ExactMatch {
		t.Fatal("expected exact_match=false with duplicate entries")
	}
	if res.Precision != 0.5 {
		t.Fatalf("expected precision=0.5 over raw predicted length, got %v", res.Precision)
	}
}

func TestScenarioAggregation(t *testing.T) {
	models := []string{"a", "b"}
	stepOne := domain.Step{
		ID:              uuid.New(),
		StepNumber:      1,
		AudioPath:       "one.webm",
		GroundTruthCart: []domain.CartItem{item("1", 3)},
		ModelResults: map[string]domain.ModelExecutionResult{
			"a": {
				ModelName:     "a",
				PredictedCart: []domain.CartItem{item("1", 3)},
				InputTokens:   100,
				OutputTokens:  20,
				LatencyMS:     900,
				ExecutedAt:    time.Now(),
			},
		},
	}
	stepTwo := domain.Step{
		ID:              uuid.New(),
		StepNumber:      2,
		AudioPath:       "two.webm",
		GroundTruthCart: []domain.CartItem{item("1", 3), item("2", 1)},
		ModelResults: map[string]domain.ModelExecutionResult{
			"a": {
				ModelName:     "a",
				PredictedCart: []domain.CartItem{item("1", 3)},
				InputTokens:   110,
				OutputTokens:  25,
				LatencyMS:     1100,
				ExecutedAt:    time.Now(),
			},
		},
	}
	// No ground truth: must be excluded from the report entirely.
	stepThree := domain.Step{ID: uuid.New(), StepNumber: 3, AudioPath: "three.webm"}

	sc := domain.Scenario{
		ID:    uuid.New(),
		Name:  "weekly order",
		Steps: []domain.Step{stepThree, stepTwo, stepOne},
	}

	rep := Scenario(sc, models)

	if len(rep.Steps) != 2 {
		t.Fatalf("expected 2 scored steps, got %d", len(rep.Steps))
	}
	if rep.Steps[0].StepNumber != 1 || rep.Steps[1].StepNumber != 2 {
		t.Fatalf("steps must be reported in step_number order: %+v", rep.Steps)
	}

	a := rep.Summary["a"]
	if a.StepsScored != 2 {
		t.Fatalf("expected model a scored on 2 steps, got %d", a.StepsScored)
	}
	if a.ExactMatches != 1 {
		t.Fatalf("expected 1 exact match for model a, got %d", a.ExactMatches)
	}
	if a.TotalInputTokens != 210 || a.TotalOutputTokens != 45 {
		t.Fatalf("unexpected token totals: %+v", a)
	}
	if a.TotalLatencyMS != 2000 {
		t.Fatalf("unexpected latency total: %+v", a)
	}
	// Step 2: precision 1.0 (1 correct / 1 predicted), recall 0.5.
	if a.AvgPrecision != 1.0 {
		t.Fatalf("expected avg precision 1.0, got %v", a.AvgPrecision)
	}
	if a.AvgRecall != 0.75 {
		t.Fatalf("expected avg recall 0.75, got %v", a.AvgRecall)
	}
	if a.ExactMatchRate != 0.5 {
		t.Fatalf("expected exact match rate 0.5, got %v", a.ExactMatchRate)
	}

	// Model b has no stored results: zero comparison rows exist, but the
	// summary stays at zero.
	b := rep.Summary["b"]
	if b.StepsScored != 0 || b.AvgPrecision != 0 || b.ExactMatchRate != 0 {
		t.Fatalf("expected empty summary for model b, got %+v", b)
	}
	if len(rep.Steps[0].Comparisons) != 2 {
		t.Fatalf("expected one comparison row per model, got %+v", rep.Steps[0].Comparisons)
	}
}

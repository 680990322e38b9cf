// SPDX-License-Identifier: Apache-2.0

// Package compare scores predicted shopping carts against hand-authored
// ground truth. Everything in here is pure: no I/O, no clocks, no shared
// state.
package compare

import (
	"math"

	"github.com/mouhalis/voiceval/internal/domain"
)

type QuantityMismatch struct {
	ProductID        string      `json:"product_id"`
	ProductName      string      `json:"product_name"`
	ExpectedQuantity int         `json:"expected_quantity"`
	ActualQuantity   int         `json:"actual_quantity"`
	Unit             domain.Unit `json:"unit"`
}

// Result holds the comparison metrics for one (step, model) pair.
type Result struct {
	ModelName          string             `json:"model_name"`
	Precision          float64            `json:"precision"`
	Recall             float64            `json:"recall"`
	F1Score            float64            `json:"f1_score"`
	ExactMatch         bool               `json:"exact_match"`
	MissingItems       []domain.CartItem  `json:"missing_items"`
	ExtraItems         []domain.CartItem  `json:"extra_items"`
	QuantityMismatches []QuantityMismatch `json:"quantity_mismatches"`
}

// Carts compares a predicted cart against ground truth. Both carts are
// indexed by product id first (last occurrence wins on duplicates), so item
// order never matters. An item counts as correct only when its quantity
// matches exactly; a present item with the wrong quantity is a mismatch, not
// a miss. exact_match additionally requires equal cart sizes.
func Carts(groundTruth, predicted []domain.CartItem, modelName string) Result {
	gt := domain.IndexCart(groundTruth)
	pred := domain.IndexCart(predicted)

	res := Result{
		ModelName:          modelName,
		MissingItems:       []domain.CartItem{},
		ExtraItems:         []domain.CartItem{},
		QuantityMismatches: []QuantityMismatch{},
	}

	correct := 0
	for id, gtItem := range gt {
		predItem, ok := pred[id]
		if !ok {
			res.MissingItems = append(res.MissingItems, gtItem)
			continue
		}
		if predItem.Quantity == gtItem.Quantity {
			correct++
			continue
		}
		res.QuantityMismatches = append(res.QuantityMismatches, QuantityMismatch{
			ProductID:        id,
			ProductName:      gtItem.ProductName,
			ExpectedQuantity: gtItem.Quantity,
			ActualQuantity:   predItem.Quantity,
			Unit:             gtItem.Unit,
		})
	}

	for id, predItem := range pred {
		if _, ok := gt[id]; !ok {
			res.ExtraItems = append(res.ExtraItems, predItem)
		}
	}

	totalGT := len(groundTruth)
	totalPred := len(predicted)

	var precision, recall, f1 float64
	if totalPred > 0 {
		precision = float64(correct) / float64(totalPred)
	}
	if totalGT > 0 {
		recall = float64(correct) / float64(totalGT)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	res.Precision = round4(precision)
	res.Recall = round4(recall)
	res.F1Score = round4(f1)
	res.ExactMatch = len(res.MissingItems) == 0 &&
		len(res.ExtraItems) == 0 &&
		len(res.QuantityMismatches) == 0 &&
		totalGT == totalPred

	return res
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ModelExecutionResult is the outcome of running one step against one model.
// A step holds at most one result per model; re-execution replaces the whole
// record, success and error results are never mixed.
type ModelExecutionResult struct {
	ModelName     string     `json:"model_name"`
	Transcription string     `json:"transcription,omitempty"`
	Response      string     `json:"response,omitempty"`
	RawResponse   string     `json:"raw_response,omitempty"`
	PredictedCart []CartItem `json:"predicted_cart,omitempty"`
	InputTokens   int        `json:"input_tokens"`
	OutputTokens  int        `json:"output_tokens"`
	LatencyMS     int64      `json:"latency_ms"`
	ExecutedAt    time.Time  `json:"executed_at"`
	Error         string     `json:"error,omitempty"`
}

// Step is one conversational turn in a scenario. StepNumber is 1-based and
// defines the only valid execution order. Steps without an audio reference
// are retained but skipped during execution.
type Step struct {
	ID              uuid.UUID                       `json:"step_id"`
	StepNumber      int                             `json:"step_number"`
	AudioPath       string                          `json:"audio_path,omitempty"`
	VoiceText       string                          `json:"voice_text,omitempty"`
	GroundTruthCart []CartItem                      `json:"ground_truth_cart"`
	ModelResults    map[string]ModelExecutionResult `json:"model_results"`
	CreatedAt       time.Time                       `json:"created_at"`
	UpdatedAt       time.Time                       `json:"updated_at"`
}

// HasAudio reports whether the step carries a recorded-audio reference and
// is therefore eligible for execution.
func (s Step) HasAudio() bool {
	return s.AudioPath != ""
}

type Scenario struct {
	ID           uuid.UUID `json:"scenario_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	SystemPrompt string    `json:"system_prompt"`
	Steps        []Step    `json:"steps"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrderedSteps returns the steps sorted by step number. The receiver's slice
// is not modified.
func (sc Scenario) OrderedSteps() []Step {
	out := make([]Step, len(sc.Steps))
	copy(out, sc.Steps)
	sort.Slice(out, func(i, j int) bool {
		return out[i].StepNumber < out[j].StepNumber
	})
	return out
}

// StepByID returns the step with the given id, if present.
func (sc Scenario) StepByID(stepID uuid.UUID) (Step, bool) {
	for _, st := range sc.Steps {
		if st.ID == stepID {
			return st, true
		}
	}
	return Step{}, false
}

// EligibleSteps returns the audio-bearing steps in execution order.
func (sc Scenario) EligibleSteps() []Step {
	out := make([]Step, 0, len(sc.Steps))
	for _, st := range sc.OrderedSteps() {
		if st.HasAudio() {
			out = append(out, st)
		}
	}
	return out
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type ExecutionState string

const (
	ExecPending   ExecutionState = "pending"
	ExecRunning   ExecutionState = "running"
	ExecCompleted ExecutionState = "completed"
	ExecFailed    ExecutionState = "failed"
	ExecCancelled ExecutionState = "cancelled"
)

type ModelRunState string

const (
	ModelPending   ModelRunState = "pending"
	ModelRunning   ModelRunState = "running"
	ModelCompleted ModelRunState = "completed"
	ModelFailed    ModelRunState = "failed"
	ModelCancelled ModelRunState = "cancelled"
)

// ModelProgress is one model worker's current position within a run.
// Each worker writes only its own entry.
type ModelProgress struct {
	CurrentStep int           `json:"current_step"`
	TotalSteps  int           `json:"total_steps"`
	Status      ModelRunState `json:"status"`
}

// ExecutionStatus describes the current or most recent execution of one
// scenario. Overwritten at the start of each run.
type ExecutionStatus struct {
	Status          ExecutionState           `json:"status"`
	Error           string                   `json:"error,omitempty"`
	TotalModels     int                      `json:"total_models"`
	TotalSteps      int                      `json:"total_steps"`
	StepsProcessed  int                      `json:"steps_processed"`
	StepsSkipped    int                      `json:"steps_skipped"`
	StepsFailed     int                      `json:"steps_failed"`
	ModelsCompleted int                      `json:"models_completed"`
	ModelProgress   map[string]ModelProgress `json:"model_progress,omitempty"`
}

// QueuedScenario lives only inside the execution queue; it is removed once
// dequeued. Priority is carried but unused beyond FIFO for now.
type QueuedScenario struct {
	ScenarioID uuid.UUID `json:"scenario_id"`
	Name       string    `json:"scenario_name"`
	QueuedAt   time.Time `json:"queued_at"`
	Priority   int       `json:"priority"`
}

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is one line of a scenario's bounded execution log.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

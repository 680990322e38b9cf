// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/metrics"
	"github.com/mouhalis/voiceval/internal/repository"
)

type createScenarioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	NumSteps    int    `json:"num_steps"`
}

type updateScenarioRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	SystemPrompt *string `json:"system_prompt"`
}

type cloneScenarioRequest struct {
	NewName string `json:"new_name"`
}

type addStepRequest struct {
	StepNumber      int               `json:"step_number"`
	GroundTruthCart []domain.CartItem `json:"ground_truth_cart"`
}

type updateStepRequest struct {
	VoiceText       *string            `json:"voice_text"`
	GroundTruthCart *[]domain.CartItem `json:"ground_truth_cart"`
}

type batchExecuteRequest struct {
	ScenarioIDs []uuid.UUID `json:"scenario_ids"`
}

type reorderQueueRequest struct {
	ScenarioIDs []uuid.UUID `json:"scenario_ids"`
}

type productRequest struct {
	ID            string `json:"product_id"`
	Title         string `json:"title"`
	UnitsRelation int    `json:"units_relation"`
	MainUnit      string `json:"main_unit_description"`
	SecondaryUnit string `json:"secondary_unit_description"`
}

type updateProductRequest struct {
	Title         *string `json:"title"`
	UnitsRelation *int    `json:"units_relation"`
	MainUnit      *string `json:"main_unit_description"`
	SecondaryUnit *string `json:"secondary_unit_description"`
}

type systemPromptRequest struct {
	Prompt string `json:"prompt"`
}

type Deps struct {
	Store     repository.Store
	Executor  ScenarioExecutor
	Logger    *slog.Logger
	UploadDir string
	Version   string
	Commit    string
	BuildDate string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")
	uploadDir := valueOrDefault(deps.UploadDir, "uploads")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- SCENARIOS ----------------

	r.Route("/api/scenarios", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req createScenarioRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			req.Name = strings.TrimSpace(req.Name)
			if req.Name == "" {
				http.Error(w, "scenario name is required", http.StatusBadRequest)
				return
			}
			if req.NumSteps < 1 {
				req.NumSteps = 1
			}

			sc, err := deps.Store.CreateScenario(r.Context(), req.Name, req.Description, req.NumSteps)
			if err != nil {
				logger.Error("create scenario failed", "error", err)
				http.Error(w, "failed to create scenario", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusCreated, map[string]any{"scenario": sc})
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			scenarios, err := deps.Store.ListScenarios(r.Context())
			if err != nil {
				logger.Error("list scenarios failed", "error", err)
				http.Error(w, "failed to list scenarios", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"scenarios": scenarios,
				"total":     len(scenarios),
			})
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			sc, err := deps.Store.GetScenario(r.Context(), id)
			if err != nil {
				writeStoreError(w, logger, "get scenario", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"scenario": sc})
		})

		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			var req updateScenarioRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			sc, err := deps.Store.UpdateScenario(r.Context(), id, repository.ScenarioUpdate{
				Name:         req.Name,
				Description:  req.Description,
				SystemPrompt: req.SystemPrompt,
			})
			if err != nil {
				writeStoreError(w, logger, "update scenario", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"scenario": sc})
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			if err := deps.Store.DeleteScenario(r.Context(), id); err != nil {
				writeStoreError(w, logger, "delete scenario", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "scenario deleted"})
		})

		r.Post("/{id}/clone", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			var req cloneScenarioRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			sc, err := deps.Store.CloneScenario(r.Context(), id, strings.TrimSpace(req.NewName))
			if err != nil {
				writeStoreError(w, logger, "clone scenario", err)
				return
			}

			logger.Info("scenario cloned", "scenario_id", id, "clone_id", sc.ID)
			writeJSON(w, http.StatusCreated, map[string]any{"scenario": sc})
		})

		r.Post("/{id}/reset-prompt", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			prompt, err := deps.Store.SystemPrompt(r.Context())
			if err != nil {
				logger.Error("load system prompt failed", "error", err)
				http.Error(w, "failed to load system prompt", http.StatusInternalServerError)
				return
			}

			sc, err := deps.Store.UpdateScenario(r.Context(), id, repository.ScenarioUpdate{
				SystemPrompt: &prompt,
			})
			if err != nil {
				writeStoreError(w, logger, "reset scenario prompt", err)
				return
			}

			logger.Info("scenario prompt reset", "scenario_id", id)
			writeJSON(w, http.StatusOK, map[string]any{"scenario": sc})
		})

		// ---------------- STEPS ----------------

		r.Post("/{id}/steps", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			var req addStepRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			step, err := deps.Store.AddStep(r.Context(), id, req.StepNumber, req.GroundTruthCart)
			if err != nil {
				writeStoreError(w, logger, "add step", err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"step": step})
		})

		r.Put("/{id}/steps/{stepID}", func(w http.ResponseWriter, r *http.Request) {
			id, stepID, ok := stepIDs(w, r)
			if !ok {
				return
			}

			var req updateStepRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			step, err := deps.Store.UpdateStep(r.Context(), id, stepID, repository.StepUpdate{
				VoiceText:       req.VoiceText,
				GroundTruthCart: req.GroundTruthCart,
			})
			if err != nil {
				writeStoreError(w, logger, "update step", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"step": step})
		})

		r.Delete("/{id}/steps/{stepID}", func(w http.ResponseWriter, r *http.Request) {
			id, stepID, ok := stepIDs(w, r)
			if !ok {
				return
			}

			if err := deps.Store.DeleteStep(r.Context(), id, stepID); err != nil {
				writeStoreError(w, logger, "delete step", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "step deleted"})
		})

		r.Post("/{id}/steps/{stepID}/voice", func(w http.ResponseWriter, r *http.Request) {
			id, stepID, ok := stepIDs(w, r)
			if !ok {
				return
			}

			file, header, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "audio file is required", http.StatusBadRequest)
				return
			}
			defer file.Close()

			contentType := header.Header.Get("Content-Type")
			if !strings.HasPrefix(contentType, "audio/") {
				http.Error(w, "file must be an audio file", http.StatusBadRequest)
				return
			}

			audioPath, err := saveUpload(uploadDir, id, stepID, header.Filename, file)
			if err != nil {
				logger.Error("save audio upload failed", "scenario_id", id, "step_id", stepID, "error", err)
				http.Error(w, "failed to store audio file", http.StatusInternalServerError)
				return
			}

			step, err := deps.Store.SetStepAudio(r.Context(), id, stepID, audioPath)
			if err != nil {
				_ = os.Remove(audioPath)
				writeStoreError(w, logger, "set step audio", err)
				return
			}

			logger.Info("voice file uploaded", "scenario_id", id, "step_id", stepID, "path", audioPath)
			writeJSON(w, http.StatusOK, map[string]any{
				"message":   "voice file uploaded",
				"file_path": audioPath,
				"step":      step,
			})
		})

		// ---------------- EXECUTION ----------------

		r.Post("/{id}/execute", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			if err := deps.Executor.StartExecution(r.Context(), id); err != nil {
				if errors.Is(err, domain.ErrAlreadyRunning) {
					writeJSON(w, http.StatusOK, map[string]any{
						"message": "execution already in progress",
						"status":  deps.Executor.Status(id),
					})
					return
				}
				writeExecutionError(w, logger, "start execution", err)
				return
			}

			writeJSON(w, http.StatusAccepted, map[string]any{
				"message":     "execution started",
				"scenario_id": id.String(),
				"models":      deps.Executor.Models(),
			})
		})

		r.Post("/{id}/steps/{stepID}/execute", func(w http.ResponseWriter, r *http.Request) {
			id, stepID, ok := stepIDs(w, r)
			if !ok {
				return
			}

			if err := deps.Executor.StartStep(r.Context(), id, stepID); err != nil {
				if errors.Is(err, domain.ErrAlreadyRunning) {
					writeJSON(w, http.StatusOK, map[string]any{
						"message": "execution already in progress",
						"status":  deps.Executor.Status(id),
					})
					return
				}
				writeExecutionError(w, logger, "start step execution", err)
				return
			}

			writeJSON(w, http.StatusAccepted, map[string]any{
				"message":     "step execution started",
				"scenario_id": id.String(),
				"step_id":     stepID.String(),
			})
		})

		r.Get("/{id}/execute/status", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}
			writeJSON(w, http.StatusOK, deps.Executor.Status(id))
		})

		r.Post("/{id}/execute/cancel", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			deps.Executor.Cancel(id)
			writeJSON(w, http.StatusOK, map[string]string{
				"message":     "cancellation requested",
				"scenario_id": id.String(),
			})
		})

		r.Get("/{id}/execute/logs", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			limit := 0
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					http.Error(w, "invalid limit", http.StatusBadRequest)
					return
				}
				limit = n
			}

			logs := deps.Executor.Logs(id, limit)
			writeJSON(w, http.StatusOK, map[string]any{
				"logs":  logs,
				"count": len(logs),
			})
		})

		r.Get("/{id}/comparison", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			cmp, err := deps.Executor.Comparison(r.Context(), id)
			if err != nil {
				writeStoreError(w, logger, "compare scenario", err)
				return
			}
			writeJSON(w, http.StatusOK, cmp)
		})

		// ---------------- BATCH QUEUE ----------------

		r.Post("/batch/execute", func(w http.ResponseWriter, r *http.Request) {
			var req batchExecuteRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if len(req.ScenarioIDs) == 0 {
				http.Error(w, "scenario_ids is required", http.StatusBadRequest)
				return
			}

			report := deps.Executor.EnqueueBatch(r.Context(), req.ScenarioIDs)
			writeJSON(w, http.StatusOK, map[string]any{
				"message":      fmt.Sprintf("added %d scenarios to queue, skipped %d", len(report.Added), len(report.Skipped)),
				"added":        report.Added,
				"skipped":      report.Skipped,
				"queue_length": report.Length,
			})
		})

		r.Get("/batch/queue", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, deps.Executor.QueueState())
		})

		r.Post("/batch/queue/remove/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := scenarioID(w, r)
			if !ok {
				return
			}

			if err := deps.Executor.RemoveFromQueue(id); err != nil {
				if errors.Is(err, domain.ErrNotQueued) {
					http.Error(w, "scenario not in queue", http.StatusNotFound)
					return
				}
				logger.Error("remove from queue failed", "scenario_id", id, "error", err)
				http.Error(w, "failed to remove from queue", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"message":     "scenario removed from queue",
				"scenario_id": id.String(),
			})
		})

		r.Post("/batch/queue/reorder", func(w http.ResponseWriter, r *http.Request) {
			var req reorderQueueRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			queue := deps.Executor.ReorderQueue(req.ScenarioIDs)
			writeJSON(w, http.StatusOK, map[string]any{
				"message": "queue reordered",
				"queue":   queue,
			})
		})

		r.Post("/batch/cancel", func(w http.ResponseWriter, r *http.Request) {
			running, cleared := deps.Executor.CancelBatch()
			logger.Info("batch execution cancelled", "running", running, "cleared", cleared)
			writeJSON(w, http.StatusOK, map[string]any{
				"message":            "batch execution cancelled",
				"cancelled_running":  running,
				"cleared_from_queue": cleared,
			})
		})
	})

	// ---------------- PRODUCTS ----------------

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			products, err := deps.Store.ListProducts(r.Context())
			if err != nil {
				logger.Error("list products failed", "error", err)
				http.Error(w, "failed to list products", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"products": products,
				"total":    len(products),
			})
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req productRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			req.ID = strings.TrimSpace(req.ID)
			if req.ID == "" || strings.TrimSpace(req.Title) == "" {
				http.Error(w, "product_id and title are required", http.StatusBadRequest)
				return
			}

			p, err := deps.Store.CreateProduct(r.Context(), domain.Product{
				ID:            req.ID,
				Title:         req.Title,
				UnitsRelation: req.UnitsRelation,
				MainUnit:      req.MainUnit,
				SecondaryUnit: req.SecondaryUnit,
			})
			if err != nil {
				logger.Error("create product failed", "product_id", req.ID, "error", err)
				http.Error(w, "failed to create product", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusCreated, p)
		})

		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")

			var req updateProductRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			p, err := deps.Store.UpdateProduct(r.Context(), id, repository.ProductUpdate{
				Title:         req.Title,
				UnitsRelation: req.UnitsRelation,
				MainUnit:      req.MainUnit,
				SecondaryUnit: req.SecondaryUnit,
			})
			if err != nil {
				writeStoreError(w, logger, "update product", err)
				return
			}
			writeJSON(w, http.StatusOK, p)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")

			if err := deps.Store.DeleteProduct(r.Context(), id); err != nil {
				writeStoreError(w, logger, "delete product", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
		})
	})

	// ---------------- SETTINGS ----------------

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/system-prompt", func(w http.ResponseWriter, r *http.Request) {
			prompt, err := deps.Store.SystemPrompt(r.Context())
			if err != nil {
				logger.Error("load system prompt failed", "error", err)
				http.Error(w, "failed to load system prompt", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
		})

		r.Put("/system-prompt", func(w http.ResponseWriter, r *http.Request) {
			var req systemPromptRequest
			if err := decodeJSON(r, &req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if strings.TrimSpace(req.Prompt) == "" {
				http.Error(w, "prompt is required", http.StatusBadRequest)
				return
			}

			if err := deps.Store.SetSystemPrompt(r.Context(), req.Prompt); err != nil {
				logger.Error("save system prompt failed", "error", err)
				http.Error(w, "failed to save system prompt", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"prompt": req.Prompt})
		})

		r.Post("/system-prompt/reset", func(w http.ResponseWriter, r *http.Request) {
			if err := deps.Store.SetSystemPrompt(r.Context(), ""); err != nil {
				logger.Error("reset system prompt failed", "error", err)
				http.Error(w, "failed to reset system prompt", http.StatusInternalServerError)
				return
			}

			prompt, err := deps.Store.SystemPrompt(r.Context())
			if err != nil {
				logger.Error("load system prompt failed", "error", err)
				http.Error(w, "failed to load system prompt", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes exactly one JSON object into dst, rejecting unknown
// fields and trailing content. An empty body leaves dst zeroed.
func decodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

func scenarioID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid scenario ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func stepIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, ok := scenarioID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	stepID, err := uuid.Parse(chi.URLParam(r, "stepID"))
	if err != nil {
		http.Error(w, "invalid step ID", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return id, stepID, true
}

// writeStoreError maps repository sentinels to HTTP statuses. Anything
// unrecognized is logged and reported as a 500.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrScenarioNotFound):
		http.Error(w, "scenario not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrStepNotFound):
		http.Error(w, "step not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrProductNotFound):
		http.Error(w, "product not found", http.StatusNotFound)
	default:
		logger.Error(op+" failed", "error", err)
		http.Error(w, "failed to "+op, http.StatusInternalServerError)
	}
}

func writeExecutionError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrScenarioNotFound):
		http.Error(w, "scenario not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrStepNotFound):
		http.Error(w, "step not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNoEligibleSteps):
		http.Error(w, "no steps have audio recordings", http.StatusBadRequest)
	default:
		logger.Error(op+" failed", "error", err)
		http.Error(w, "failed to "+op, http.StatusInternalServerError)
	}
}

func saveUpload(uploadDir string, scenarioID, stepID uuid.UUID, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := filepath.Ext(filename)
	path := filepath.Join(uploadDir, fmt.Sprintf("%s_%s%s", scenarioID, stepID, ext))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}

// SPDX-License-Identifier: Apache-2.0

// Package llm invokes the Gemini models through the Google GenAI SDK. It
// keeps one chat session per (scenario, model) pair so each model carries
// its own conversational history across a scenario's steps.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/execution"
	"github.com/mouhalis/voiceval/internal/prompt"
)

// CatalogSource supplies the product catalog rendered into every system
// prompt.
type CatalogSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Runner is the Gemini-backed step executor.
type Runner struct {
	client   *genai.Client
	catalog  CatalogSource
	audioDir string
	logger   *slog.Logger

	mu    sync.Mutex
	chats map[string]*genai.Chat
}

// NewRunner builds a runner talking to the Gemini API. audioDir resolves
// bare audio filenames stored on steps; stored paths that already carry a
// directory are opened as-is.
func NewRunner(ctx context.Context, apiKey, audioDir string, catalog CatalogSource, logger *slog.Logger) (*Runner, error) {
	if apiKey == "" {
		return nil, errors.New("llm: api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}

	return &Runner{
		client:   client,
		catalog:  catalog,
		audioDir: audioDir,
		logger:   logger,
		chats:    make(map[string]*genai.Chat, 4),
	}, nil
}

// RunStep sends one step's audio to the model's chat session and parses the
// structured reply. Quota failures come back wrapped in
// domain.ErrRateLimited so the caller's retry policy can tell them apart.
func (r *Runner) RunStep(ctx context.Context, req execution.StepRequest) (execution.StepOutcome, error) {
	audioPath := r.resolveAudio(req.Step.AudioPath)
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return execution.StepOutcome{}, fmt.Errorf("read audio %s: %w", audioPath, err)
	}

	products, err := r.listProducts(ctx)
	if err != nil {
		r.logger.Warn("catalog unavailable, prompting with empty catalog", "error", err)
	}
	systemPrompt := prompt.Build(req.PromptTemplate, products, req.CurrentCart)

	chat, err := r.chatFor(ctx, req.ScenarioID, req.Model, systemPrompt)
	if err != nil {
		return execution.StepOutcome{}, classify(fmt.Errorf("create chat session: %w", err))
	}

	r.logger.Info("sending step audio",
		"scenario_id", req.ScenarioID,
		"model", req.Model,
		"step", req.Step.StepNumber,
		"audio_bytes", len(audio),
	)

	started := time.Now()
	resp, err := chat.SendMessage(ctx, genai.Part{
		InlineData: &genai.Blob{MIMEType: audioMIMEType(audioPath), Data: audio},
	})
	latency := time.Since(started)
	if err != nil {
		return execution.StepOutcome{}, classify(err)
	}

	raw := resp.Text()
	parsed, err := parseStructured(raw)
	if err != nil {
		return execution.StepOutcome{}, fmt.Errorf("parse model response: %w", err)
	}

	outcome := execution.StepOutcome{
		PredictedCart: parsed.cart(products),
		Transcription: parsed.Transcription,
		Response:      parsed.AIResponse,
		RawResponse:   raw,
		Latency:       latency,
	}
	if resp.UsageMetadata != nil {
		outcome.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outcome.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return outcome, nil
}

// ResetSession drops the chat history for one (scenario, model) pair.
func (r *Runner) ResetSession(scenarioID uuid.UUID, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, sessionKey(scenarioID, model))
}

// chatFor returns the pair's chat session, creating it on first use. The
// system instruction is fixed at creation; later steps inject cart state
// through the conversation itself.
func (r *Runner) chatFor(ctx context.Context, scenarioID uuid.UUID, model, systemPrompt string) (*genai.Chat, error) {
	key := sessionKey(scenarioID, model)

	r.mu.Lock()
	chat, ok := r.chats[key]
	r.mu.Unlock()
	if ok {
		return chat, nil
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    orderResponseSchema(),
	}
	chat, err := r.client.Chats.Create(ctx, model, cfg, nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.chats[key] = chat
	r.mu.Unlock()
	return chat, nil
}

func (r *Runner) listProducts(ctx context.Context) ([]domain.Product, error) {
	if r.catalog == nil {
		return nil, nil
	}
	return r.catalog.ListProducts(ctx)
}

// resolveAudio locates a step's recording on disk. Uploaded steps store the
// full relative path (upload dir included), which must be opened verbatim;
// only bare filenames are resolved against audioDir.
func (r *Runner) resolveAudio(path string) string {
	if path == "" || filepath.IsAbs(path) || r.audioDir == "" {
		return path
	}
	if filepath.Dir(path) != "." {
		return path
	}
	return filepath.Join(r.audioDir, path)
}

func sessionKey(scenarioID uuid.UUID, model string) string {
	return fmt.Sprintf("scenario_%s_model_%s", scenarioID, model)
}

// structuredReply mirrors the response schema.
type structuredReply struct {
	Transcription string      `json:"transcription"`
	AIResponse    string      `json:"ai_response"`
	Order         []orderItem `json:"order"`
}

type orderItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

func parseStructured(raw string) (structuredReply, error) {
	var reply structuredReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return structuredReply{}, err
	}
	return reply, nil
}

// cart maps the model's order lines onto cart items, resolving product
// names through the catalog when it has the id.
func (p structuredReply) cart(products []domain.Product) []domain.CartItem {
	titles := make(map[string]string, len(products))
	for _, prod := range products {
		titles[prod.ID] = prod.Title
	}

	items := make([]domain.CartItem, 0, len(p.Order))
	for _, line := range p.Order {
		name, ok := titles[line.ID]
		if !ok {
			name = "Product " + line.ID
		}
		unit := line.Unit
		if unit == "" {
			unit = string(domain.UnitBox)
		}
		items = append(items, domain.CartItem{
			ProductID:   line.ID,
			ProductName: name,
			Quantity:    line.Quantity,
			Unit:        domain.Unit(unit),
		})
	}
	return items
}

// classify wraps quota-class failures with domain.ErrRateLimited. The API
// error code is authoritative; the keyword scan catches wrapped transport
// errors that lost their type.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Message)
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{
		"rate limit", "rate_limit", "quota", "429",
		"resource exhausted", "resourceexhausted", "too many requests",
	} {
		if strings.Contains(msg, keyword) {
			return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}
	}
	return err
}

func audioMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/webm"
	}
}

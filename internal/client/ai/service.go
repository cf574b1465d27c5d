// Package ai generates supportive feedback for diary entries through an LLM
// provider, with a moderation gate that intercepts self-harm risk before any
// coaching text is produced.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/onelinediary/client/internal/client/models"
	"github.com/onelinediary/client/internal/logging"
)

// historyLimit is how many prior one-liners feed the prompt and the
// moderation payload.
const historyLimit = 7

// insightSchema constrains the model output to the three feedback parts.
var insightSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"reflection": {"type": "string", "maxLength": 200},
		"micro_step": {"type": "string", "maxLength": 200},
		"question": {"type": "string", "maxLength": 200}
	},
	"required": ["reflection", "micro_step", "question"],
	"additionalProperties": false
}`)

// Remote is the slice of the remote store the pipeline needs.
type Remote interface {
	GetByID(ctx context.Context, id string) (*models.Entry, error)
	History(ctx context.Context, beforeDate string, limit int) ([]models.Entry, error)
	SetFeedback(ctx context.Context, id, lastUpdatedAt, feedback, generatedAt string) (bool, error)
}

// Feedback is the outcome of one generation request. Parts is nil when the
// moderation gate substituted the fixed supportive message.
type Feedback struct {
	Text        string
	Parts       *models.FeedbackParts
	Flagged     bool
	GeneratedAt string
}

// Service runs the feedback pipeline: fetch the entry and its history, gate
// on moderation, generate, and conditionally persist against the entry's
// concurrency token.
type Service struct {
	remote Remote
	client *openai.Client
	model  string
	log    logging.Logger

	now func() time.Time
}

// NewService builds the pipeline. A nil client means no credentials are
// configured: moderation is skipped and canned feedback parts are composed
// instead of calling the provider.
func NewService(remote Remote, client *openai.Client, model string, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Service{
		remote: remote,
		client: client,
		model:  model,
		log:    log,
		now:    time.Now,
	}
}

// RequestFeedback generates and stores feedback for the entry. It returns
// (nil, nil) when the entry changed after the pipeline read it and the result
// was discarded as stale.
func (s *Service) RequestFeedback(ctx context.Context, entryID string) (*Feedback, error) {
	entry, err := s.remote.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	history, err := s.remote.History(ctx, entry.EntryDate, historyLimit)
	if err != nil {
		s.log.Warn(ctx, "fetching entry history failed", "error", err)
		history = nil
	}

	lines := make([]string, 0, len(history)+1)
	lines = append(lines, entry.OneLiner)
	for _, h := range history {
		lines = append(lines, h.OneLiner)
	}

	if s.selfHarmRisk(ctx, strings.Join(lines, "\n")) {
		generatedAt := s.now().UTC().Format(time.RFC3339)
		ok, err := s.remote.SetFeedback(ctx, entry.ID, entry.UpdatedAt, models.SelfHarmFallback, generatedAt)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return &Feedback{Text: models.SelfHarmFallback, Flagged: true, GeneratedAt: generatedAt}, nil
	}

	text, parts, err := s.generate(ctx, entry, history)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC().Format(time.RFC3339)
	ok, err := s.remote.SetFeedback(ctx, entry.ID, entry.UpdatedAt, text, generatedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Feedback{Text: text, Parts: &parts, GeneratedAt: generatedAt}, nil
}

// selfHarmRisk checks the combined one-liners against the moderation model.
// The gate fails open: a moderation outage must not block feedback, only a
// positive signal substitutes the supportive message.
func (s *Service) selfHarmRisk(ctx context.Context, content string) bool {
	if s.client == nil {
		return false
	}
	resp, err := s.client.Moderations(ctx, openai.ModerationRequest{
		Model: openai.ModerationOmniLatest,
		Input: content,
	})
	if err != nil {
		s.log.Warn(ctx, "moderation check failed", "error", err)
		return false
	}
	if len(resp.Results) == 0 {
		return false
	}
	c := resp.Results[0].Categories
	return c.SelfHarm || c.SelfHarmIntent || c.SelfHarmInstructions
}

func (s *Service) generate(ctx context.Context, entry *models.Entry, history []models.Entry) (string, models.FeedbackParts, error) {
	if s.client == nil {
		text, parts := Compose(fallbackParts(entry.OneLiner))
		return text, parts, nil
	}

	language := DetectLanguage(entry.OneLiner)
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(language)},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(entry, history)},
		},
		Temperature: 0.7,
		MaxTokens:   400,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "insight_feedback",
				Schema: insightSchema,
			},
		},
	})
	if err != nil {
		return "", models.FeedbackParts{}, fmt.Errorf("feedback generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", models.FeedbackParts{}, fmt.Errorf("feedback generation: empty completion")
	}

	var parsed models.FeedbackParts
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return "", models.FeedbackParts{}, fmt.Errorf("decoding feedback parts: %w", err)
	}

	text, parts := Compose(parsed)
	return text, parts, nil
}

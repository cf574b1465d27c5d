package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/onelinediary/client/internal/client/models"
)

type fakeRemote struct {
	entry      *models.Entry
	history    []models.Entry
	historyErr error

	applied bool
	setErr  error

	gotFeedback    string
	gotToken       string
	gotGeneratedAt string
	setCalls       int
}

func (f *fakeRemote) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	if f.entry == nil {
		return nil, errors.New("no entry")
	}
	return f.entry, nil
}

func (f *fakeRemote) History(ctx context.Context, beforeDate string, limit int) ([]models.Entry, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeRemote) SetFeedback(ctx context.Context, id, lastUpdatedAt, feedback, generatedAt string) (bool, error) {
	f.setCalls++
	f.gotToken = lastUpdatedAt
	f.gotFeedback = feedback
	f.gotGeneratedAt = generatedAt
	return f.applied, f.setErr
}

type providerState struct {
	flagSelfHarm     bool
	moderationStatus int
	chatCalls        int
	moderationCalls  int
	lastUserPrompt   string
	parts            models.FeedbackParts
}

// newProvider stands in for the LLM API: one handler for moderations, one
// for chat completions.
func newProvider(t *testing.T, state *providerState) *openai.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/moderations", func(w http.ResponseWriter, r *http.Request) {
		state.moderationCalls++
		if state.moderationStatus != 0 {
			w.WriteHeader(state.moderationStatus)
			return
		}
		fmt.Fprintf(w, `{"id":"m1","model":"omni-moderation-latest","results":[{"flagged":%t,"categories":{"self-harm":%t},"category_scores":{}}]}`,
			state.flagSelfHarm, state.flagSelfHarm)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		state.chatCalls++
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		state.lastUserPrompt = req.Messages[1].Content

		content, err := json.Marshal(state.parts)
		require.NoError(t, err)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": string(content)}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func entryFixture() *models.Entry {
	return &models.Entry{
		ID:        "e1",
		EntryDate: "2024-03-05",
		OneLiner:  "a good day with a long walk",
		UpdatedAt: "2024-03-05T09:00:00Z",
	}
}

func TestService_RequestFeedback_GeneratesAndStores(t *testing.T) {
	remote := &fakeRemote{
		entry: entryFixture(),
		history: []models.Entry{
			{EntryDate: "2024-03-04", OneLiner: "tired but fine"},
			{EntryDate: "2024-03-03", OneLiner: "calm evening"},
		},
		applied: true,
	}
	state := &providerState{parts: models.FeedbackParts{
		Reflection: "A steady rhythm is forming",
		MicroStep:  "Walk the same loop tomorrow",
		Question:   "What made the walk restorative",
	}}
	svc := NewService(remote, newProvider(t, state), "", nil)

	fb, err := svc.RequestFeedback(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	require.False(t, fb.Flagged)
	require.Equal(t, "A steady rhythm is forming. Walk the same loop tomorrow. What made the walk restorative?", fb.Text)
	require.NotNil(t, fb.Parts)
	require.Equal(t, "What made the walk restorative?", fb.Parts.Question)

	require.Equal(t, fb.Text, remote.gotFeedback)
	require.Equal(t, "2024-03-05T09:00:00Z", remote.gotToken)
	require.Equal(t, fb.GeneratedAt, remote.gotGeneratedAt)

	require.Equal(t, 1, state.moderationCalls)
	require.Contains(t, state.lastUserPrompt, "Today is 2024-03-05")
	require.Contains(t, state.lastUserPrompt, "- 2024-03-04: tired but fine")
	require.Contains(t, state.lastUserPrompt, "Streak: 3 day(s)")
}

func TestService_RequestFeedback_SelfHarmInterception(t *testing.T) {
	remote := &fakeRemote{entry: entryFixture(), applied: true}
	state := &providerState{flagSelfHarm: true}
	svc := NewService(remote, newProvider(t, state), "", nil)

	fb, err := svc.RequestFeedback(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	require.True(t, fb.Flagged)
	require.Nil(t, fb.Parts)
	require.Equal(t, models.SelfHarmFallback, fb.Text)
	require.Equal(t, models.SelfHarmFallback, remote.gotFeedback)
	require.Zero(t, state.chatCalls, "flagged entries must never reach the generation model")
}

func TestService_RequestFeedback_StaleTokenIsSkipped(t *testing.T) {
	remote := &fakeRemote{entry: entryFixture(), applied: false}
	state := &providerState{parts: models.FeedbackParts{Reflection: "r", MicroStep: "m", Question: "q"}}
	svc := NewService(remote, newProvider(t, state), "", nil)

	fb, err := svc.RequestFeedback(context.Background(), "e1")
	require.NoError(t, err)
	require.Nil(t, fb, "a discarded stale result is not an error")
	require.Equal(t, 1, remote.setCalls)
}

func TestService_RequestFeedback_ModerationFailsOpen(t *testing.T) {
	remote := &fakeRemote{entry: entryFixture(), applied: true}
	state := &providerState{
		moderationStatus: http.StatusInternalServerError,
		parts:            models.FeedbackParts{Reflection: "r", MicroStep: "m", Question: "q"},
	}
	svc := NewService(remote, newProvider(t, state), "", nil)

	fb, err := svc.RequestFeedback(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	require.False(t, fb.Flagged)
	require.Equal(t, 1, state.chatCalls, "moderation outage must not block generation")
}

func TestService_RequestFeedback_NoCredentialsUsesCannedParts(t *testing.T) {
	remote := &fakeRemote{entry: entryFixture(), applied: true}
	svc := NewService(remote, nil, "", nil)

	fb, err := svc.RequestFeedback(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	require.False(t, fb.Flagged)
	require.Contains(t, fb.Text, "It sounds like today held meaningful moments")
}

func TestService_RequestFeedback_NoCredentialsRussianEntry(t *testing.T) {
	entry := entryFixture()
	entry.OneLiner = "длинный тяжёлый день"
	remote := &fakeRemote{entry: entry, applied: true}
	svc := NewService(remote, nil, "", nil)

	fb, err := svc.RequestFeedback(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	require.Equal(t, LanguageRussian, DetectLanguage(fb.Text))
}

func TestService_RequestFeedback_HistoryFailureIsTolerated(t *testing.T) {
	remote := &fakeRemote{entry: entryFixture(), historyErr: errors.New("boom"), applied: true}
	state := &providerState{parts: models.FeedbackParts{Reflection: "r", MicroStep: "m", Question: "q"}}
	svc := NewService(remote, newProvider(t, state), "", nil)

	fb, err := svc.RequestFeedback(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	require.Contains(t, state.lastUserPrompt, "None", "missing history renders as an empty section")
	require.Contains(t, state.lastUserPrompt, "Streak: 1 day(s)")
}

func TestService_RequestFeedback_SetFeedbackErrorPropagates(t *testing.T) {
	remote := &fakeRemote{entry: entryFixture(), setErr: errors.New("write failed")}
	svc := NewService(remote, nil, "", nil)

	_, err := svc.RequestFeedback(context.Background(), "e1")
	require.Error(t, err)
}

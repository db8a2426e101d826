package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/model"
)

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.Model = "claude-test"
		o.RequestOptions = []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)}
	})

	res, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "be brief",
		Messages:     []model.Message{model.UserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", res.Text)
	assert.Equal(t, "end_turn", res.FinishReason)
	assert.Equal(t, &model.TokenUsage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13}, res.Usage)

	assert.Equal(t, "claude-test", body["model"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])

	assert.Equal(t, model.Info{Name: "claude-test", Provider: "anthropic"}, m.Info())
}

func TestModel_GenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.RequestOptions = []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)}
	})

	_, err := model.Collect(context.Background(), m, model.Request{Messages: []model.Message{model.UserMessage("hi")}})
	assert.ErrorContains(t, err, "anthropic api error")
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: model.RoleSystem, Content: "sys"},
		model.UserMessage("q"),
		{Role: model.RoleAssistant, Content: "a"},
		model.UserMessage(""),
	})
	assert.Len(t, msgs, 2)
}

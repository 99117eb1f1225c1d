package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	creditErrorBody  = `{"type":"error","error":{"type":"invalid_request_error","message":"Your credit balance is too low to access the Anthropic API. Please go to Plans & Billing to upgrade or purchase credits."}}`
	promptErrorBody  = `{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210000 tokens > 200000 maximum"}}`
	disabledBody     = `{"type":"error","error":{"type":"permission_error","message":"This organization has been disabled."}}`
	overloadedBody   = `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`
	anthropicVersion = "2023-06-01"
)

type fakeMessagesAPI struct {
	server *httptest.Server

	mu     sync.Mutex
	calls  []string
	bodies []map[string]any
	reply  map[string]func(w http.ResponseWriter, body map[string]any)
}

func newFakeMessagesAPI(t *testing.T) *fakeMessagesAPI {
	t.Helper()
	api := &fakeMessagesAPI{reply: make(map[string]func(http.ResponseWriter, map[string]any))}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		key := r.Header.Get("X-Api-Key")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		api.mu.Lock()
		api.calls = append(api.calls, key)
		api.bodies = append(api.bodies, body)
		reply, ok := api.reply[key]
		api.mu.Unlock()

		if !ok {
			writeBody(w, http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}
		reply(w, body)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeMessagesAPI) on(key string, status int, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reply[key] = func(w http.ResponseWriter, _ map[string]any) {
		writeBody(w, status, body)
	}
}

func (a *fakeMessagesAPI) onText(key, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reply[key] = func(w http.ResponseWriter, _ map[string]any) {
		writeBody(w, http.StatusOK, messageJSON(text))
	}
}

func (a *fakeMessagesAPI) keysCalled() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeMessagesAPI) lastBody() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bodies[len(a.bodies)-1]
}

func (a *fakeMessagesAPI) spec(keys ...string) llm.ModelSpec {
	return llm.ModelSpec{
		APIKeys:     keys,
		BaseURL:     a.server.URL,
		MaxRetry:    3,
		BackoffUnit: time.Millisecond,
		Logger:      zerolog.Nop(),
	}
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Anthropic-Version", anthropicVersion)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func messageJSON(text string) string {
	data, _ := json.Marshal(map[string]any{
		"id":            "msg_01",
		"type":          "message",
		"role":          "assistant",
		"model":         DefaultModel,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 3},
	})
	return string(data)
}

func TestChatGenerate(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.onText("A", "Hello from Claude")

	chat, err := NewChat(api.spec("A"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, chat.Options().Model)

	result, err := chat.Generate(context.Background(), "Hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello from Claude", result.Content)
	assert.Equal(t, 10, result.SendTokens)
	assert.Equal(t, 3, result.RecvTokens)
	assert.Equal(t, 13, result.TotalTokens)

	body := api.lastBody()
	assert.Equal(t, DefaultModel, body["model"])
	assert.EqualValues(t, llm.DefaultMaxTokens, body["max_tokens"])
	assert.NotContains(t, body, "top_p")
}

func TestChatSendsExplicitZeroTemperature(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.onText("A", "deterministic")

	spec := api.spec("A")
	spec.Options = llm.Overrides{Temperature: lo.ToPtr(float32(0))}
	chat, err := NewChat(spec)
	require.NoError(t, err)
	assert.Zero(t, chat.Options().Temperature)

	_, err = chat.Generate(context.Background(), "Hi")
	require.NoError(t, err)

	body := api.lastBody()
	require.Contains(t, body, "temperature")
	assert.EqualValues(t, 0, body["temperature"])
}

func TestChatRotatesOnDisabledOrganization(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.on("A", http.StatusForbidden, disabledBody)
	api.onText("B", "from B")

	chat, err := NewChat(api.spec("A", "B"))
	require.NoError(t, err)

	result, err := chat.Generate(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "from B", result.Content)
	assert.Equal(t, []string{"B"}, chat.Pool().Keys())
}

func TestChatRotatesOnCreditError(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.on("A", http.StatusBadRequest, creditErrorBody)
	api.onText("B", "from B")

	chat, err := NewChat(api.spec("A", "B"))
	require.NoError(t, err)

	result, err := chat.Generate(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "from B", result.Content)
	assert.Equal(t, []string{"A", "B"}, api.keysCalled())
	assert.Equal(t, []string{"B"}, chat.Pool().Keys())
}

func TestChatPromptTooLong(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.on("A", http.StatusBadRequest, promptErrorBody)

	chat, err := NewChat(api.spec("A", "B"))
	require.NoError(t, err)

	_, err = chat.Generate(context.Background(), "long")
	assert.True(t, llm.IsContextTooLongError(err))
	assert.Equal(t, http.StatusBadRequest, llm.ExtractStatusCode(err))

	var apiErr *anthropic.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Len(t, api.keysCalled(), 1)
	assert.Equal(t, []string{"A", "B"}, chat.Pool().Keys())
}

func TestChatOverloadedIsSurfaced(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.on("A", 529, overloadedBody)

	chat, err := NewChat(api.spec("A"))
	require.NoError(t, err)

	_, err = chat.Generate(context.Background(), "Hi")
	require.Error(t, err)
	assert.False(t, llm.IsRetriesExhaustedError(err))
	assert.Equal(t, 529, llm.ExtractStatusCode(err))
	assert.Len(t, api.keysCalled(), 1, "sdk retries are disabled")
}

func TestChatGenerateMessagesLiftsSystemPrompt(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.onText("A", "ok")

	chat, err := NewChat(api.spec("A"))
	require.NoError(t, err)

	_, err = chat.GenerateMessages(context.Background(), []llm.Message{
		llm.NewTextMessage(llm.RoleSystem, "be terse"),
		llm.NewTextMessage(llm.RoleUser, "ping"),
		llm.NewTextMessage(llm.RoleAssistant, "pong"),
		llm.NewTextMessage(llm.RoleUser, "again"),
	})
	require.NoError(t, err)

	body := api.lastBody()
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "be terse", system[0].(map[string]any)["text"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
}

func TestChatGenerateBatchAndAsync(t *testing.T) {
	api := newFakeMessagesAPI(t)
	api.onText("A", "same")

	chat, err := NewChat(api.spec("A"))
	require.NoError(t, err)

	results, err := chat.GenerateBatch(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "same", r.Content)
	}

	texts, err := chat.GenerateAsync(context.Background(), "4").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"same"}, texts)
	assert.Len(t, api.keysCalled(), 4)
}

func TestNewChatRejectsUnsupportedOptions(t *testing.T) {
	spec := llm.ModelSpec{APIKeys: []string{"A"}, Logger: zerolog.Nop()}

	spec.Options = llm.Overrides{N: lo.ToPtr(2)}
	_, err := NewChat(spec)
	assert.True(t, llm.IsInvalidConfigurationError(err))

	spec.Options = llm.Overrides{PresencePenalty: lo.ToPtr(float32(0.5))}
	_, err = NewChat(spec)
	assert.True(t, llm.IsInvalidConfigurationError(err))

	// The Messages API caps temperature at 1.
	spec.Options = llm.Overrides{Temperature: lo.ToPtr(float32(1.5))}
	_, err = NewChat(spec)
	assert.True(t, llm.IsInvalidConfigurationError(err))

	spec.Options = llm.Overrides{Temperature: lo.ToPtr(float32(1))}
	_, err = NewChat(spec)
	assert.NoError(t, err)

	spec.Options = llm.Overrides{}
	spec.APIKeys = nil
	_, err = NewChat(spec)
	assert.True(t, llm.IsInvalidConfigurationError(err))
}

func TestIsAPIError(t *testing.T) {
	assert.True(t, IsAPIError(&anthropic.Error{StatusCode: 500}))
	assert.False(t, IsAPIError(errors.New("connection refused")))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 429, StatusCode(fmt.Errorf("call: %w", &anthropic.Error{StatusCode: 429})))
	assert.Zero(t, StatusCode(errors.New("connection refused")))
}

func TestRegister(t *testing.T) {
	reg := llm.NewModelRegistry()
	Register(reg)

	for _, name := range []string{"claude-haiku-4-5", "claude-sonnet-4-5"} {
		provider, ok := reg.Provider(name)
		assert.True(t, ok)
		assert.Equal(t, llm.ProviderAnthropic, provider)
	}

	m, err := reg.Build(llm.ModelSpec{Name: "claude-sonnet-4-5", APIKeys: []string{"A"}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", m.(*Chat).Options().Model)
}

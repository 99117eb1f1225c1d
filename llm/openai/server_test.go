package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/rs/zerolog"
)

const (
	quotaErrorBody   = `{"error":{"message":"You exceeded your current quota, please check your plan and billing details.","type":"insufficient_quota","param":null,"code":"insufficient_quota"}}`
	contextErrorBody = `{"error":{"message":"This model's maximum context length is 8192 tokens. However, your messages resulted in 9000 tokens.","type":"invalid_request_error","param":"messages","code":"context_length_exceeded"}}`
	invalidModelBody = `{"error":{"message":"The model does not exist","type":"invalid_request_error","param":null,"code":"model_not_found"}}`
)

// behavior decides how the fake API answers a request made with a key.
type behavior func(w http.ResponseWriter, body map[string]any)

type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	behaviors map[string]behavior
	calls     []string
	bodies    []map[string]any
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t, behaviors: make(map[string]behavior)}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) on(key string, b behavior) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.behaviors[key] = b
}

func (a *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	a.calls = append(a.calls, key)
	a.bodies = append(a.bodies, body)
	b, ok := a.behaviors[key]
	a.mu.Unlock()

	if !ok {
		writeError(w, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","param":null,"code":"invalid_api_key"}}`)
		return
	}
	b(w, body)
}

func (a *fakeAPI) keysCalled() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAPI) lastBody() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.bodies) == 0 {
		return nil
	}
	return a.bodies[len(a.bodies)-1]
}

func (a *fakeAPI) spec(keys ...string) llm.ModelSpec {
	return llm.ModelSpec{
		APIKeys:     keys,
		BaseURL:     a.server.URL + "/v1",
		MaxRetry:    3,
		BackoffUnit: time.Millisecond,
		Logger:      zerolog.Nop(),
	}
}

func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(status int, body string) behavior {
	return func(w http.ResponseWriter, _ map[string]any) {
		writeError(w, status, body)
	}
}

// respondChat answers with one choice per text and fixed usage.
func respondChat(texts ...string) behavior {
	return func(w http.ResponseWriter, body map[string]any) {
		choices := make([]map[string]any, 0, len(texts))
		for i, text := range texts {
			choices = append(choices, map[string]any{
				"index":         i,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			})
		}
		writeJSON(w, map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   body["model"],
			"choices": choices,
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
	}
}

// respondEcho answers with the last user message content.
func respondEcho() behavior {
	return func(w http.ResponseWriter, body map[string]any) {
		msgs, _ := body["messages"].([]any)
		last, _ := msgs[len(msgs)-1].(map[string]any)
		content, _ := last["content"].(string)
		respondChat("echo: "+content)(w, body)
	}
}

// respondEmbedding encodes each input as a vector of its length.
func respondEmbedding() behavior {
	return func(w http.ResponseWriter, body map[string]any) {
		inputs, _ := body["input"].([]any)
		data := make([]map[string]any, 0, len(inputs))
		for i, in := range inputs {
			s, _ := in.(string)
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(s)), 0.5},
			})
		}
		writeJSON(w, map[string]any{
			"object": "list",
			"data":   data,
			"model":  body["model"],
			"usage":  map[string]any{"prompt_tokens": 4, "total_tokens": 4},
		})
	}
}

// dropConnection closes the connection without a response.
func dropConnection() behavior {
	return func(w http.ResponseWriter, _ map[string]any) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "hijacking not supported", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}
}

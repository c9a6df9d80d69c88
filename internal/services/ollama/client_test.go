package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func chatPayload(content string) map[string]any {
	return map[string]any{
		"message": map[string]any{
			"role":    "assistant",
			"content": content,
		},
	}
}

func TestClientStructure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Format != "json" {
			t.Fatalf("expected json format, got %q", req.Format)
		}
		if req.Model != "demo-model" {
			t.Fatalf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "raw body text") {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
		payload := chatPayload(`{"title":"Demo","summary":"A demo summary.","entities":["Alpha"," Beta ",""]}`)
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL, GenerationModel: "demo-model"})
	structured, err := client.Structure(context.Background(), "raw body text", "https://example.com/a")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if structured.Title != "Demo" {
		t.Fatalf("title = %q", structured.Title)
	}
	if structured.Summary != "A demo summary." {
		t.Fatalf("summary = %q", structured.Summary)
	}
	if len(structured.Entities) != 2 || structured.Entities[0] != "Alpha" || structured.Entities[1] != "Beta" {
		t.Fatalf("entities = %v", structured.Entities)
	}
}

func TestClientStructureCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := chatPayload("```json\n{\"title\":\"Fenced\",\"summary\":\"Fenced summary.\",\"entities\":[]}\n```")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL, GenerationModel: "demo"})
	structured, err := client.Structure(context.Background(), "text", "https://example.com")
	if err != nil {
		t.Fatalf("Structure returned error: %v", err)
	}
	if structured.Title != "Fenced" {
		t.Fatalf("title = %q", structured.Title)
	}
}

func TestClientStructureRejectsEmptySummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := chatPayload(`{"title":"Demo","summary":""}`)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL, GenerationModel: "demo"})
	if _, err := client.Structure(context.Background(), "text", "https://example.com"); err == nil {
		t.Fatal("expected error for empty summary")
	}
}

func TestClientEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "embed-model" {
			t.Fatalf("model = %q", req.Model)
		}
		if err := json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.25, -0.5}}); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL, EmbeddingModel: "embed-model"})
	vector, err := client.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vector) != 2 || vector[0] != 0.25 || vector[1] != -0.5 {
		t.Fatalf("vector = %v", vector)
	}
}

func TestClientEmbedEmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{}})
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL, EmbeddingModel: "embed-model"})
	if _, err := client.Embed(context.Background(), "some text"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestClientAnswerIncludesPassages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Format != "" {
			t.Fatalf("answer request should not force json format, got %q", req.Format)
		}
		user := req.Messages[1].Content
		if !strings.Contains(user, "[1] first passage") || !strings.Contains(user, "Question: what?") {
			t.Fatalf("unexpected user prompt: %q", user)
		}
		_ = json.NewEncoder(w).Encode(chatPayload("Grounded answer [1]."))
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL, GenerationModel: "demo"})
	answer, err := client.Answer(context.Background(), "what?", []string{"first passage"})
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if answer != "Grounded answer [1]." {
		t.Fatalf("answer = %q", answer)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(chatPayload("recovered"))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{Host: server.URL, GenerationModel: "demo"},
		WithHTTPClient(server.Client()),
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	answer, err := client.Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if answer != "recovered" {
		t.Fatalf("answer = %q", answer)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d (%v)", len(slept), slept)
	}
	for _, d := range slept {
		if d <= 0 || d > 2*time.Millisecond {
			t.Fatalf("backoff sleep %v outside configured bounds", d)
		}
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(
		Config{Host: server.URL, GenerationModel: "demo"},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
	)
	if _, err := client.Answer(context.Background(), "q", nil); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	cases := []string{
		`{"ok":true}`,
		"```json\n{\"ok\":true}\n```",
		"Here is the result: {\"ok\":true}",
	}
	for _, payload := range cases {
		parsed.OK = false
		if err := DecodeModelJSON(payload, &parsed); err != nil {
			t.Fatalf("DecodeModelJSON(%q): %v", payload, err)
		}
		if !parsed.OK {
			t.Fatalf("DecodeModelJSON(%q) did not populate target", payload)
		}
	}

	if err := DecodeModelJSON("", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

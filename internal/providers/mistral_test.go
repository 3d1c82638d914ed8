package providers

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

func mistralSuccess(t *testing.T, record string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req mistralChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %q", req.ResponseFormat.Type)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": record}},
			},
		})
	}
}

func testMistral(srv *httptest.Server) *MistralClient {
	return NewMistralClient(MistralConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RateLimit:  6000,
		RetryDelay: time.Millisecond,
	})
}

func TestMistralStructurePage(t *testing.T) {
	record := `{
		"file_name": "gen.pdf",
		"topics": ["aerodromes"],
		"languages": ["english"],
		"description": "Aerodrome operating minima.",
		"ocr_contents": {"raw_content": "AD 1.1"}
	}`
	srv := httptest.NewServer(mistralSuccess(t, record))
	defer srv.Close()

	rec, err := testMistral(srv).StructurePage(context.Background(), PageRequest{
		DocumentName: "gen.pdf",
		Text:         "AD 1.1 Aerodrome availability",
	})
	if err != nil {
		t.Fatalf("StructurePage() error = %v", err)
	}
	if rec.FileName != "gen.pdf" {
		t.Errorf("FileName = %q", rec.FileName)
	}
	if len(rec.Topics) != 1 || rec.Topics[0] != "aerodromes" {
		t.Errorf("Topics = %v", rec.Topics)
	}
	if rec.OCRContents["raw_content"] != "AD 1.1" {
		t.Errorf("OCRContents = %v", rec.OCRContents)
	}
}

func TestMistralSendsPromptWithText(t *testing.T) {
	var gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 1 {
			gotContent = req.Messages[0].Content
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "{}"}},
			},
		})
	}))
	defer srv.Close()

	_, err := testMistral(srv).StructureFigure(context.Background(), FigureRequest{
		Text: "ILS approach chart RWY 29",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gotContent, "ILS approach chart RWY 29") {
		t.Errorf("prompt missing figure text: %q", gotContent)
	}
	if !strings.Contains(gotContent, "====MARKDOWN====") {
		t.Errorf("prompt missing markdown delimiter")
	}
}

func TestMistralRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"file_name":"a"}`}},
			},
		})
	}))
	defer srv.Close()

	rec, err := testMistral(srv).StructurePage(context.Background(), PageRequest{Text: "x"})
	if err != nil {
		t.Fatalf("StructurePage() error = %v", err)
	}
	if rec.FileName != "a" {
		t.Errorf("FileName = %q", rec.FileName)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestMistralDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := testMistral(srv).StructurePage(context.Background(), PageRequest{Text: "x"}); err == nil {
		t.Fatal("expected error on 401")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", got)
	}
}

func TestMistralRejectsNonJSONContent(t *testing.T) {
	srv := httptest.NewServer(mistralSuccess(t, "this is not json"))
	defer srv.Close()

	if _, err := testMistral(srv).StructurePage(context.Background(), PageRequest{Text: "x"}); err == nil {
		t.Fatal("expected error on non-JSON model output")
	}
}

func TestMistralEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	if _, err := testMistral(srv).StructurePage(context.Background(), PageRequest{Text: "x"}); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestIsTransient(t *testing.T) {
	if !isTransient(&statusError{code: http.StatusTooManyRequests}) {
		t.Error("429 must be transient")
	}
	if !isTransient(&statusError{code: http.StatusBadGateway}) {
		t.Error("502 must be transient")
	}
	if isTransient(&statusError{code: http.StatusBadRequest}) {
		t.Error("400 must not be transient")
	}
	if isTransient(context.Canceled) {
		t.Error("context cancellation must not be transient")
	}
}

func TestRateLimiterBlocksWhenExhausted(t *testing.T) {
	// 60 rpm refills one token per second; draining the single initial
	// token forces the next Wait to block measurably.
	rl := NewRateLimiter(60)
	rl.mu.Lock()
	rl.tokens = 1
	rl.mu.Unlock()

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait() returned before a token could have refilled")
	}
}

func TestRateLimiterContextCancel(t *testing.T) {
	rl := NewRateLimiter(1)
	rl.mu.Lock()
	rl.tokens = 0
	rl.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

package summarizer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recap/internal/services/summarizer"
	"recap/internal/testsupport"
)

func newClient(t *testing.T, handler http.HandlerFunc) *summarizer.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerURL(server.URL))
	return summarizer.NewClient(cfg,
		summarizer.WithRetryBackoff(0, 0),
		summarizer.WithSleeper(func(d time.Duration) {}),
	)
}

func TestSummarizeMeetingPrompt(t *testing.T) {
	var payload struct {
		Model   string `json:"model"`
		Prompt  string `json:"prompt"`
		Stream  bool   `json:"stream"`
		Options struct {
			Temperature float64 `json:"temperature"`
		} `json:"options"`
	}
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"response": "the summary", "done": true}`))
	})

	summary, err := client.Summarize(context.Background(), "Speaker 0: hello\n\nSpeaker 1: hi", 2)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary != "the summary" {
		t.Fatalf("summary = %q", summary)
	}
	if payload.Stream {
		t.Fatal("expected non-streaming request")
	}
	if !strings.Contains(payload.Prompt, "2 identified speakers") {
		t.Fatalf("prompt missing speaker count: %q", payload.Prompt)
	}
	if !strings.Contains(payload.Prompt, "SPEAKER CONTRIBUTIONS") {
		t.Fatal("multi-speaker prompt should request speaker contributions")
	}
	if !strings.Contains(payload.Prompt, "Speaker 0: hello") {
		t.Fatal("prompt should embed the transcript")
	}
}

func TestSummarizeSingleSpeakerPrompt(t *testing.T) {
	var prompt string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Prompt string `json:"prompt"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		prompt = payload.Prompt
		w.Write([]byte(`{"response": "notes summary", "done": true}`))
	})

	if _, err := client.Summarize(context.Background(), "Speaker 0: dictated notes", 1); err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if strings.Contains(prompt, "SPEAKER CONTRIBUTIONS") {
		t.Fatal("single-speaker prompt should not request speaker contributions")
	}
	if !strings.Contains(prompt, "IMPORTANT HIGHLIGHTS") {
		t.Fatalf("single-speaker prompt missing highlights section: %q", prompt)
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent for empty transcript")
	})

	_, err := client.Summarize(context.Background(), "   ", 1)
	if !errors.Is(err, summarizer.ErrEmptyTranscript) {
		t.Fatalf("err = %v, want ErrEmptyTranscript", err)
	}
}

func TestSummarizeRetriesServerErrors(t *testing.T) {
	attempts := 0
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "model loading", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"response": "eventually fine", "done": true}`))
	})

	summary, err := client.Summarize(context.Background(), "Speaker 0: hello", 1)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary != "eventually fine" {
		t.Fatalf("summary = %q", summary)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestSummarizeDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	if _, err := client.Summarize(context.Background(), "Speaker 0: hello", 1); err == nil {
		t.Fatal("expected client error to fail")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestSummarizeSurfacesAPIError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "model 'llama3' not found"}`))
	})

	_, err := client.Summarize(context.Background(), "Speaker 0: hello", 1)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want api error", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models": []}`))
	})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

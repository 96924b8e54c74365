package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChatCompletion_ReturnsContent(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  MegaETH is a high-performance chain.  "}}]}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, srv.URL, 2*time.Second)
	content, err := c.ChatCompletion(context.Background(), "gpt-4o-mini", []Message{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "What is MegaETH?"},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if content != "MegaETH is a high-performance chain." {
		t.Fatalf("unexpected content: %q", content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if !strings.Contains(gotBody, `"model":"gpt-4o-mini"`) {
		t.Fatalf("expected model in request body, got: %s", gotBody)
	}
	if !strings.Contains(gotBody, `"role":"system"`) {
		t.Fatalf("expected system message in request body, got: %s", gotBody)
	}
}

func TestChatCompletion_QuotaExhaustedByCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota.","type":"insufficient_quota","code":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, srv.URL, 2*time.Second)
	_, err := c.ChatCompletion(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if !apiErr.QuotaExhausted() {
		t.Fatalf("expected quota exhaustion, got %v", apiErr)
	}
}

func TestChatCompletion_QuotaExhaustedBySubstringFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"request rejected: INSUFFICIENT_QUOTA for key"}}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, srv.URL, 2*time.Second)
	_, err := c.ChatCompletion(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.QuotaExhausted() {
		t.Fatalf("expected quota exhaustion via substring fallback, got %v", apiErr)
	}
}

func TestChatCompletion_GenericFailureIsNotQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"backend exploded","code":"server_error"}}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, srv.URL, 2*time.Second)
	_, err := c.ChatCompletion(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.QuotaExhausted() {
		t.Fatal("did not expect quota classification")
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", apiErr.Status)
	}
}

func TestChatCompletion_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, srv.URL, 2*time.Second)
	_, err := c.ChatCompletion(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestTranscribe_UploadsMultipartWAV(t *testing.T) {
	var gotModel string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFile, _ = io.ReadAll(file)
		_, _ = io.WriteString(w, `{"text":" what is the price of fluff "}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, srv.URL, 2*time.Second)
	text, err := c.Transcribe(context.Background(), "gpt-4o-mini-transcribe", []byte("RIFFfakewav"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "what is the price of fluff" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if gotModel != "gpt-4o-mini-transcribe" {
		t.Fatalf("unexpected model field: %q", gotModel)
	}
	if string(gotFile) != "RIFFfakewav" {
		t.Fatalf("unexpected file payload: %q", gotFile)
	}
}

func TestTranscribe_FailureSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":{"message":"upstream unavailable"}}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL, srv.URL, 2*time.Second)
	_, err := c.Transcribe(context.Background(), "gpt-4o-mini-transcribe", []byte("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", apiErr.Status)
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

func validPayload() models.PromptPayload {
	return models.PromptPayload{
		System:      "You are a diagnostic assistant.",
		UserMessage: "Here are my answers.",
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error when base URL is missing")
	}
}

func TestCompleteSuccess(t *testing.T) {
	var captured models.CompletionRequest
	var gotPath, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(models.CompletionEnvelope{
			Content: []models.ContentBlock{{Type: models.ContentBlockTypeText, Text: "{}"}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	envelope, err := client.Complete(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotPath != DefaultEndpointPath {
		t.Errorf("request path = %q, want %q", gotPath, DefaultEndpointPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if captured.System != "You are a diagnostic assistant." {
		t.Errorf("request system = %q", captured.System)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != models.RoleUser {
		t.Errorf("request messages = %+v, want single user message", captured.Messages)
	}
	if envelope.JoinedText() != "{}" {
		t.Errorf("envelope text = %q", envelope.JoinedText())
	}
}

func TestCompleteTrailingSlashBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultEndpointPath {
			t.Errorf("request path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(models.CompletionEnvelope{
			Content: []models.ContentBlock{{Type: models.ContentBlockTypeText, Text: "ok"}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL + "/"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Complete(context.Background(), validPayload()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestCompleteNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Complete(context.Background(), validPayload())

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", gwErr.StatusCode, http.StatusBadGateway)
	}
}

func TestCompleteEmptyEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.CompletionEnvelope{})
	}))
	defer srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Complete(context.Background(), validPayload())

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestCompleteUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Complete(context.Background(), validPayload())

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Op != "decode" {
		t.Errorf("Op = %q, want decode", gwErr.Op)
	}
}

func TestCompleteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Complete(context.Background(), validPayload())

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", gwErr.StatusCode)
	}
}

func TestCompleteRejectsInvalidPayload(t *testing.T) {
	client, err := NewClient(WithBaseURL("http://127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Complete(context.Background(), models.PromptPayload{})
	if !errors.Is(err, models.ErrEmptySystemInstruction) {
		t.Errorf("expected ErrEmptySystemInstruction, got %v", err)
	}
}

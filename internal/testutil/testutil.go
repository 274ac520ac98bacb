// Package testutil provides common test utilities and helpers for the
// diagnostic service tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Apiverde/ApiverdeDemo/internal/api"
	"github.com/Apiverde/ApiverdeDemo/internal/diagnostic"
	"github.com/Apiverde/ApiverdeDemo/internal/models"
	"github.com/Apiverde/ApiverdeDemo/internal/store"
)

// CannedResult is the diagnostic result the stub completer returns.
var CannedResult = models.DiagnosticResult{
	ProfileType:              models.ProfileStressDominant,
	ProfileSummary:           "Your stress response system is running in overdrive.",
	CannabinoidName:          "CBD + CBG",
	CannabinoidReasoning:     "CBD moderates cortisol output while CBG supports focus without sedation.",
	LifestyleRecommendations: []string{"Box breathing before bed", "Cut caffeine after noon"},
	PersonalNote:             "Small consistent changes beat drastic ones.",
}

// StubCompleter returns a fixed completion envelope, or an error when Err is
// set. It records the last payload for request-shape assertions.
type StubCompleter struct {
	Envelope    models.CompletionEnvelope
	Err         error
	LastPayload models.PromptPayload
	Calls       int
}

func (c *StubCompleter) Complete(ctx context.Context, payload models.PromptPayload) (models.CompletionEnvelope, error) {
	c.LastPayload = payload
	c.Calls++
	if c.Err != nil {
		return models.CompletionEnvelope{}, c.Err
	}
	return c.Envelope, nil
}

// NewStubCompleter creates a completer that answers with the canned result
// wrapped in a single text block.
func NewStubCompleter(t *testing.T) *StubCompleter {
	t.Helper()
	data, err := json.Marshal(CannedResult)
	if err != nil {
		t.Fatalf("failed to marshal canned result: %v", err)
	}
	return &StubCompleter{
		Envelope: models.CompletionEnvelope{
			Content: []models.ContentBlock{{Type: models.ContentBlockTypeText, Text: string(data)}},
		},
	}
}

// NewTestServer creates a test API server with an in-memory store and a
// stub completer behind the session manager. The GenAI client is left
// unconfigured.
func NewTestServer(t *testing.T) (*api.Server, *StubCompleter) {
	t.Helper()
	completer := NewStubCompleter(t)
	st := store.NewInMemoryStore()
	mgr := diagnostic.NewSessionManager(completer, st)
	return api.NewServer(mgr, nil, st), completer
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

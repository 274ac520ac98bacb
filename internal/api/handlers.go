// Package api provides HTTP handlers for the diagnostic service endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// diagnosticHandler proxies a completion request to the GenAI provider
// (POST /api/diagnostic). The response body is the raw completion envelope,
// not the APIResponse wrapper, since the gateway client consumes it.
func (s *Server) diagnosticHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.diagnosticHandler: processing completion request", "path", r.URL.Path)

	if s.gaClient == nil {
		slog.Warn("Server.diagnosticHandler: GenAI client not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Completion provider not configured"))
		return
	}

	var req models.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.diagnosticHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.diagnosticHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	messages = append(messages, openai.SystemMessage(req.System))
	for _, msg := range req.Messages {
		switch msg.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			slog.Warn("Server.diagnosticHandler: unknown message role", "role", msg.Role)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown message role: "+msg.Role))
			return
		}
	}

	text, err := s.gaClient.GenerateWithMessages(r.Context(), messages)
	if err != nil {
		slog.Error("Server.diagnosticHandler: completion generation failed", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Completion provider request failed"))
		return
	}

	slog.Info("Server.diagnosticHandler: completion generated", "length", len(text))
	writeJSONResponse(w, http.StatusOK, models.CompletionEnvelope{
		Content: []models.ContentBlock{{Type: models.ContentBlockTypeText, Text: text}},
	})
}

// healthHandler provides a health check endpoint for monitoring (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

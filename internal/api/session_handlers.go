// Package api provides HTTP handlers for hosted diagnostic sessions.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// choiceRequest is the body for the primary and secondary choice endpoints.
type choiceRequest struct {
	Choice string `json:"choice"`
}

// contextRequest is the body for the freeform context endpoint. An empty or
// missing text is a skip.
type contextRequest struct {
	Text string `json:"text"`
}

// constraintRequest is the body for the constraint toggle endpoint.
type constraintRequest struct {
	Label string `json:"label"`
}

// createSessionHandler starts a new diagnostic session (POST /api/sessions).
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createSessionHandler: creating session")
	sess, err := s.mgr.CreateSession()
	if err != nil {
		slog.Error("Server.createSessionHandler: failed to create session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(sess.Snapshot()))
}

// getSessionHandler returns the session state (GET /api/sessions/{id}).
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.mgr.Snapshot(id)
	if err != nil {
		slog.Warn("Server.getSessionHandler: lookup failed", "sessionID", id, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

// primaryChoiceHandler records the first-question answer
// (POST /api/sessions/{id}/primary).
func (s *Server) primaryChoiceHandler(w http.ResponseWriter, r *http.Request) {
	s.applyChoice(w, r, s.mgr.SelectPrimary)
}

// secondaryChoiceHandler records the second-question answer
// (POST /api/sessions/{id}/secondary).
func (s *Server) secondaryChoiceHandler(w http.ResponseWriter, r *http.Request) {
	s.applyChoice(w, r, s.mgr.SelectSecondary)
}

func (s *Server) applyChoice(w http.ResponseWriter, r *http.Request, apply func(id, choice string) error) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.applyChoice: failed to decode JSON", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := apply(id, req.Choice); err != nil {
		slog.Warn("Server.applyChoice: choice rejected", "sessionID", id, "choice", req.Choice, "error", err)
		writeDomainError(w, err)
		return
	}
	s.respondWithSnapshot(w, id)
}

// contextHandler records the freeform context step
// (POST /api/sessions/{id}/context).
func (s *Server) contextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.contextHandler: failed to decode JSON", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.mgr.SubmitContext(id, req.Text); err != nil {
		slog.Warn("Server.contextHandler: context rejected", "sessionID", id, "error", err)
		writeDomainError(w, err)
		return
	}
	s.respondWithSnapshot(w, id)
}

// constraintsHandler toggles an avoidance selection
// (POST /api/sessions/{id}/constraints).
func (s *Server) constraintsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	var req constraintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.constraintsHandler: failed to decode JSON", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Label == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: label"))
		return
	}
	if err := s.mgr.ToggleConstraint(id, req.Label); err != nil {
		slog.Warn("Server.constraintsHandler: toggle rejected", "sessionID", id, "error", err)
		writeDomainError(w, err)
		return
	}
	s.respondWithSnapshot(w, id)
}

// submitHandler runs the completion exchange for the session
// (POST /api/sessions/{id}/submit). The snapshot in the response carries
// either the diagnostic result or the retryable failure message.
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.submitHandler: submitting session", "sessionID", id)
	if err := s.mgr.Submit(r.Context(), id); err != nil {
		slog.Warn("Server.submitHandler: submission failed", "sessionID", id, "error", err)
		writeDomainError(w, err)
		return
	}
	s.respondWithSnapshot(w, id)
}

// resetSessionHandler returns the session to the initial phase
// (POST /api/sessions/{id}/reset).
func (s *Server) resetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.mgr.Reset(id); err != nil {
		slog.Warn("Server.resetSessionHandler: reset failed", "sessionID", id, "error", err)
		writeDomainError(w, err)
		return
	}
	s.respondWithSnapshot(w, id)
}

func (s *Server) respondWithSnapshot(w http.ResponseWriter, id string) {
	snap, err := s.mgr.Snapshot(id)
	if err != nil {
		slog.Error("Server.respondWithSnapshot: snapshot failed", "sessionID", id, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

// Package api provides read-only handlers for the wellness content catalogs.
package api

import (
	"log/slog"
	"net/http"

	"github.com/Apiverde/ApiverdeDemo/internal/content"
	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// concernsHandler lists the supported wellness concerns (GET /api/concerns).
func (s *Server) concernsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(models.Concerns()))
}

// quizHandler returns the quiz flow for a concern (GET /api/quiz/{concern}).
func (s *Server) quizHandler(w http.ResponseWriter, r *http.Request) {
	concern := models.Concern(r.PathValue("concern"))
	flow, err := content.Quiz(concern)
	if err != nil {
		slog.Warn("Server.quizHandler: unknown concern", "concern", concern)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(flow))
}

// productsHandler returns the product recommendations for a concern
// (GET /api/products/{concern}).
func (s *Server) productsHandler(w http.ResponseWriter, r *http.Request) {
	concern := models.Concern(r.PathValue("concern"))
	products, err := content.Products(concern)
	if err != nil {
		slog.Warn("Server.productsHandler: unknown concern", "concern", concern)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(products))
}

// conversationHandler returns the scripted conversation steps for a concern
// (GET /api/conversation/{concern}).
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	concern := models.Concern(r.PathValue("concern"))
	steps, err := content.Conversation(concern)
	if err != nil {
		slog.Warn("Server.conversationHandler: unknown concern", "concern", concern)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(steps))
}

// scenariosHandler returns the diagnostic scenario set, including the
// constraint options (GET /api/scenarios).
func (s *Server) scenariosHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(content.Scenarios()))
}

package httpapi

import (
	"net/http"

	"civicmonitor-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

func (s *Server) AdminIssues(w http.ResponseWriter, r *http.Request) {
	items, err := services.AdminFeed(r.Context(), s.DB, CurrentActor(r), feedPage(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: items})
}

func (s *Server) AdminScope(w http.ResponseWriter, r *http.Request) {
	view, err := services.LoadScopeView(r.Context(), s.DB, CurrentActor(r).ID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

func (s *Server) UpdateIssueStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	result, err := services.AdminTransition(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "issueId"), req.Status, req.Remarks)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	s.Events.Publish(services.TransitionEvent(result))
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Issue status updated",
		"issue":   result,
	})
}

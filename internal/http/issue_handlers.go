package httpapi

import (
	"net/http"
	"strconv"

	"civicmonitor-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

func (s *Server) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateIssueRequest
	if err := s.decodeJSON(r, &req); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	actor := CurrentActor(r)
	issue, err := services.CreateIssue(r.Context(), s.DB, actor, services.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		LocalityID:  req.LocalityID,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	s.Events.Publish(services.IssueEvent{
		Type:         services.EventIssueCreated,
		IssueID:      issue.ID,
		Status:       services.StatusOpen,
		DepartmentID: issue.DepartmentID,
		LocalityID:   issue.LocalityID,
		ActorID:      actor.ID,
		At:           issue.CreatedAt,
	})
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Issue reported",
		"issue": map[string]interface{}{
			"id":           issue.ID,
			"title":        issue.Title,
			"description":  issue.Description,
			"categoryId":   issue.CategoryID,
			"departmentId": issue.DepartmentID,
			"localityId":   issue.LocalityID,
			"status":       services.StatusOpen,
			"slaDeadline":  issue.SlaDeadline,
			"createdAt":    issue.CreatedAt,
		},
	})
}

func (s *Server) CitizenFeed(w http.ResponseWriter, r *http.Request) {
	items, err := services.CitizenFeed(r.Context(), s.DB, CurrentActor(r), feedPage(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: items})
}

func (s *Server) ExploreFeed(w http.ResponseWriter, r *http.Request) {
	items, err := services.ExploreFeed(r.Context(), s.DB, CurrentActor(r), feedPage(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: items})
}

func (s *Server) GetIssue(w http.ResponseWriter, r *http.Request) {
	detail, err := services.GetIssue(r.Context(), s.DB, chi.URLParam(r, "issueId"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

func (s *Server) IssueTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := services.IssueTimeline(r.Context(), s.DB, chi.URLParam(r, "issueId"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: entries})
}

// UploadIssueMedia stores proof for admins and report media for the issue's
// reporter.
func (s *Server) UploadIssueMedia(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.Config.MediaMaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	if header.Size > maxBytes {
		WriteError(w, http.StatusBadRequest, "File is too large")
		return
	}

	actor := CurrentActor(r)
	issueID := chi.URLParam(r, "issueId")
	upload := services.Upload{Filename: header.Filename, Body: file}
	var attached services.AttachedMedia
	if actor.IsAdmin {
		attached, err = services.AttachProof(r.Context(), s.DB, s.Media, actor, issueID, upload)
	} else {
		attached, err = services.AttachReportMedia(r.Context(), s.DB, s.Media, actor, issueID, upload)
	}
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Media uploaded",
		"media":   attached,
	})
}

func (s *Server) ToggleUpvote(w http.ResponseWriter, r *http.Request) {
	result, err := services.ToggleUpvote(r.Context(), s.DB, CurrentActor(r).ID, chi.URLParam(r, "issueId"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	comment, err := services.AddComment(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "issueId"), req.Content)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Comment added",
		"comment": comment,
	})
}

func (s *Server) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := services.ListComments(r.Context(), s.DB, chi.URLParam(r, "issueId"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: comments})
}

func (s *Server) VerifyIssue(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if r.ContentLength > 0 {
		if err := s.decodeJSON(r, &req); err != nil {
			WriteServiceError(w, r, err)
			return
		}
	}
	result, err := services.VerifyIssue(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "issueId"), req.Feedback)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	s.Events.Publish(services.TransitionEvent(result))
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Issue verified and closed",
		"issue":   result,
	})
}

func feedPage(r *http.Request) services.FeedPage {
	return services.FeedPage{
		Limit:  parseInt(r.URL.Query().Get("limit"), 0),
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
	}
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

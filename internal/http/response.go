package httpapi

import (
	"encoding/json"
	"net/http"

	"civicmonitor-backend-go/internal/services"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message})
}

// WriteServiceError maps a service error onto its status and message. Errors
// that are not ServiceErrors are logged and reported as a plain 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	entry := logrus.WithFields(logrus.Fields{
		"method":    r.Method,
		"path":      r.URL.Path,
		"requestId": middleware.GetReqID(r.Context()),
	})
	if serr, ok := services.AsServiceError(err); ok {
		if serr.Status >= http.StatusInternalServerError {
			entry.WithError(err).WithField("kind", serr.Kind).Error("request failed")
		}
		WriteError(w, serr.Status, serr.Message)
		return
	}
	entry.WithError(err).Error("request failed")
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}

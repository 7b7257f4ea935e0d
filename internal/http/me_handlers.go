package httpapi

import (
	"net/http"

	"civicmonitor-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

// mediaFiles is implemented by stores that keep uploads on local disk.
type mediaFiles interface {
	PathFor(url string) (string, bool)
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := services.LoadProfile(r.Context(), s.DB, CurrentActor(r).ID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]services.Profile{"user": profile})
}

func (s *Server) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateMeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	profile, err := services.UpdateProfile(r.Context(), s.DB, CurrentActor(r).ID, services.ProfileUpdate{
		FullName:        req.FullName,
		ProfilePhotoURL: req.ProfilePhotoURL,
		Bio:             req.Bio,
		CityID:          req.CityID,
		ZoneID:          req.ZoneID,
		LocalityID:      req.LocalityID,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]services.Profile{"user": profile})
}

func (s *Server) MediaContent(w http.ResponseWriter, r *http.Request) {
	files, ok := s.Media.(mediaFiles)
	if !ok {
		WriteError(w, http.StatusNotFound, "Media not found")
		return
	}
	url := "/media/" + chi.URLParam(r, "folder") + "/" + chi.URLParam(r, "key")
	path, ok := files.PathFor(url)
	if !ok {
		WriteError(w, http.StatusNotFound, "Media not found")
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}

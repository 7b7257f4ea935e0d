package httpapi

import (
	"net/http"
	"time"

	"civicmonitor-backend-go/internal/services"
)

func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := s.decodeJSON(r, &req); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	actor, err := services.Signup(r.Context(), s.DB, s.Tokens, services.SignupInput{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		CityID:      req.CityID,
		ZoneID:      req.ZoneID,
		LocalityID:  req.LocalityID,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	s.respondWithTokens(w, r, http.StatusCreated, actor)
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	actor, err := services.Authenticate(r.Context(), s.DB, s.Tokens, req.Email, req.PhoneNumber, req.Password)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	s.respondWithTokens(w, r, http.StatusOK, actor)
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := s.decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	userID, err := s.Tokens.SubjectOf(req.RefreshToken, services.TokenTypeRefresh)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	actor, err := services.LoadActor(r.Context(), s.DB, userID)
	if err != nil || !actor.IsActive {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	s.respondWithTokens(w, r, http.StatusOK, actor)
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) respondWithTokens(w http.ResponseWriter, r *http.Request, status int, actor services.Actor) {
	pair, err := s.Tokens.IssuePair(actor.ID, actor.Roles)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	profile, err := services.LoadProfile(r.Context(), s.DB, actor.ID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.Config.AccessTTLSeconds),
	})
	WriteJSON(w, status, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         &profile,
	})
}

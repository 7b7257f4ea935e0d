package httpapi

import (
	"context"
	"net/http"
	"strings"

	"civicmonitor-backend-go/internal/services"
)

type contextKey string

const ctxActor contextKey = "actor"

const tokenCookie = "token"

// WithAuth resolves the bearer token, or the token cookie, to an active
// Actor. The actor is reloaded from the database on every request so admin
// status and deactivation take effect immediately.
func WithAuth(s *Server) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				WriteError(w, http.StatusUnauthorized, "Authentication failed")
				return
			}
			actor, err := s.authenticate(r.Context(), tokenStr)
			if err != nil {
				WriteServiceError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) authenticate(ctx context.Context, tokenStr string) (services.Actor, error) {
	userID, err := s.Tokens.SubjectOf(tokenStr, services.TokenTypeAccess)
	if err != nil {
		return services.Actor{}, err
	}
	actor, err := services.LoadActor(ctx, s.DB, userID)
	if services.IsKind(err, services.KindNotFound) {
		return services.Actor{}, services.ErrUnauthorized("Authentication failed")
	}
	if err != nil {
		return services.Actor{}, err
	}
	if !actor.IsActive {
		return services.Actor{}, services.ErrUnauthorized("Account is inactive")
	}
	return actor, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func CurrentActor(r *http.Request) services.Actor {
	if actor, ok := r.Context().Value(ctxActor).(services.Actor); ok {
		return actor
	}
	return services.Actor{}
}

// RequireAdmin admits actors with an admin profile. Per-issue scope is still
// checked by the services.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CurrentActor(r).IsAdmin {
			WriteError(w, http.StatusForbidden, "Access denied. Admins only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"net/http"
	"time"

	"civicmonitor-backend-go/internal/cache"
	"civicmonitor-backend-go/internal/config"
	"civicmonitor-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	DB       *sqlx.DB
	Config   config.Config
	Tokens   services.TokenService
	Media    services.MediaStore
	Cache    *cache.RedisCache
	Events   *services.IssueHub
	Validate *validator.Validate
}

// NewServer wires the HTTP surface. cache may be nil, which disables the
// reference-data cache and the issue rate limit.
func NewServer(db *sqlx.DB, cfg config.Config, media services.MediaStore, redisCache *cache.RedisCache, hub *services.IssueHub) *Server {
	tokens := services.TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  time.Duration(cfg.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTTLSeconds) * time.Second,
	}
	return &Server{
		DB:       db,
		Config:   cfg,
		Tokens:   tokens,
		Media:    media,
		Cache:    redisCache,
		Events:   hub,
		Validate: newValidator(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/issues", s.IssueSocket)
	if _, ok := s.Media.(mediaFiles); ok {
		r.Get("/media/{folder}/{key}", s.MediaContent)
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", s.Signup)
			auth.Post("/login", s.Login)
			auth.Post("/refresh", s.Refresh)
			auth.Post("/logout", s.Logout)
		})

		api.Route("/geo", func(geo chi.Router) {
			geo.Get("/cities", s.Cities)
			geo.Get("/zones", s.Zones)
			geo.Get("/localities", s.Localities)
		})

		api.Route("/users/me", func(me chi.Router) {
			me.Use(WithAuth(s))
			me.Get("/", s.Me)
			me.Patch("/", s.UpdateMe)
		})

		api.Route("/issues", func(issues chi.Router) {
			issues.Get("/categories", s.Categories)
			issues.Group(func(authed chi.Router) {
				authed.Use(WithAuth(s))
				authed.With(s.IssueRateLimit).Post("/", s.CreateIssue)
				authed.Get("/feed", s.CitizenFeed)
				authed.Get("/explore", s.ExploreFeed)
				authed.Route("/{issueId}", func(issue chi.Router) {
					issue.Get("/", s.GetIssue)
					issue.Get("/timeline", s.IssueTimeline)
					issue.Post("/media", s.UploadIssueMedia)
					issue.Post("/upvote", s.ToggleUpvote)
					issue.Get("/comments", s.ListComments)
					issue.Post("/comments", s.AddComment)
					issue.Post("/verify", s.VerifyIssue)
				})
			})
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(WithAuth(s))
			admin.Use(RequireAdmin)
			admin.Get("/issues", s.AdminIssues)
			admin.Get("/scope", s.AdminScope)
			admin.Patch("/issues/{issueId}/status", s.UpdateIssueStatus)
		})
	})
	return r
}

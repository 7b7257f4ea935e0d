package httpapi

import (
	"context"
	"net/http"
	"time"

	"civicmonitor-backend-go/internal/services"
)

type HealthResponse struct {
	Status      string             `json:"status"`
	Database    string             `json:"database"`
	Redis       string             `json:"redis"`
	Subscribers int                `json:"subscribers"`
	Host        services.HostStats `json:"host"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Redis: "disabled"}
	status := http.StatusOK
	if err := s.DB.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if s.Cache != nil {
		resp.Redis = "ok"
		if err := s.Cache.Ping(ctx); err != nil {
			resp.Redis = "unreachable"
		}
	}
	if s.Events != nil {
		resp.Subscribers = s.Events.Subscribers()
	}
	resp.Host = services.CaptureHostStats(ctx, s.Config.HealthDiskPath)
	WriteJSON(w, status, resp)
}

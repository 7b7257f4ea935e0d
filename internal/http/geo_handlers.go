package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"civicmonitor-backend-go/internal/cache"
	"civicmonitor-backend-go/internal/services"

	"github.com/sirupsen/logrus"
)

func (s *Server) Cities(w http.ResponseWriter, r *http.Request) {
	s.cachedJSON(w, r, cache.Key("geo", "cities"), func() (interface{}, error) {
		return services.ListCities(r.Context(), s.DB)
	})
}

func (s *Server) Zones(w http.ResponseWriter, r *http.Request) {
	cityID := strings.TrimSpace(r.URL.Query().Get("cityId"))
	if cityID == "" {
		WriteError(w, http.StatusBadRequest, "cityId is required")
		return
	}
	s.cachedJSON(w, r, cache.Key("geo", "zones", cityID), func() (interface{}, error) {
		return services.ListZones(r.Context(), s.DB, cityID)
	})
}

func (s *Server) Localities(w http.ResponseWriter, r *http.Request) {
	zoneID := strings.TrimSpace(r.URL.Query().Get("zoneId"))
	if zoneID == "" {
		WriteError(w, http.StatusBadRequest, "zoneId is required")
		return
	}
	s.cachedJSON(w, r, cache.Key("geo", "localities", zoneID), func() (interface{}, error) {
		return services.ListLocalities(r.Context(), s.DB, zoneID)
	})
}

func (s *Server) Categories(w http.ResponseWriter, r *http.Request) {
	s.cachedJSON(w, r, cache.Key("issues", "categories"), func() (interface{}, error) {
		return services.ListCategories(r.Context(), s.DB)
	})
}

// cachedJSON serves reference data from Redis when available and fills the
// cache on a miss. Cache failures degrade to a direct load.
func (s *Server) cachedJSON(w http.ResponseWriter, r *http.Request, key string, load func() (interface{}, error)) {
	if s.Cache != nil {
		body, err := s.Cache.Get(r.Context(), key)
		if err == nil {
			referenceCacheTotal.WithLabelValues("hit").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			logrus.WithError(err).WithField("key", key).Warn("reference cache read failed")
		}
		referenceCacheTotal.WithLabelValues("miss").Inc()
	}

	items, err := load()
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	body, err := json.Marshal(ListResponse{Items: items})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if s.Cache != nil {
		ttl := time.Duration(s.Config.ReferenceCacheTTL) * time.Second
		if err := s.Cache.Set(r.Context(), key, body, ttl); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("reference cache write failed")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

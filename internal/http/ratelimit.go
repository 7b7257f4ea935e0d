package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"civicmonitor-backend-go/internal/cache"
	"civicmonitor-backend-go/internal/services"

	"github.com/sirupsen/logrus"
)

// IssueRateLimit caps how many issues one user may report per UTC day. It is
// a no-op without Redis or with a non-positive limit, and fails open when
// Redis errors.
func (s *Server) IssueRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.Config.IssueDailyLimit
		if s.Cache == nil || limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		at := time.Now().UTC()
		key := cache.DailyKey("ratelimit:issues", CurrentActor(r).ID, at)
		count, err := s.Cache.Incr(r.Context(), key, cache.UntilEndOfDay(at))
		if err != nil {
			logrus.WithError(err).Warn("issue rate limit unavailable")
			next.ServeHTTP(w, r)
			return
		}
		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count > int64(limit) {
			rateLimitedTotal.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(cache.UntilEndOfDay(at).Seconds())))
			WriteServiceError(w, r, services.ErrTooManyRequests("Daily issue limit reached. Try again tomorrow."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"net/http"
	"time"

	"civicmonitor-backend-go/internal/services"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// IssueSocket streams lifecycle events for issues inside the caller's admin
// scope. Browsers cannot set headers on websocket requests, so the access
// token arrives as a query parameter.
func (s *Server) IssueSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	actor, err := s.authenticate(r.Context(), tokenStr)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	scope, err := services.LoadAdminScope(r.Context(), s.DB, actor.ID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if !scope.IsAdmin {
		WriteError(w, http.StatusForbidden, "Access denied. Admins only.")
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("issue socket upgrade failed")
		return
	}
	sink := &socketSink{conn: conn, timeout: socketWriteTimeout}
	s.Events.Add(sink, services.ScopeFilter(scope))
	defer func() {
		s.Events.Remove(sink)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

const socketWriteTimeout = 10 * time.Second

// socketSink bounds every event write so a stalled client fails out of the
// hub instead of holding up delivery.
type socketSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *socketSink) WriteJSON(v interface{}) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

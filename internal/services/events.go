package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	EventIssueCreated      = "issue.created"
	EventIssueTransitioned = "issue.transitioned"
)

type IssueEvent struct {
	Type         string     `json:"type"`
	IssueID      string     `json:"issueId"`
	Status       StatusName `json:"status"`
	DepartmentID string     `json:"departmentId"`
	LocalityID   string     `json:"localityId"`
	ActorID      string     `json:"actorId"`
	At           time.Time  `json:"at"`
}

func TransitionEvent(result TransitionResult) IssueEvent {
	return IssueEvent{
		Type:         EventIssueTransitioned,
		IssueID:      result.IssueID,
		Status:       result.Status,
		DepartmentID: result.DepartmentID,
		LocalityID:   result.LocalityID,
		ActorID:      result.ChangedBy,
		At:           result.ChangedAt,
	}
}

// EventSink receives encoded events. Sinks backed by a network connection
// should bound each write with a deadline.
type EventSink interface {
	WriteJSON(v interface{}) error
}

// EventFilter decides whether a subscriber receives an event.
type EventFilter func(IssueEvent) bool

// ScopeFilter passes events for issues inside the admin's scope.
func ScopeFilter(scope AdminScope) EventFilter {
	return func(event IssueEvent) bool {
		return scope.IsAdmin && scope.HasDepartment(event.DepartmentID) && scope.HasLocality(event.LocalityID)
	}
}

// IssueHub fans lifecycle events out to live subscribers. Publish never
// blocks the request path; events are dropped when the buffer is full.
type IssueHub struct {
	mu      sync.Mutex
	clients map[EventSink]EventFilter
	ch      chan IssueEvent
}

func NewIssueHub() *IssueHub {
	return &IssueHub{
		clients: map[EventSink]EventFilter{},
		ch:      make(chan IssueEvent, 64),
	}
}

func (h *IssueHub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.deliver(event)
		case <-ctx.Done():
			return
		}
	}
}

// deliver writes outside the lock so one slow subscriber cannot stall
// Add or Remove for the others.
func (h *IssueHub) deliver(event IssueEvent) {
	h.mu.Lock()
	targets := make([]EventSink, 0, len(h.clients))
	for sink, filter := range h.clients {
		if filter == nil || filter(event) {
			targets = append(targets, sink)
		}
	}
	h.mu.Unlock()

	for _, sink := range targets {
		if err := sink.WriteJSON(event); err != nil {
			logrus.WithError(err).WithField("issueId", event.IssueID).Debug("dropping issue event subscriber")
			h.Remove(sink)
		}
	}
}

func (h *IssueHub) Publish(event IssueEvent) {
	if h == nil {
		return
	}
	select {
	case h.ch <- event:
	default:
		logrus.WithField("issueId", event.IssueID).Warn("issue event buffer full")
	}
}

func (h *IssueHub) Add(sink EventSink, filter EventFilter) {
	h.mu.Lock()
	h.clients[sink] = filter
	h.mu.Unlock()
}

func (h *IssueHub) Remove(sink EventSink) {
	h.mu.Lock()
	delete(h.clients, sink)
	h.mu.Unlock()
}

func (h *IssueHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

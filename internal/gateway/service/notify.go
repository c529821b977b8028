package service

import (
	"sync"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/domain"
	"github.com/entradalabs/entrada/pkg/idx"
)

// DefaultNotificationDuration is the usual display duration for transient
// notifications. A zero duration disables auto-expiry; the notification
// stays until dismissed.
const DefaultNotificationDuration = 5 * time.Second

// NotificationStore holds the transient user-facing messages every other
// component reports outcomes through. Notifications expire on their own
// after their duration; List returns them in insertion order. All mutation
// goes through one mutex, since expiry timers and handlers race otherwise.
type NotificationStore struct {
	mu     sync.Mutex
	order  []idx.ID
	byID   map[idx.ID]domain.Notification
	timers map[idx.ID]*time.Timer
	closed bool
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		byID:   make(map[idx.ID]domain.Notification),
		timers: make(map[idx.ID]*time.Timer),
	}
}

// Add appends a notification, assigns it a fresh id and schedules its
// automatic removal. A non-positive duration means the notification never
// expires on its own. The generated id is returned.
func (s *NotificationStore) Add(n domain.Notification) idx.ID {
	n.ID = idx.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return n.ID
	}

	s.order = append(s.order, n.ID)
	s.byID[n.ID] = n
	if n.Duration > 0 {
		s.timers[n.ID] = time.AfterFunc(n.Duration, func() {
			s.Remove(n.ID)
		})
	}

	return n.ID
}

// Success is a convenience for Add with a success kind.
func (s *NotificationStore) Success(title, message string, duration time.Duration) idx.ID {
	return s.Add(domain.Notification{
		Kind:     domain.NotificationSuccess,
		Title:    title,
		Message:  message,
		Duration: duration,
	})
}

// Error is a convenience for Add with an error kind.
func (s *NotificationStore) Error(title, message string, duration time.Duration) idx.ID {
	return s.Add(domain.Notification{
		Kind:     domain.NotificationError,
		Title:    title,
		Message:  message,
		Duration: duration,
	})
}

// Info is a convenience for Add with an info kind.
func (s *NotificationStore) Info(title, message string, duration time.Duration) idx.ID {
	return s.Add(domain.Notification{
		Kind:     domain.NotificationInfo,
		Title:    title,
		Message:  message,
		Duration: duration,
	})
}

// Remove deletes a notification immediately, e.g. on user dismissal.
// Removing an unknown or already-expired id is a no-op.
func (s *NotificationStore) Remove(id idx.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return
	}

	delete(s.byID, id)
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// List returns the live notifications in insertion order.
func (s *NotificationStore) List() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Notification, 0, len(s.order))
	for _, id := range s.order {
		if n, ok := s.byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Close drops all notifications, stops their expiry timers and rejects
// further additions.
func (s *NotificationStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.byID = make(map[idx.ID]domain.Notification)
	s.order = nil
}

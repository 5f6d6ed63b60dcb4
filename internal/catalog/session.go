package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/xid"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/metrics"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/validation"
)

// Session is the UI state of one browser tab: the list, at most one open
// dialog, and the toasts waiting to be shown.
type Session struct {
	ID     string
	Viewer string
	List   *ListPresenter
	Toasts *ToastQueue

	store   Store
	metrics *metrics.Metrics

	mu     sync.Mutex
	dialog *Dialog
}

func newSession(viewer string, store Store, m *metrics.Metrics) *Session {
	return &Session{
		ID:      xid.New().String(),
		Viewer:  viewer,
		List:    NewListPresenter(store),
		Toasts:  &ToastQueue{},
		store:   store,
		metrics: m,
	}
}

func (s *Session) deps() Deps {
	return Deps{
		Store:       s.store,
		Invalidator: s.List,
		Notifier:    s.Toasts,
		Metrics:     s.metrics,
	}
}

// Open shows record id in a fresh dialog, replacing any open one. The record
// comes from the loaded list.
func (s *Session) Open(id string) (*Dialog, error) {
	record, ok := s.List.Find(id)
	if !ok {
		return nil, apperror.NotFound("species", id)
	}

	s.mu.Lock()
	prev := s.dialog
	s.dialog = NewDialog(record, s.Viewer, s.deps())
	d := s.dialog
	s.mu.Unlock()

	if prev != nil && !prev.Closed() {
		prev.Close()
	}
	return d, nil
}

// Dialog returns the open dialog for record id. A closed dialog, or one
// showing another record, is reported as ErrInvalidTransition.
func (s *Session) Dialog(id string) (*Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialog == nil || s.dialog.Closed() || s.dialog.ID() != id {
		return nil, apperror.InvalidTransition("act on a species", "no dialog is open for it")
	}
	return s.dialog, nil
}

// Current returns the open dialog, or nil when none is open.
func (s *Session) Current() *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialog == nil || s.dialog.Closed() {
		return nil
	}
	return s.dialog
}

// CloseDialog closes the open dialog, if any.
func (s *Session) CloseDialog() {
	s.mu.Lock()
	d := s.dialog
	s.dialog = nil
	s.mu.Unlock()

	if d != nil {
		d.Close()
	}
}

// Create validates in and inserts a new record authored by the viewer.
func (s *Session) Create(ctx context.Context, in validation.Input) (*model.Species, error) {
	return CreateRecord(ctx, in, s.store, s.List, s.Toasts)
}

// Invalidate reloads the list. It is called when another session commits a
// change.
func (s *Session) Invalidate(ctx context.Context) error {
	return s.List.Invalidate(ctx)
}

// Sessions is the registry of live UI sessions. Entries expire after the
// idle TTL; every Get refreshes the TTL.
type Sessions struct {
	cache   *cache.Cache
	store   Store
	metrics *metrics.Metrics
}

// NewSessions creates a registry. idle must be positive.
func NewSessions(store Store, m *metrics.Metrics, idle time.Duration) *Sessions {
	c := cache.New(idle, idle/2)
	c.OnEvicted(func(string, any) {
		m.SetSessions(c.ItemCount())
	})
	return &Sessions{cache: c, store: store, metrics: m}
}

// Start creates a session for viewer and loads its list.
func (r *Sessions) Start(ctx context.Context, viewer string) (*Session, error) {
	if viewer == "" {
		return nil, apperror.Unauthorized("a signed-in user is required")
	}
	s := newSession(viewer, r.store, r.metrics)
	if err := s.List.Load(ctx); err != nil {
		return nil, err
	}
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
	r.metrics.SetSessions(r.cache.ItemCount())
	return s, nil
}

// Get returns session id if it exists and belongs to viewer.
func (r *Sessions) Get(id, viewer string) (*Session, bool) {
	v, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	s, ok := v.(*Session)
	if !ok || s.Viewer != viewer {
		return nil, false
	}
	r.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

// Resume returns session id for viewer, or starts a new one when it is
// missing, expired or owned by someone else.
func (r *Sessions) Resume(ctx context.Context, id, viewer string) (s *Session, started bool, err error) {
	if s, ok := r.Get(id, viewer); ok {
		return s, false, nil
	}
	s, err = r.Start(ctx, viewer)
	return s, err == nil, err
}

// End drops session id.
func (r *Sessions) End(id string) {
	r.cache.Delete(id)
}

// Len is the number of live sessions.
func (r *Sessions) Len() int {
	return r.cache.ItemCount()
}

package catalog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity of a toast notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Toast is a transient user-visible notification. Description is optional.
type Toast struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    Severity  `json:"severity"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewToast builds a toast with a fresh ID.
func NewToast(severity Severity, title, description string) Toast {
	return Toast{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Severity:    severity,
		CreatedAt:   time.Now(),
	}
}

// maxQueuedToasts bounds a queue nobody drains (e.g. a tab left in the
// background). Oldest toasts are dropped first.
const maxQueuedToasts = 20

// ToastQueue collects toasts until the next response drains them.
// It implements Notifier and is safe for concurrent use.
type ToastQueue struct {
	mu    sync.Mutex
	items []Toast
}

func (q *ToastQueue) Notify(t Toast) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	if over := len(q.items) - maxQueuedToasts; over > 0 {
		q.items = append([]Toast(nil), q.items[over:]...)
	}
}

// Drain returns all queued toasts, oldest first, and empties the queue.
func (q *ToastQueue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len reports the number of queued toasts.
func (q *ToastQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

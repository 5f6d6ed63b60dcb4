// Package catalog is the interaction core of the species catalog UI: the
// record form, the delete confirmation gate, the record dialog and the list
// presenter, plus the per-browser session that ties them together.
//
// Nothing in here knows about HTTP. The handler package turns browser events
// into calls on a Session and renders whatever state comes back.
package catalog

import (
	"context"
	"errors"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/repository"
)

// Store is the backing-store contract the core consumes.
// service.SpeciesService implements it; the author of an insert and the
// permission checks come from the session identity carried in ctx.
type Store interface {
	List(ctx context.Context, opts repository.ListOptions) ([]model.Species, error)
	Insert(ctx context.Context, fields model.SpeciesFields) (*model.Species, error)
	Update(ctx context.Context, id string, fields model.SpeciesFields) error
	Delete(ctx context.Context, id string) error
}

// Invalidator re-fetches after a committed mutation. It carries no payload:
// views always reload from the store rather than patching local copies.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context) error

func (f InvalidatorFunc) Invalidate(ctx context.Context) error { return f(ctx) }

// Notifier receives transient toast notifications.
type Notifier interface {
	Notify(t Toast)
}

// backendMessage is the user-facing text for a store error.
func backendMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// announcedError marks an error whose toast is already queued.
type announcedError struct{ err error }

func (e *announcedError) Error() string { return e.err.Error() }
func (e *announcedError) Unwrap() error { return e.err }

// announce queues an error toast with the backend message and marks err so
// callers further up do not notify a second time.
func announce(n Notifier, title string, err error) error {
	n.Notify(NewToast(SeverityError, title, backendMessage(err)))
	return &announcedError{err: err}
}

// Announced reports whether the user has already been told about err.
func Announced(err error) bool {
	var a *announcedError
	return errors.As(err, &a)
}

// refetch invalidates and turns a failed reload into an error toast.
// The mutation itself already succeeded, so the caller still reports success.
func refetch(ctx context.Context, inv Invalidator, n Notifier) {
	if inv == nil {
		return
	}
	if err := inv.Invalidate(ctx); err != nil {
		n.Notify(NewToast(SeverityError, "Could not refresh the catalog", backendMessage(err)))
	}
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/validation"
)

// Mode of a record form.
type Mode int

const (
	ModeViewing Mode = iota
	ModeEditing
)

func (m Mode) String() string {
	if m == ModeEditing {
		return "editing"
	}
	return "viewing"
}

// FormController owns the editable state of one record.
//
// baseline is the last value confirmed by the store; draft is what the user
// is typing. The draft only becomes the baseline after the store accepts an
// update, so a failed submit never loses the user's input and a cancel
// always restores what is actually stored.
//
// FormController is not safe for concurrent use; Dialog serializes access.
type FormController struct {
	store    Store
	refetch  Invalidator
	notifier Notifier

	viewer   string
	baseline model.Species
	draft    validation.Input
	mode     Mode
	errors   validation.Errors
}

// NewFormController starts in viewing mode with the draft equal to record.
func NewFormController(record model.Species, viewer string, store Store, inv Invalidator, n Notifier) *FormController {
	return &FormController{
		store:    store,
		refetch:  inv,
		notifier: n,
		viewer:   viewer,
		baseline: record,
		draft:    validation.InputFrom(record.SpeciesFields),
	}
}

func (f *FormController) Mode() Mode                { return f.mode }
func (f *FormController) Baseline() model.Species   { return f.baseline }
func (f *FormController) Draft() validation.Input   { return f.draft }
func (f *FormController) Errors() validation.Errors { return f.errors }

// CanEdit reports whether the viewer authored the record.
func (f *FormController) CanEdit() bool {
	return f.baseline.IsAuthor(f.viewer)
}

// BeginEdit moves viewing -> editing with the draft seeded from the baseline.
// Non-authors get ErrForbidden and nothing changes.
func (f *FormController) BeginEdit() error {
	if !f.CanEdit() {
		return apperror.Forbidden("only the author can edit this species")
	}
	if f.mode != ModeViewing {
		return apperror.InvalidTransition("edit", f.mode.String())
	}
	f.draft = validation.InputFrom(f.baseline.SpeciesFields)
	f.errors = nil
	f.mode = ModeEditing
	return nil
}

// SetDraft replaces the draft with the latest form contents.
func (f *FormController) SetDraft(in validation.Input) error {
	if f.mode != ModeEditing {
		return apperror.InvalidTransition("change fields", f.mode.String())
	}
	f.draft = in
	return nil
}

// Cancel abandons the edit: the draft is reset to the baseline and errors
// are cleared. No notification.
func (f *FormController) Cancel() {
	f.draft = validation.InputFrom(f.baseline.SpeciesFields)
	f.errors = nil
	f.mode = ModeViewing
}

// Submit validates the draft and sends exactly one update to the store.
//
//   - invalid draft: stays editing, Errors() is populated, the store is not
//     called, and the validation.Errors value is returned
//   - store failure: stays editing, draft untouched, error toast with the
//     backend message, the store error is returned
//   - success: baseline takes the submitted payload, mode returns to viewing,
//     the list is invalidated and a success toast is queued
func (f *FormController) Submit(ctx context.Context) error {
	if f.mode != ModeEditing {
		return apperror.InvalidTransition("submit", f.mode.String())
	}

	fields, err := validation.Validate(f.draft)
	if err != nil {
		var errs validation.Errors
		if errors.As(err, &errs) {
			f.errors = errs
		}
		return err
	}
	f.errors = nil

	if err := f.store.Update(ctx, f.baseline.ID, fields); err != nil {
		return announce(f.notifier, "Could not update species", err)
	}

	f.baseline.SpeciesFields = fields
	f.draft = validation.InputFrom(fields)
	f.mode = ModeViewing

	refetch(ctx, f.refetch, f.notifier)
	f.notifier.Notify(NewToast(SeveritySuccess, "Species updated",
		fmt.Sprintf("%s was saved.", fields.ScientificName)))
	return nil
}

// CreateRecord validates in and inserts it as a new record authored by the
// session user. It follows the same rules as Submit: invalid input never
// reaches the store, store failures become an error toast, and success
// invalidates the list and queues a success toast.
func CreateRecord(ctx context.Context, in validation.Input, store Store, inv Invalidator, n Notifier) (*model.Species, error) {
	fields, err := validation.Validate(in)
	if err != nil {
		return nil, err
	}

	created, err := store.Insert(ctx, fields)
	if err != nil {
		return nil, announce(n, "Could not create species", err)
	}

	refetch(ctx, inv, n)
	n.Notify(NewToast(SeveritySuccess, "Species created",
		fmt.Sprintf("%s was added to the catalog.", created.ScientificName)))
	return created, nil
}

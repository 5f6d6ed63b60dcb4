package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/metrics"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/validation"
)

// State of the record dialog.
type State int

const (
	StateViewing State = iota
	StateEditing
	StateConfirmingDelete
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateConfirmingDelete:
		return "confirming delete"
	default:
		return "viewing"
	}
}

// Triggers, as used in transition errors and metric labels.
const (
	TriggerEdit    = "edit"
	TriggerDelete  = "delete"
	TriggerSubmit  = "submit"
	TriggerCancel  = "cancel"
	TriggerConfirm = "confirm"
	TriggerClose   = "close"
)

// Deps are the collaborators shared by every dialog of a session.
type Deps struct {
	Store       Store
	Invalidator Invalidator
	Notifier    Notifier
	Metrics     *metrics.Metrics
}

// Dialog is the single modal that shows one record.
//
//	Viewing ──edit──▶ Editing ──submit ok / cancel──▶ Viewing
//	Viewing ──delete─▶ ConfirmingDelete ──cancel──▶ Viewing
//	ConfirmingDelete ──confirm ok──▶ closed
//
// Edit and delete are guarded by authorship. Any other trigger returns
// ErrInvalidTransition and changes nothing.
//
// All methods are safe for concurrent use. Submit and Confirm hold the busy
// slot for the duration of their store call; a second mutating trigger while
// one is pending returns ErrBusy instead of queueing a duplicate request.
type Dialog struct {
	mu   sync.Mutex
	busy chan struct{}

	id     string
	deps   Deps
	viewer string
	closed atomic.Bool

	state State
	form  *FormController
	gate  *ConfirmationGate
}

// NewDialog opens record for viewer in the Viewing state.
func NewDialog(record model.Species, viewer string, deps Deps) *Dialog {
	return &Dialog{
		id:     record.ID,
		busy:   make(chan struct{}, 1),
		deps:   deps,
		viewer: viewer,
		form:   NewFormController(record, viewer, deps.Store, deps.Invalidator, deps.Notifier),
	}
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ID of the record shown. It never changes for the life of the dialog.
func (d *Dialog) ID() string {
	return d.id
}

// Closed reports whether the dialog was closed, either by Close or by a
// confirmed delete. It does not wait for a pending mutation.
func (d *Dialog) Closed() bool {
	return d.closed.Load()
}

// Record is the last committed value of the record shown.
func (d *Dialog) Record() model.Species {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form.Baseline()
}

// Controls reports whether edit and delete controls are shown. Only the
// author sees them, whatever the state.
func (d *Dialog) Controls() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form.CanEdit()
}

// Snapshot is a consistent read of everything needed to render the dialog.
type Snapshot struct {
	Record    model.Species
	State     State
	Controls  bool
	Closed    bool
	Draft     validation.Input
	Errors    map[string]string
	Challenge string // expected text while confirming delete
	Input     string // challenge text typed so far
}

func (d *Dialog) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := Snapshot{
		Record:   d.form.Baseline(),
		State:    d.state,
		Controls: d.form.CanEdit(),
		Closed:   d.closed.Load(),
		Draft:    d.form.Draft(),
		Errors:   d.form.Errors().Messages(),
	}
	if d.gate != nil {
		snap.Challenge = d.gate.Challenge()
		snap.Input = d.gate.Input()
	}
	return snap
}

// StartEdit moves Viewing -> Editing.
func (d *Dialog) StartEdit() (err error) {
	defer func() { d.deps.Metrics.RecordTransition(TriggerEdit, err) }()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expect(TriggerEdit, StateViewing); err != nil {
		return err
	}
	if err := d.form.BeginEdit(); err != nil {
		return err
	}
	d.state = StateEditing
	return nil
}

// StartDelete moves Viewing -> ConfirmingDelete with a fresh gate.
func (d *Dialog) StartDelete() (err error) {
	defer func() { d.deps.Metrics.RecordTransition(TriggerDelete, err) }()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expect(TriggerDelete, StateViewing); err != nil {
		return err
	}
	if !d.form.CanEdit() {
		return apperror.Forbidden("only the author can delete this species")
	}
	d.gate = NewConfirmationGate(d.form.Baseline(), d.deps.Store, d.deps.Invalidator, d.deps.Notifier)
	d.state = StateConfirmingDelete
	return nil
}

// SetDraft records the current form contents while editing.
func (d *Dialog) SetDraft(in validation.Input) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expect("change fields", StateEditing); err != nil {
		return err
	}
	return d.form.SetDraft(in)
}

// Submit sends the draft. On success the dialog returns to Viewing showing
// the new baseline; on any failure it stays in Editing.
func (d *Dialog) Submit(ctx context.Context) (err error) {
	defer func() { d.deps.Metrics.RecordTransition(TriggerSubmit, err) }()
	release, err := d.acquire()
	if err != nil {
		return err
	}
	defer release()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expect(TriggerSubmit, StateEditing); err != nil {
		return err
	}
	if err := d.form.Submit(ctx); err != nil {
		return err
	}
	d.state = StateViewing
	return nil
}

// Cancel returns to Viewing from Editing (discarding the draft) or from
// ConfirmingDelete (discarding the gate).
func (d *Dialog) Cancel() (err error) {
	defer func() { d.deps.Metrics.RecordTransition(TriggerCancel, err) }()
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateEditing:
		d.form.Cancel()
	case StateConfirmingDelete:
		d.gate = nil
	default:
		return apperror.InvalidTransition(TriggerCancel, d.state.String())
	}
	d.state = StateViewing
	return nil
}

// Confirm attempts the delete with the typed challenge. On success all
// dialog state is cleared and the dialog is closed.
func (d *Dialog) Confirm(ctx context.Context, input string) (err error) {
	defer func() { d.deps.Metrics.RecordTransition(TriggerConfirm, err) }()
	release, err := d.acquire()
	if err != nil {
		return err
	}
	defer release()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expect(TriggerConfirm, StateConfirmingDelete); err != nil {
		return err
	}
	if err := d.gate.Attempt(ctx, input); err != nil {
		return err
	}
	d.reset()
	d.closed.Store(true)
	return nil
}

// Close dismisses the dialog from any state. The next open starts in
// Viewing.
func (d *Dialog) Close() {
	d.deps.Metrics.RecordTransition(TriggerClose, nil)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	d.closed.Store(true)
}

func (d *Dialog) reset() {
	d.form.Cancel()
	d.gate = nil
	d.state = StateViewing
}

func (d *Dialog) expect(trigger string, want State) error {
	if d.closed.Load() {
		return apperror.InvalidTransition(trigger, "closed")
	}
	if d.state != want {
		return apperror.InvalidTransition(trigger, d.state.String())
	}
	return nil
}

// acquire takes the single in-flight mutation slot without blocking.
func (d *Dialog) acquire() (func(), error) {
	select {
	case d.busy <- struct{}{}:
		return func() { <-d.busy }, nil
	default:
		return nil, apperror.Busy()
	}
}

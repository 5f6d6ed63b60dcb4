package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/auth"
	"github.com/sakif/species-catalog/internal/catalog"
	"github.com/sakif/species-catalog/internal/events"
	"github.com/sakif/species-catalog/internal/service"
	"github.com/sakif/species-catalog/internal/validation"
)

const defaultKeepAlive = 25 * time.Second

// CatalogHandler serves the server-driven catalog UI.
//
// HOW THE UI WORKS:
// The page is rendered once. Every button then POSTs to a /ui/... route
// with the page's signals (datastar's client-side state: the session id,
// the form drafts and the typed delete challenge). The handler runs the
// trigger against the tab's catalog.Session and answers with an SSE
// response that patches the list, the dialog and the toasts in place.
//
// A long-lived GET /ui/events stream re-fetches and patches the list
// whenever any session, on any instance, commits a change.
type CatalogHandler struct {
	sessions  *catalog.Sessions
	auth      *service.AuthService
	hub       *events.Hub
	views     *Views
	logger    *slog.Logger
	keepAlive time.Duration
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(
	sessions *catalog.Sessions,
	authService *service.AuthService,
	hub *events.Hub,
	views *Views,
	logger *slog.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		sessions:  sessions,
		auth:      authService,
		hub:       hub,
		views:     views,
		logger:    logger,
		keepAlive: defaultKeepAlive,
	}
}

// formSignals mirrors one species form in the page signals.
type formSignals struct {
	ScientificName  string     `json:"scientificName"`
	CommonName      string     `json:"commonName"`
	Kingdom         string     `json:"kingdom"`
	TotalPopulation flexString `json:"totalPopulation"`
	Image           string     `json:"image"`
	Description     string     `json:"description"`
}

func (f formSignals) input() validation.Input {
	return validation.Input{
		ScientificName:  f.ScientificName,
		CommonName:      f.CommonName,
		Kingdom:         f.Kingdom,
		TotalPopulation: string(f.TotalPopulation),
		Image:           f.Image,
		Description:     f.Description,
	}
}

// uiSignals is everything the page sends with a request.
type uiSignals struct {
	SID       string      `json:"sid"`
	Draft     formSignals `json:"draft"`
	Create    formSignals `json:"create"`
	Challenge string      `json:"challenge"`
}

// HandlePage renders the catalog page with a fresh UI session.
//
// HTTP: GET /
// Auth: RequirePage (redirects to /login without a session)
func (h *CatalogHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())

	sess, err := h.sessions.Start(r.Context(), viewer)
	if err != nil {
		h.logger.Error("failed to start catalog session",
			slog.String("userID", viewer),
			slog.String("error", err.Error()),
		)
		http.Error(w, "could not load the catalog", http.StatusInternalServerError)
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), viewer)
	if err != nil {
		// The header just shows no name; the catalog itself still works.
		h.logger.Warn("catalog page: user lookup failed", slog.String("userID", viewer))
	}

	h.views.writeHTML(w, http.StatusOK, "catalog.html", catalogPage{
		Title:     "Species Catalog",
		SessionID: sess.ID,
		User:      user,
		Create:    newFieldsView("create", nil),
		List:      newListView(sess),
		Dialog:    newDialogView(nil),
		Toasts:    sess.Toasts.Drain(),
	})
}

// HandleEvents streams list re-fetches for the tab's session.
//
// HTTP: GET /ui/events (datastar SSE)
func (h *CatalogHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sess, sig, err := h.resume(r)
	if err != nil {
		writeError(w, err)
		return
	}

	changes, cancel := h.hub.Subscribe()
	defer cancel()

	// The server's WriteTimeout would cut the stream off.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("catalog stream: clearing write deadline", slog.String("error", err.Error()))
	}

	sse := datastar.NewSSE(w, r)
	if sess.ID != sig.SID {
		_ = sse.MarshalAndPatchSignals(map[string]any{"sid": sess.ID})
	}

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := sess.Invalidate(sse.Context()); err != nil {
				h.logger.Warn("catalog stream: re-fetch failed",
					slog.String("session", sess.ID),
					slog.String("error", err.Error()),
				)
				sess.Toasts.Notify(catalog.NewToast(catalog.SeverityError, "Could not refresh the catalog", err.Error()))
			}
			h.logger.Debug("catalog stream: list re-fetched",
				slog.String("session", sess.ID),
				slog.String("action", string(change.Action)),
				slog.String("speciesID", change.SpeciesID),
			)
			h.patchList(sse, sess)
			h.patchToasts(sse, sess)
		}
	}
}

// HandleOrder toggles between newest-first and A to Z. Both orderings are
// already loaded, so the store is not called.
//
// HTTP: POST /ui/order
func (h *CatalogHandler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(_ context.Context, sess *catalog.Session, _ uiSignals) error {
		sess.List.Toggle()
		return nil
	})
}

// HandleCreate validates the create form and inserts a record.
//
// HTTP: POST /ui/species
func (h *CatalogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, sig, err := h.resume(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var fieldErrs validation.Errors
	_, err = sess.Create(r.Context(), sig.Create.input())
	switch {
	case err == nil:
	case errors.As(err, &fieldErrs):
		// Shown inline; nothing was sent to the store.
	default:
		h.report(sess, err)
	}

	sse := datastar.NewSSE(w, r)
	h.patchCreateForm(sse, fieldErrs.Messages())
	if err == nil {
		_ = sse.MarshalAndPatchSignals(map[string]any{"create": validation.Input{}})
	}
	h.patchView(sse, sess, sig.SID)
}

// HandleOpen shows a record in the dialog.
//
// HTTP: POST /ui/species/{id}/open
func (h *CatalogHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.act(w, r, func(_ context.Context, sess *catalog.Session, _ uiSignals) error {
		_, err := sess.Open(id)
		return err
	})
}

// HandleEdit moves the dialog to editing.
//
// HTTP: POST /ui/species/{id}/edit
func (h *CatalogHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	h.onDialog(w, r, func(_ context.Context, d *catalog.Dialog, _ uiSignals) error {
		return d.StartEdit()
	})
}

// HandleDelete moves the dialog to the typed delete confirmation.
//
// HTTP: POST /ui/species/{id}/delete
func (h *CatalogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.onDialog(w, r, func(_ context.Context, d *catalog.Dialog, _ uiSignals) error {
		return d.StartDelete()
	})
}

// HandleCancel leaves editing or the delete confirmation.
//
// HTTP: POST /ui/species/{id}/cancel
func (h *CatalogHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.onDialog(w, r, func(_ context.Context, d *catalog.Dialog, _ uiSignals) error {
		return d.Cancel()
	})
}

// HandleSubmit sends the edit draft.
//
// HTTP: POST /ui/species/{id}/submit
func (h *CatalogHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	h.onDialog(w, r, func(ctx context.Context, d *catalog.Dialog, sig uiSignals) error {
		if err := d.SetDraft(sig.Draft.input()); err != nil {
			return err
		}
		return d.Submit(ctx)
	})
}

// HandleConfirm attempts the delete with the typed challenge.
//
// HTTP: POST /ui/species/{id}/confirm
func (h *CatalogHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.onDialog(w, r, func(ctx context.Context, d *catalog.Dialog, sig uiSignals) error {
		return d.Confirm(ctx, sig.Challenge)
	})
}

// HandleClose dismisses the dialog.
//
// HTTP: POST /ui/species/{id}/close
func (h *CatalogHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.act(w, r, func(_ context.Context, sess *catalog.Session, _ uiSignals) error {
		if _, err := sess.Dialog(id); err == nil {
			sess.CloseDialog()
		}
		return nil
	})
}

// RejectUI is the rate limiter's reject callback for UI routes: the
// rejection is shown as a toast and the view is left as it was.
func (h *CatalogHandler) RejectUI(w http.ResponseWriter, r *http.Request, err error) {
	h.act(w, r, func(context.Context, *catalog.Session, uiSignals) error {
		return err
	})
}

// act runs op against the request's session and patches the whole view.
func (h *CatalogHandler) act(w http.ResponseWriter, r *http.Request, op func(context.Context, *catalog.Session, uiSignals) error) {
	sess, sig, err := h.resume(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(r.Context(), sess, sig); err != nil {
		h.report(sess, err)
	}
	h.patchView(datastar.NewSSE(w, r), sess, sig.SID)
}

// onDialog is act for triggers on the open dialog of record {id}.
func (h *CatalogHandler) onDialog(w http.ResponseWriter, r *http.Request, op func(context.Context, *catalog.Dialog, uiSignals) error) {
	id := chi.URLParam(r, "id")
	h.act(w, r, func(ctx context.Context, sess *catalog.Session, sig uiSignals) error {
		d, err := sess.Dialog(id)
		if err != nil {
			return err
		}
		return op(ctx, d, sig)
	})
}

// resume reads the page signals and finds the tab's session. An expired or
// unknown session id starts a new session; patchView then hands the new id
// back to the page.
func (h *CatalogHandler) resume(r *http.Request) (*catalog.Session, uiSignals, error) {
	var sig uiSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		return nil, sig, apperror.ValidationFailed("signals", "invalid request signals")
	}
	viewer, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, sig, apperror.Unauthorized("sign in to use the catalog")
	}
	sess, started, err := h.sessions.Resume(r.Context(), sig.SID, viewer)
	if err != nil {
		return nil, sig, err
	}
	if started {
		h.logger.Info("catalog session started",
			slog.String("session", sess.ID),
			slog.String("userID", viewer),
		)
	}
	return sess, sig, nil
}

// report turns a trigger error into what the user sees. Validation errors
// are already inline, and store failures and a wrong challenge already
// queued their own toast; guard failures get a toast here.
func (h *CatalogHandler) report(sess *catalog.Session, err error) {
	switch {
	case catalog.Announced(err):
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrChallengeMismatch):
	case errors.Is(err, apperror.ErrBusy):
		sess.Toasts.Notify(catalog.NewToast(catalog.SeverityInfo, "Still working", "The previous request has not finished yet."))
	case errors.Is(err, apperror.ErrRateLimited):
		sess.Toasts.Notify(catalog.NewToast(catalog.SeverityError, "Slow down", messageOf(err)))
	case errors.Is(err, apperror.ErrForbidden),
		errors.Is(err, apperror.ErrInvalidTransition),
		errors.Is(err, apperror.ErrNotFound),
		errors.Is(err, apperror.ErrUnauthorized):
		sess.Toasts.Notify(catalog.NewToast(catalog.SeverityError, "Action not available", messageOf(err)))
	default:
		h.logger.Warn("catalog action failed",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()),
		)
	}
}

func messageOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// patchView sends the list, the dialog, pending toasts and the signals the
// dialog owns.
func (h *CatalogHandler) patchView(sse *datastar.ServerSentEventGenerator, sess *catalog.Session, sentSID string) {
	h.patchList(sse, sess)

	view := newDialogView(sess.Current())
	if html, ok := h.fragment(sse, "dialog", view); ok {
		_ = sse.PatchElements(html, datastar.WithSelector("#dialog"), datastar.WithMode(datastar.ElementPatchModeOuter))
	}

	signals := map[string]any{}
	if sess.ID != sentSID {
		signals["sid"] = sess.ID
	}
	if view.Open {
		signals["draft"] = view.Snap.Draft
		signals["challenge"] = view.Snap.Input
	}
	if len(signals) > 0 {
		_ = sse.MarshalAndPatchSignals(signals)
	}

	h.patchToasts(sse, sess)
}

func (h *CatalogHandler) patchList(sse *datastar.ServerSentEventGenerator, sess *catalog.Session) {
	if html, ok := h.fragment(sse, "species_list", newListView(sess)); ok {
		_ = sse.PatchElements(html, datastar.WithSelector("#species-list"), datastar.WithMode(datastar.ElementPatchModeOuter))
	}
}

func (h *CatalogHandler) patchCreateForm(sse *datastar.ServerSentEventGenerator, errs map[string]string) {
	if html, ok := h.fragment(sse, "create_form", newFieldsView("create", errs)); ok {
		_ = sse.PatchElements(html, datastar.WithSelector("#create-form"), datastar.WithMode(datastar.ElementPatchModeOuter))
	}
}

func (h *CatalogHandler) patchToasts(sse *datastar.ServerSentEventGenerator, sess *catalog.Session) {
	toasts := sess.Toasts.Drain()
	if len(toasts) == 0 {
		return
	}
	if html, ok := h.fragment(sse, "toasts", toasts); ok {
		_ = sse.PatchElements(html, datastar.WithSelector("#toasts"), datastar.WithMode(datastar.ElementPatchModeAppend))
	}
}

// fragment renders a partial. A template error is logged and surfaced in
// the browser console; the rest of the patch still goes out.
func (h *CatalogHandler) fragment(sse *datastar.ServerSentEventGenerator, name string, data any) (string, bool) {
	html, err := h.views.render(name, data)
	if err != nil {
		h.logger.Error("failed to render fragment", slog.String("template", name), slog.String("error", err.Error()))
		_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
		return "", false
	}
	return html, true
}

package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/auth"
	"github.com/sakif/species-catalog/internal/catalog"
	"github.com/sakif/species-catalog/internal/validation"
)

// pageSignals is what the datastar page posts with every trigger.
type pageSignals struct {
	SID       string           `json:"sid"`
	Draft     validation.Input `json:"draft"`
	Create    validation.Input `json:"create"`
	Challenge string           `json:"challenge"`
}

func (h *harness) ui(path, token string, sig pageSignals) *httptest.ResponseRecorder {
	h.t.Helper()
	body, err := json.Marshal(sig)
	require.NoError(h.t, err)
	rr := h.do(http.MethodPost, path, string(body), token)
	require.Equal(h.t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(h.t, rr.Header().Get("Content-Type"), "text/event-stream")
	return rr
}

func TestCatalogUI_Create(t *testing.T) {
	h := newHarness(t)
	user, token := h.register("ada@example.com")
	sess, err := h.sessions.Start(auth.WithUserID(context.Background(), user.ID), user.ID)
	require.NoError(t, err)

	t.Run("invalid input stays inline", func(t *testing.T) {
		rr := h.ui("/ui/species", token, pageSignals{
			SID:    sess.ID,
			Create: validation.Input{Kingdom: "Animalia"},
		})
		body := rr.Body.String()
		assert.Contains(t, body, "datastar-patch-elements")
		assert.Contains(t, body, "#create-form")
		assert.Contains(t, body, "scientific name is required")
		assert.Empty(t, sess.List.Visible())
	})

	t.Run("valid input inserts and refreshes the list", func(t *testing.T) {
		rr := h.ui("/ui/species", token, pageSignals{
			SID:    sess.ID,
			Create: validation.Input{ScientificName: "Cavia porcellus", Kingdom: "Animalia", TotalPopulation: "5000000"},
		})
		body := rr.Body.String()
		assert.Contains(t, body, "#species-list")
		assert.Contains(t, body, "Cavia porcellus")
		assert.Contains(t, body, "datastar-patch-signals", "create form is reset")

		require.Len(t, sess.List.Visible(), 1)
		assert.Equal(t, user.ID, sess.List.Visible()[0].Author)
	})
}

func TestCatalogUI_DialogFlow(t *testing.T) {
	h := newHarness(t)
	user, token := h.register("ada@example.com")
	ctx := auth.WithUserID(context.Background(), user.ID)

	sess, err := h.sessions.Start(ctx, user.ID)
	require.NoError(t, err)
	created, err := sess.Create(ctx, validation.Input{ScientificName: "Cavia porcellus", Kingdom: "Animalia"})
	require.NoError(t, err)
	base := "/ui/species/" + created.ID

	rr := h.ui(base+"/open", token, pageSignals{SID: sess.ID})
	assert.Contains(t, rr.Body.String(), "#dialog")
	require.NotNil(t, sess.Current())
	assert.Equal(t, catalog.StateViewing, sess.Current().State())

	h.ui(base+"/edit", token, pageSignals{SID: sess.ID})
	assert.Equal(t, catalog.StateEditing, sess.Current().State())

	draft := validation.InputFrom(created.SpeciesFields)
	draft.CommonName = "Guinea pig"
	h.ui(base+"/submit", token, pageSignals{SID: sess.ID, Draft: draft})
	assert.Equal(t, catalog.StateViewing, sess.Current().State())

	stored, err := h.species.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CommonName)
	assert.Equal(t, "Guinea pig", *stored.CommonName)

	h.ui(base+"/delete", token, pageSignals{SID: sess.ID})
	assert.Equal(t, catalog.StateConfirmingDelete, sess.Current().State())

	rr = h.ui(base+"/confirm", token, pageSignals{SID: sess.ID, Challenge: "delete cavia porcellus"})
	assert.Contains(t, rr.Body.String(), "Improper deletion input")
	assert.Equal(t, catalog.StateConfirmingDelete, sess.Current().State())
	_, err = h.species.GetByID(ctx, created.ID)
	require.NoError(t, err, "a wrong challenge never reaches the store")

	h.ui(base+"/confirm", token, pageSignals{SID: sess.ID, Challenge: catalog.Challenge("Cavia porcellus")})
	assert.Nil(t, sess.Current())
	_, err = h.species.GetByID(ctx, created.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Empty(t, sess.List.Visible())
}

func TestCatalogUI_CancelAndClose(t *testing.T) {
	h := newHarness(t)
	user, token := h.register("ada@example.com")
	ctx := auth.WithUserID(context.Background(), user.ID)

	sess, err := h.sessions.Start(ctx, user.ID)
	require.NoError(t, err)
	created, err := sess.Create(ctx, validation.Input{ScientificName: "Quercus robur", Kingdom: "Plantae"})
	require.NoError(t, err)
	base := "/ui/species/" + created.ID

	h.ui(base+"/open", token, pageSignals{SID: sess.ID})
	h.ui(base+"/delete", token, pageSignals{SID: sess.ID})
	h.ui(base+"/cancel", token, pageSignals{SID: sess.ID})
	assert.Equal(t, catalog.StateViewing, sess.Current().State())

	h.ui(base+"/close", token, pageSignals{SID: sess.ID})
	assert.Nil(t, sess.Current())

	// Triggers on a closed dialog change nothing and tell the user.
	rr := h.ui(base+"/edit", token, pageSignals{SID: sess.ID})
	assert.Contains(t, rr.Body.String(), "Action not available")
	assert.Nil(t, sess.Current())
}

func TestCatalogUI_NonAuthorCannotEdit(t *testing.T) {
	h := newHarness(t)
	author, _ := h.register("author@example.com")
	other, otherToken := h.register("other@example.com")

	authorCtx := auth.WithUserID(context.Background(), author.ID)
	authorSess, err := h.sessions.Start(authorCtx, author.ID)
	require.NoError(t, err)
	created, err := authorSess.Create(authorCtx, validation.Input{ScientificName: "Amanita muscaria", Kingdom: "Fungi"})
	require.NoError(t, err)

	sess, err := h.sessions.Start(auth.WithUserID(context.Background(), other.ID), other.ID)
	require.NoError(t, err)
	base := "/ui/species/" + created.ID

	h.ui(base+"/open", otherToken, pageSignals{SID: sess.ID})
	require.NotNil(t, sess.Current())
	assert.False(t, sess.Current().Controls())

	rr := h.ui(base+"/edit", otherToken, pageSignals{SID: sess.ID})
	assert.Contains(t, rr.Body.String(), "Action not available")
	assert.Equal(t, catalog.StateViewing, sess.Current().State())

	h.ui(base+"/delete", otherToken, pageSignals{SID: sess.ID})
	assert.Equal(t, catalog.StateViewing, sess.Current().State())
}

func TestCatalogUI_Sessions(t *testing.T) {
	h := newHarness(t)
	user, token := h.register("ada@example.com")

	t.Run("unknown session id starts a new one", func(t *testing.T) {
		before := h.sessions.Len()
		rr := h.ui("/ui/order", token, pageSignals{SID: "expired"})
		assert.Contains(t, rr.Body.String(), "datastar-patch-signals")
		assert.Contains(t, rr.Body.String(), `"sid"`)
		assert.Equal(t, before+1, h.sessions.Len())
	})

	t.Run("order toggles the list", func(t *testing.T) {
		sess, err := h.sessions.Start(auth.WithUserID(context.Background(), user.ID), user.ID)
		require.NoError(t, err)
		require.False(t, sess.List.Alphabetical())

		h.ui("/ui/order", token, pageSignals{SID: sess.ID})
		assert.True(t, sess.List.Alphabetical())
	})

	t.Run("anonymous triggers are rejected", func(t *testing.T) {
		rr := h.do(http.MethodPost, "/ui/order", `{"sid":""}`, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestCatalogUI_StoreFailureToastsOnce(t *testing.T) {
	h := newHarness(t)
	user, token := h.register("ada@example.com")
	ctx := auth.WithUserID(context.Background(), user.ID)

	sess, err := h.sessions.Start(ctx, user.ID)
	require.NoError(t, err)
	created, err := sess.Create(ctx, validation.Input{ScientificName: "Cavia porcellus", Kingdom: "Animalia"})
	require.NoError(t, err)
	sess.Toasts.Drain()
	base := "/ui/species/" + created.ID

	h.ui(base+"/open", token, pageSignals{SID: sess.ID})
	h.ui(base+"/edit", token, pageSignals{SID: sess.ID})

	// Removed elsewhere while this tab is still editing.
	require.NoError(t, h.species.Delete(ctx, created.ID))

	draft := validation.InputFrom(created.SpeciesFields)
	draft.CommonName = "Guinea pig"
	rr := h.ui(base+"/submit", token, pageSignals{SID: sess.ID, Draft: draft})

	body := rr.Body.String()
	assert.Equal(t, 1, strings.Count(body, "toast-error"), body)
	assert.Contains(t, body, "Could not update species")
	assert.NotContains(t, body, "Action not available")
	assert.Equal(t, catalog.StateEditing, sess.Current().State())
}

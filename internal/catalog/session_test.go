package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/model"
	"github.com/sakif/species-catalog/internal/validation"
)

func TestSessions_GetChecksViewer(t *testing.T) {
	reg := NewSessions(newFakeStore(), nil, time.Minute)

	s, err := reg.Start(ctxAs("ada"), "ada")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Get(s.ID, "ada")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = reg.Get(s.ID, "bob")
	assert.False(t, ok, "a session is never handed to another user")

	reg.End(s.ID)
	_, ok = reg.Get(s.ID, "ada")
	assert.False(t, ok)
}

func TestSessions_ResumeStartsWhenMissing(t *testing.T) {
	reg := NewSessions(newFakeStore(), nil, time.Minute)

	s, started, err := reg.Resume(ctxAs("ada"), "unknown", "ada")
	require.NoError(t, err)
	assert.True(t, started)

	again, started, err := reg.Resume(ctxAs("ada"), s.ID, "ada")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Same(t, s, again)
}

func TestSessions_StartRequiresViewer(t *testing.T) {
	reg := NewSessions(newFakeStore(), nil, time.Minute)

	_, err := reg.Start(ctxAs("ada"), "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestSession_OpenReplacesDialog(t *testing.T) {
	store := newFakeStore()
	a := store.seed("ada", "Apis mellifera")
	b := store.seed("ada", "Panthera leo")
	reg := NewSessions(store, nil, time.Minute)
	s, err := reg.Start(ctxAs("ada"), "ada")
	require.NoError(t, err)

	assert.Nil(t, s.Current())
	first, err := s.Open(a.ID)
	require.NoError(t, err)
	second, err := s.Open(b.ID)
	require.NoError(t, err)
	assert.Same(t, second, s.Current())

	assert.True(t, first.Closed())
	_, err = s.Dialog(a.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	got, err := s.Dialog(b.ID)
	require.NoError(t, err)
	assert.Same(t, second, got)

	_, err = s.Open("missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	s.CloseDialog()
	_, err = s.Dialog(b.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	assert.Nil(t, s.Current())
}

// The full create, edit, failed delete, delete scenario through one session.
func TestSession_CreateEditDeleteScenario(t *testing.T) {
	store := newFakeStore()
	reg := NewSessions(store, nil, time.Minute)
	ctx := ctxAs("ada")
	s, err := reg.Start(ctx, "ada")
	require.NoError(t, err)

	// create
	created, err := s.Create(ctx, validation.Input{
		ScientificName:  "Cavia porcellus",
		Kingdom:         "Animalia",
		TotalPopulation: "300000",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cavia porcellus"}, names(s.List.Recent()))
	assert.Equal(t, []string{"Cavia porcellus"}, names(s.List.ByName()))

	// edit common name
	d, err := s.Open(created.ID)
	require.NoError(t, err)
	require.NoError(t, d.StartEdit())
	draft := d.Snapshot().Draft
	draft.CommonName = "Guinea pig"
	require.NoError(t, d.SetDraft(draft))
	require.NoError(t, d.Submit(ctx))

	listed, ok := s.List.Find(created.ID)
	require.True(t, ok)
	require.NotNil(t, listed.CommonName)
	assert.Equal(t, "Guinea pig", *listed.CommonName)

	// wrong challenge: record survives
	require.NoError(t, d.StartDelete())
	assert.ErrorIs(t, d.Confirm(ctx, "DELETE Cavia porcellus "), apperror.ErrChallengeMismatch)
	require.NoError(t, s.Invalidate(ctx))
	_, ok = s.List.Find(created.ID)
	assert.True(t, ok)

	// correct challenge: record gone from both orderings
	require.NoError(t, d.Confirm(ctx, "DELETE Cavia porcellus"))
	assert.True(t, d.Closed())
	assert.Empty(t, s.List.Recent())
	assert.Empty(t, s.List.ByName())

	var titles []string
	for _, toast := range s.Toasts.Drain() {
		titles = append(titles, toast.Title)
	}
	assert.Equal(t, []string{"Species created", "Species updated", "Improper deletion input", "Species deleted"}, titles)
}

func TestSession_NonAuthorSeesReadOnlyDialog(t *testing.T) {
	store := newFakeStore()
	record := store.seed("ada", "Cavia porcellus")
	reg := NewSessions(store, nil, time.Minute)
	s, err := reg.Start(ctxAs("bob"), "bob")
	require.NoError(t, err)

	d, err := s.Open(record.ID)
	require.NoError(t, err)
	for _, st := range []func() error{d.StartEdit, d.StartDelete} {
		assert.ErrorIs(t, st(), apperror.ErrForbidden)
		assert.False(t, d.Controls())
	}
	assert.Equal(t, model.KingdomAnimalia, d.Record().Kingdom)
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/species-catalog/internal/apperror"
)

func TestChallenge(t *testing.T) {
	assert.Equal(t, "DELETE Cavia porcellus", Challenge("Cavia porcellus"))
}

func TestConfirmationGate_RejectsNearMisses(t *testing.T) {
	inputs := []string{
		"delete Cavia porcellus",
		"DELETE Cavia porcellus ",
		" DELETE Cavia porcellus",
		"DELETE cavia porcellus",
		"DELETE  Cavia porcellus",
		"Cavia porcellus",
		"",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			store := newFakeStore()
			record := store.seed("ada", "Cavia porcellus")
			toasts := &ToastQueue{}
			inv := &countingInvalidator{}
			g := NewConfirmationGate(record, store, inv, toasts)

			err := g.Attempt(context.Background(), input)
			assert.ErrorIs(t, err, apperror.ErrChallengeMismatch)
			assert.Empty(t, g.Input(), "input is cleared after a mismatch")

			_, mutations := store.counts()
			assert.Zero(t, mutations)
			assert.Zero(t, inv.count())

			drained := toasts.Drain()
			require.Len(t, drained, 1)
			assert.Equal(t, "Improper deletion input", drained[0].Title)
		})
	}
}

func TestConfirmationGate_Accepts(t *testing.T) {
	store := newFakeStore()
	record := store.seed("ada", "Cavia porcellus")
	toasts := &ToastQueue{}
	inv := &countingInvalidator{}
	g := NewConfirmationGate(record, store, inv, toasts)

	require.NoError(t, g.Attempt(context.Background(), "DELETE Cavia porcellus"))

	assert.Empty(t, store.records)
	assert.Equal(t, 1, inv.count())
	drained := toasts.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, SeveritySuccess, drained[0].Severity)
	assert.Contains(t, drained[0].Description, "Cavia porcellus")
}

func TestConfirmationGate_BackendFailure(t *testing.T) {
	store := newFakeStore()
	record := store.seed("ada", "Cavia porcellus")
	backend := errors.New("connection reset")
	store.deleteErr = backend
	toasts := &ToastQueue{}
	inv := &countingInvalidator{}
	g := NewConfirmationGate(record, store, inv, toasts)

	err := g.Attempt(context.Background(), "DELETE Cavia porcellus")
	assert.ErrorIs(t, err, backend)
	assert.True(t, Announced(err), "the toast is already queued")
	assert.Equal(t, "DELETE Cavia porcellus", g.Input())
	assert.Zero(t, inv.count())

	drained := toasts.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "connection reset", drained[0].Description)
}

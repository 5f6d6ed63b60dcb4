package catalog

import (
	"context"
	"fmt"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/model"
)

// ChallengePrefix starts every delete challenge.
const ChallengePrefix = "DELETE"

// Challenge is the exact text a user must type to delete a record named
// scientificName, e.g. "DELETE Cavia porcellus".
func Challenge(scientificName string) string {
	return ChallengePrefix + " " + scientificName
}

// ConfirmationGate guards deletion of one record behind a typed challenge.
// Not safe for concurrent use; Dialog serializes access.
type ConfirmationGate struct {
	record   model.Species
	store    Store
	refetch  Invalidator
	notifier Notifier

	input string
}

func NewConfirmationGate(record model.Species, store Store, inv Invalidator, n Notifier) *ConfirmationGate {
	return &ConfirmationGate{record: record, store: store, refetch: inv, notifier: n}
}

// Challenge is the text this gate accepts.
func (g *ConfirmationGate) Challenge() string {
	return Challenge(g.record.ScientificName)
}

// Input is the last challenge text the user entered. It is cleared after a
// mismatch and after a successful delete.
func (g *ConfirmationGate) Input() string {
	return g.input
}

// Attempt deletes the record if input equals the challenge byte for byte.
// No trimming or case folding is applied.
//
// A mismatch clears the input, queues an "Improper deletion input" toast and
// returns ErrChallengeMismatch without touching the store. A store failure
// keeps the input and queues the backend message. On success the list is
// invalidated and a toast names the deleted record.
func (g *ConfirmationGate) Attempt(ctx context.Context, input string) error {
	if input != g.Challenge() {
		g.input = ""
		mismatch := apperror.ChallengeMismatch()
		g.notifier.Notify(NewToast(SeverityError, mismatch.Message,
			fmt.Sprintf("Type %q exactly to delete this species.", g.Challenge())))
		return mismatch
	}
	g.input = input

	if err := g.store.Delete(ctx, g.record.ID); err != nil {
		return announce(g.notifier, "Could not delete species", err)
	}

	g.input = ""
	refetch(ctx, g.refetch, g.notifier)
	g.notifier.Notify(NewToast(SeveritySuccess, "Species deleted",
		fmt.Sprintf("%s was removed from the catalog.", g.record.ScientificName)))
	return nil
}

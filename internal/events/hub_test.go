package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/species-catalog/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_PublishReachesEverySubscriber(t *testing.T) {
	h := NewHub(testLogger())
	a, cancelA := h.Subscribe()
	defer cancelA()
	b, cancelB := h.Subscribe()
	defer cancelB()

	change := model.Change{Action: model.ChangeCreated, SpeciesID: "sp-1", Actor: "ada"}
	h.Publish(context.Background(), change)

	assert.Equal(t, change, <-a)
	assert.Equal(t, change, <-b)
}

func TestHub_CancelUnsubscribesAndCloses(t *testing.T) {
	h := NewHub(testLogger())
	ch, cancel := h.Subscribe()
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel() // idempotent
	assert.Equal(t, 0, h.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}

func TestHub_SlowSubscriberNeverBlocksPublish(t *testing.T) {
	h := NewHub(testLogger())
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			h.Publish(context.Background(), model.Change{Action: model.ChangeUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

type failingForwarder struct{ calls int }

func (f *failingForwarder) Forward(context.Context, model.Change) error {
	f.calls++
	return errors.New("redis down")
}

func TestHub_ForwardFailureStillDeliversLocally(t *testing.T) {
	h := NewHub(testLogger())
	fwd := &failingForwarder{}
	h.SetForwarder(fwd)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(context.Background(), model.Change{Action: model.ChangeDeleted, SpeciesID: "sp-9"})

	assert.Equal(t, "sp-9", (<-ch).SpeciesID)
	assert.Equal(t, 1, fwd.calls)
}

package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/species-catalog/internal/model"
)

// instance is one simulated server: its own hub, client and relay.
type instance struct {
	hub   *Hub
	relay *RedisRelay
}

func startInstance(t *testing.T, ctx context.Context, addr string) instance {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(testLogger())
	relay := NewRedisRelay(client, "test:changes", hub, testLogger())
	hub.SetForwarder(relay)
	go func() { _ = relay.Run(ctx) }()
	return instance{hub: hub, relay: relay}
}

func TestRedisRelay_CarriesChangesBetweenInstances(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startInstance(t, ctx, srv.Addr())
	b := startInstance(t, ctx, srv.Addr())
	require.Eventually(t, func() bool {
		return srv.PubSubNumSub("test:changes")["test:changes"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	fromA, cancelA := a.hub.Subscribe()
	defer cancelA()
	fromB, cancelB := b.hub.Subscribe()
	defer cancelB()

	change := model.Change{Action: model.ChangeUpdated, SpeciesID: "sp-1", Actor: "ada"}
	a.hub.Publish(ctx, change)

	select {
	case got := <-fromB:
		assert.Equal(t, change, got)
	case <-time.After(2 * time.Second):
		t.Fatal("instance B never received the change")
	}

	// A delivered locally once and skipped its own echo.
	assert.Equal(t, change, <-fromA)
	select {
	case dup := <-fromA:
		t.Fatalf("instance A received its own change twice: %+v", dup)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisRelay_RunFailsWithoutRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	defer client.Close()
	srv.Close()

	relay := NewRedisRelay(client, "", NewHub(testLogger()), testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, relay.Run(ctx))
}

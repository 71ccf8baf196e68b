package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Broadcaster, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(client, logger), client, mr
}

func receive(t *testing.T, ch <-chan *redis.Message) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBroadcaster_PublishesToEncounterChannel(t *testing.T) {
	b, client, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()

	sub := client.Subscribe(ctx, Channel(id))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	require.NoError(t, b.PublishEscalated(ctx, id, 42, "dock_clerk", "north_sentry"))
	ev := receive(t, ch)
	assert.Equal(t, EventTypeEscalated, ev.Type)
	assert.Equal(t, id.String(), ev.EncounterID)
	assert.Equal(t, uint64(42), ev.Tick)
	assert.Equal(t, "dock_clerk", ev.Data["npc_id"])
	assert.Equal(t, "north_sentry", ev.Data["guard_id"])

	require.NoError(t, b.PublishAlarmChanged(ctx, id, 43, true))
	ev = receive(t, ch)
	assert.Equal(t, EventTypeAlarmChanged, ev.Type)
	assert.Equal(t, true, ev.Data["alarmed"])

	require.NoError(t, b.PublishTrustChanged(ctx, id, 44, "dock_clerk", 31))
	ev = receive(t, ch)
	assert.Equal(t, float64(31), ev.Data["trust"])
}

func TestBroadcaster_PublishFailsWhenRedisDown(t *testing.T) {
	b, _, mr := setup(t)
	mr.Close()

	err := b.PublishPlayerCaught(context.Background(), uuid.New(), 1, "north_sentry")
	assert.Error(t, err)
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("7f3c2a8e-1f0b-4a55-9c77-2d1b6a4e9f10")
	assert.Equal(t, "encounter-events:7f3c2a8e-1f0b-4a55-9c77-2d1b6a4e9f10", Channel(id))
}

package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fanout/internal/channel"
	apperrors "github.com/pscheid92/fanout/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPollBackend(t *testing.T) (*PollBroadcaster, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock, 30*time.Second)
	guard := NewGuard()
	guard.Channel("room.{id}", allowAll)
	return NewPollBroadcaster(store, store, guard), clock
}

func TestPoll_BroadcastThenPoll(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()

	err := b.Broadcast(ctx, []channel.Channel{channel.NewPublic("news")}, "Headline", map[string]any{"title": "hello"})
	require.NoError(t, err)

	events, cursor, err := b.EventsSince(ctx, []string{"news"}, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "news", events[0].Channel)
	assert.Equal(t, "Headline", events[0].Event)
	assert.Equal(t, "hello", events[0].Payload["title"])
	assert.NotEmpty(t, cursor)

	// Polling again with the advanced cursor yields nothing and the same cursor.
	events, next, err := b.EventsSince(ctx, []string{"news"}, cursor)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, cursor, next)
}

func TestPoll_CursorAdvancesMonotonically(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()
	ch := []channel.Channel{channel.NewPublic("news")}

	require.NoError(t, b.Broadcast(ctx, ch, "First", nil))
	_, c1, err := b.EventsSince(ctx, []string{"news"}, "")
	require.NoError(t, err)

	require.NoError(t, b.Broadcast(ctx, ch, "Second", nil))
	events, c2, err := b.EventsSince(ctx, []string{"news"}, c1)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "Second", events[0].Event)

	n1, err := ParseCursor(c1)
	require.NoError(t, err)
	n2, err := ParseCursor(c2)
	require.NoError(t, err)
	assert.Greater(t, n2, n1)
}

func TestPoll_PreservesPublishOrder(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()
	ch := []channel.Channel{channel.NewPublic("news")}

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, b.Broadcast(ctx, ch, name, nil))
	}

	events, _, err := b.EventsSince(ctx, []string{"news"}, "")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Event)
	assert.Equal(t, "b", events[1].Event)
	assert.Equal(t, "c", events[2].Event)
}

func TestPoll_FiltersByChannel(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Broadcast(ctx, []channel.Channel{channel.NewPublic("news")}, "Headline", nil))
	require.NoError(t, b.Broadcast(ctx, []channel.Channel{channel.NewPrivate("orders.1")}, "OrderShipped", nil))

	events, _, err := b.EventsSince(ctx, []string{"private-orders.1"}, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "OrderShipped", events[0].Event)
}

func TestPoll_MultiChannelBroadcastFansOut(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()

	channels := []channel.Channel{channel.NewPublic("news"), channel.NewPublic("digest")}
	require.NoError(t, b.Broadcast(ctx, channels, "Headline", nil))

	events, _, err := b.EventsSince(ctx, []string{"news", "digest"}, "")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPoll_EmptyChannelListReturnsNothing(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Broadcast(ctx, []channel.Channel{channel.NewPublic("news")}, "Headline", nil))

	events, cursor, err := b.EventsSince(ctx, nil, "42")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, "42", cursor)
}

func TestPoll_InvalidCursor(t *testing.T) {
	b, _ := newPollBackend(t)

	for _, cursor := range []string{"abc", "-1", "1.5"} {
		_, _, err := b.EventsSince(context.Background(), []string{"news"}, cursor)
		require.Error(t, err, "cursor %q", cursor)
		assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
	}
}

func TestPoll_SocketStoredOutOfBand(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()

	payload := map[string]any{"title": "hello", "socket": "socket-1"}
	require.NoError(t, b.Broadcast(ctx, []channel.Channel{channel.NewPublic("news")}, "Headline", payload))

	events, _, err := b.EventsSince(ctx, []string{"news"}, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "socket-1", events[0].Socket)
	assert.NotContains(t, events[0].Payload, "socket")
}

func TestPoll_TouchPresence(t *testing.T) {
	b, clock := newPollBackend(t)
	ctx := context.Background()

	members, err := b.TouchPresence(ctx, "presence-room.7", Member{ID: "u1"})
	require.NoError(t, err)
	require.Len(t, members, 1)

	members, err = b.TouchPresence(ctx, "presence-room.7", Member{ID: "u2"})
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].ID)
	assert.Equal(t, "u2", members[1].ID)

	// u1 stops touching; after the TTL only u2 remains.
	clock.Advance(31 * time.Second)
	members, err = b.TouchPresence(ctx, "presence-room.7", Member{ID: "u2"})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "u2", members[0].ID)
}

func TestPoll_TouchRefreshesExpiry(t *testing.T) {
	b, clock := newPollBackend(t)
	ctx := context.Background()

	_, err := b.TouchPresence(ctx, "presence-room.7", Member{ID: "u1"})
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	_, err = b.TouchPresence(ctx, "presence-room.7", Member{ID: "u1"})
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	members, err := b.TouchPresence(ctx, "presence-room.7", Member{ID: "u2"})
	require.NoError(t, err)
	assert.Len(t, members, 2, "a touch within the TTL keeps the member alive")
}

func TestPoll_PresenceChannelsAreIndependent(t *testing.T) {
	b, _ := newPollBackend(t)
	ctx := context.Background()

	_, err := b.TouchPresence(ctx, "presence-room.1", Member{ID: "u1"})
	require.NoError(t, err)

	members, err := b.TouchPresence(ctx, "presence-room.2", Member{ID: "u2"})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "u2", members[0].ID)
}

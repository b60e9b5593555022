package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pscheid92/fanout/internal/broadcast"
	"github.com/pscheid92/fanout/internal/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emitTestEvent(t *testing.T, mgr *broadcast.Manager, wire, event string, payload map[string]any, socket string) {
	t.Helper()
	b := broadcast.On(channel.ParseWire(wire)).As(event).With(payload)
	if socket != "" {
		b = b.ToOthers(socket)
	}
	require.NoError(t, b.Send(context.Background(), mgr))
}

func TestHandlePoll_ReturnsNewEvents(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "news", "Headline", map[string]any{"title": "hello"}, "")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":["news"]}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[pollResponse](t, rec)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "Headline", body.Events[0].Event)
	assert.Equal(t, "hello", body.Events[0].Payload["title"])
	assert.NotEmpty(t, body.Cursor)
}

func TestHandlePoll_CursorResumesWhereItLeftOff(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "news", "First", nil, "")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":["news"]}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	first := decodeBody[pollResponse](t, rec)
	require.Len(t, first.Events, 1)

	emitTestEvent(t, mgr, "news", "Second", nil, "")

	c, rec = newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["news"],"lastEventId":"`+first.Cursor+`"}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	second := decodeBody[pollResponse](t, rec)

	require.Len(t, second.Events, 1)
	assert.Equal(t, "Second", second.Events[0].Event)
}

func TestHandlePoll_IdempotentWithoutNewEvents(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "news", "Headline", nil, "")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":["news"]}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	first := decodeBody[pollResponse](t, rec)

	c, rec = newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["news"],"lastEventId":"`+first.Cursor+`"}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	second := decodeBody[pollResponse](t, rec)

	assert.Empty(t, second.Events)
	assert.Equal(t, first.Cursor, second.Cursor)
}

func TestHandlePoll_CursorFieldIsLastEventID(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "news", "First", nil, "")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":["news"]}`)
	require.NoError(t, callHandler(srv.handlePoll, c))

	// Subscribing clients read and resend the cursor under this exact key.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Contains(t, raw, "lastEventId")
	assert.NotContains(t, raw, "cursor")

	cursor, ok := raw["lastEventId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, cursor)

	c, rec = newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["news"],"lastEventId":"`+cursor+`"}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	second := decodeBody[pollResponse](t, rec)
	assert.Empty(t, second.Events, "resending the returned cursor must not replay seen events")
}

func TestHandlePoll_MissingChannels(t *testing.T) {
	srv, _ := newTestServer(t)

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePoll_DropsUnauthorizedChannelsSilently(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "news", "Headline", nil, "")
	emitTestEvent(t, mgr, "private-orders.42", "OrderShipped", nil, "")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["news","private-orders.42"]}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[pollResponse](t, rec)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "Headline", body.Events[0].Event)
}

func TestHandlePoll_AuthorizedPrivateChannel(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "private-orders.42", "OrderShipped", nil, "")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["private-orders.42"]}`)
	c.Set(principalContextKey, &broadcast.Principal{ID: "owner"})

	require.NoError(t, callHandler(srv.handlePoll, c))
	body := decodeBody[pollResponse](t, rec)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "OrderShipped", body.Events[0].Event)
}

func TestHandlePoll_ExcludesSendersOwnEvents(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "news", "Mine", nil, "socket-1")
	emitTestEvent(t, mgr, "news", "Theirs", nil, "socket-2")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":["news"]}`)
	c.Request().Header.Set(broadcast.SocketHeader, "socket-1")

	require.NoError(t, callHandler(srv.handlePoll, c))
	body := decodeBody[pollResponse](t, rec)

	require.Len(t, body.Events, 1)
	assert.Equal(t, "Theirs", body.Events[0].Event)
	assert.Empty(t, body.Events[0].Socket, "socket ids never reach clients")
}

func TestHandlePoll_ExcludedEventsStillAdvanceCursor(t *testing.T) {
	srv, mgr := newTestServer(t)
	emitTestEvent(t, mgr, "news", "Mine", nil, "socket-1")

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":["news"]}`)
	c.Request().Header.Set(broadcast.SocketHeader, "socket-1")

	require.NoError(t, callHandler(srv.handlePoll, c))
	body := decodeBody[pollResponse](t, rec)
	assert.Empty(t, body.Events)
	assert.NotEmpty(t, body.Cursor, "cursor must pass the suppressed event so it is not re-fetched forever")
}

func TestHandlePoll_PresenceHeartbeat(t *testing.T) {
	srv, _ := newTestServer(t)

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["presence-room.7"]}`)
	c.Set(principalContextKey, &broadcast.Principal{ID: "u1", Info: map[string]any{"name": "Ada"}})

	require.NoError(t, callHandler(srv.handlePoll, c))
	body := decodeBody[pollResponse](t, rec)

	require.Contains(t, body.Presence, "presence-room.7")
	members := body.Presence["presence-room.7"]
	require.Len(t, members, 1)
	assert.Equal(t, "u1", members[0].ID)
}

func TestHandlePoll_AnonymousGetsNoPresence(t *testing.T) {
	srv, _ := newTestServer(t)

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["presence-room.7"]}`)

	require.NoError(t, callHandler(srv.handlePoll, c))
	body := decodeBody[pollResponse](t, rec)
	assert.Empty(t, body.Presence)
	assert.Empty(t, body.Events)
}

func TestHandlePoll_EmptyChannels(t *testing.T) {
	srv, _ := newTestServer(t)

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":[]}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[pollResponse](t, rec)
	assert.Empty(t, body.Events)
	assert.Empty(t, body.Cursor)
}

func TestHandlePoll_InvalidCursor(t *testing.T) {
	srv, _ := newTestServer(t)

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll",
		`{"channels":["news"],"lastEventId":"garbage"}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePoll_NonPollableDriver(t *testing.T) {
	srv, mgr := newTestServer(t)
	guard := broadcast.NewGuard()
	mgr.Extend("poll", func() (broadcast.Broadcaster, error) {
		return broadcast.NewLogBroadcaster(guard), nil
	})

	c, rec := newJSONContext(srv, http.MethodPost, "/broadcasting/poll", `{"channels":["news"]}`)
	require.NoError(t, callHandler(srv.handlePoll, c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

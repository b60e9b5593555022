package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fanout/internal/broadcast"
	"github.com/pscheid92/fanout/internal/channel"
	apperrors "github.com/pscheid92/fanout/internal/errors"
	"github.com/pscheid92/fanout/internal/metrics"
)

type pollRequest struct {
	Channels []string `json:"channels"`
	Cursor   string   `json:"lastEventId"`
}

type pollResponse struct {
	Events   []broadcast.Record            `json:"events"`
	Cursor   string                        `json:"lastEventId"`
	Presence map[string][]broadcast.Member `json:"presence,omitempty"`
}

// handlePoll returns broadcasts newer than the client's cursor across its
// authorized channels. Unauthorized channels are dropped silently so the
// response does not reveal which channels exist. A presence channel in the
// request doubles as the client's heartbeat on it.
func (s *Server) handlePoll(c echo.Context) error {
	var req pollRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid poll request body")
	}
	// An explicitly empty array is a valid "no channels yet" poll; a missing
	// one is a malformed request.
	if req.Channels == nil {
		return apperrors.ValidationError("channels is required")
	}

	drv, err := s.manager.Driver()
	if err != nil {
		return err
	}
	pollable, ok := drv.(broadcast.Pollable)
	if !ok {
		return apperrors.NotFoundError("active broadcast driver does not support polling")
	}

	metrics.PollRequestsTotal.Inc()

	ctx := c.Request().Context()
	principal := currentPrincipal(c)
	socket := broadcast.SocketID(c.Request())

	var (
		authorized []string
		presence   map[string][]broadcast.Member
	)
	for _, name := range req.Channels {
		ch := channel.ParseWire(name)
		res, err := drv.Auth(ctx, broadcast.AuthRequest{Channel: ch, Principal: principal})
		if err != nil {
			return err
		}
		if !res.Allowed {
			continue
		}
		authorized = append(authorized, name)

		if ch.Visibility() == channel.Presence && res.Member != nil {
			members, err := pollable.TouchPresence(ctx, name, *res.Member)
			if err != nil {
				return err
			}
			if presence == nil {
				presence = make(map[string][]broadcast.Member)
			}
			presence[name] = members
		}
	}

	events, cursor, err := pollable.EventsSince(ctx, authorized, req.Cursor)
	if err != nil {
		return err
	}

	// The sender's own broadcasts are filtered here, not at store time: other
	// pollers of the same channel still receive them.
	filtered := make([]broadcast.Record, 0, len(events))
	for _, rec := range events {
		if socket != "" && rec.Socket == socket {
			continue
		}
		rec.Socket = ""
		filtered = append(filtered, rec)
	}
	metrics.PollEventsReturned.Observe(float64(len(filtered)))

	response := pollResponse{Events: filtered, Cursor: cursor, Presence: presence}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write poll response: %w", err)
	}
	return nil
}

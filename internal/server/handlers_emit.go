package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fanout/internal/broadcast"
	"github.com/pscheid92/fanout/internal/channel"
	apperrors "github.com/pscheid92/fanout/internal/errors"
)

type emitRequest struct {
	Channels   []string       `json:"channels"`
	Event      string         `json:"event"`
	Payload    map[string]any `json:"payload"`
	Socket     string         `json:"socket"`
	Connection string         `json:"connection"`
	Queue      string         `json:"queue"`
	Immediate  bool           `json:"immediate"`
}

// handleEmit broadcasts an ad-hoc event from an HTTP client. Channels are wire
// names; guarded prefixes select the visibility class. Publishing requires an
// authenticated principal: the subscribe side guards channel access, so the
// publish side must not be open to anonymous clients.
func (s *Server) handleEmit(c echo.Context) error {
	if currentPrincipal(c) == nil {
		return apperrors.ForbiddenError("authentication required to broadcast")
	}

	var req emitRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid broadcast request body")
	}
	if len(req.Channels) == 0 {
		return apperrors.ValidationError("channels is required")
	}

	channels := make([]channel.Channel, len(req.Channels))
	for i, name := range req.Channels {
		channels[i] = channel.ParseWire(name)
	}

	b := broadcast.On(channels...).With(req.Payload)
	if req.Event != "" {
		b = b.As(req.Event)
	}
	if req.Connection != "" {
		b = b.Via(req.Connection)
	}
	if req.Queue != "" {
		b = b.OnQueue(req.Queue)
	}

	socket := req.Socket
	if socket == "" {
		socket = broadcast.SocketID(c.Request())
	}
	if socket != "" {
		b = b.ToOthers(socket)
	}
	if req.Immediate {
		b = b.Now()
	}

	if err := b.Send(c.Request().Context(), s.manager); err != nil {
		return err
	}

	if err := c.JSON(http.StatusAccepted, map[string]string{"status": "queued"}); err != nil {
		return fmt.Errorf("failed to write broadcast response: %w", err)
	}
	return nil
}

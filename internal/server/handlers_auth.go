package server

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fanout/internal/broadcast"
	"github.com/pscheid92/fanout/internal/channel"
	apperrors "github.com/pscheid92/fanout/internal/errors"
)

type authRequest struct {
	ChannelName string `json:"channel_name" form:"channel_name"`
}

// handleAuth decides whether the requesting principal may subscribe to a
// channel. Denial is 403 with no detail about whether the channel exists.
func (s *Server) handleAuth(c echo.Context) error {
	var req authRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid auth request body")
	}
	if req.ChannelName == "" {
		return apperrors.ValidationError("channel_name is required")
	}

	ch := channel.ParseWire(req.ChannelName)
	principal := currentPrincipal(c)

	// Presence needs an identity to track; reject before touching the driver.
	if ch.Visibility() == channel.Presence && principal == nil {
		return apperrors.ForbiddenError("presence channels require authentication")
	}

	drv, err := s.manager.Driver()
	if err != nil {
		return err
	}

	res, err := drv.Auth(c.Request().Context(), broadcast.AuthRequest{Channel: ch, Principal: principal})
	if err != nil {
		return err
	}
	if !res.Allowed {
		return apperrors.ForbiddenError("channel authorization denied").WithField("channel", req.ChannelName)
	}

	response := map[string]any{"authorized": true}
	if res.Member != nil {
		response["channel_data"] = res.Member
	}

	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write auth response: %w", err)
	}
	return nil
}

// handleSocket hands the client its stable socket id, minting one on first
// use. The id identifies the sender so its own broadcasts can be excluded.
func (s *Server) handleSocket(c echo.Context) error {
	session, _ := s.sessionStore.Get(c.Request(), sessionName)

	socketID, ok := session.Values[sessionKeySocket].(string)
	if !ok || socketID == "" {
		socketID = uuid.NewString()
		session.Values[sessionKeySocket] = socketID
		if err := session.Save(c.Request(), c.Response()); err != nil {
			return apperrors.InternalError("failed to persist socket id", err)
		}
	}

	if err := c.JSON(http.StatusOK, map[string]string{"socket_id": socketID}); err != nil {
		return fmt.Errorf("failed to write socket response: %w", err)
	}
	return nil
}

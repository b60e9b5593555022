package server

import (
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fanout/internal/broadcast"
)

const principalContextKey = "principal"

// principalMiddleware resolves the acting principal from the cookie session.
// Unauthenticated requests proceed with no principal; guarded channels deny
// them downstream.
func (s *Server) principalMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			// A corrupt or stale cookie is an anonymous request, not an error.
			return next(c)
		}

		id, ok := session.Values[sessionKeyPrincipal].(string)
		if !ok || id == "" {
			return next(c)
		}

		principal := &broadcast.Principal{ID: id}
		if name, ok := session.Values[sessionKeyInfo].(string); ok && name != "" {
			principal.Info = map[string]any{"name": name}
		}
		c.Set(principalContextKey, principal)
		return next(c)
	}
}

// currentPrincipal returns the request's principal, or nil when anonymous.
func currentPrincipal(c echo.Context) *broadcast.Principal {
	if p, ok := c.Get(principalContextKey).(*broadcast.Principal); ok {
		return p
	}
	return nil
}

package broadcast

import (
	"context"
	"strings"
	"sync"

	"github.com/pscheid92/fanout/internal/channel"
	"github.com/pscheid92/fanout/internal/metrics"
)

// Decision is an authorization outcome returned by an AuthFunc.
type Decision struct {
	Allowed bool
	Member  *Member
}

// Allow grants access. For presence channels the member identity defaults to
// the principal.
func Allow() Decision { return Decision{Allowed: true} }

// AllowMember grants access with an explicit presence member identity.
func AllowMember(m Member) Decision { return Decision{Allowed: true, Member: &m} }

// Deny refuses access.
func Deny() Decision { return Decision{} }

// AuthFunc decides whether a principal may subscribe to a channel matching a
// registered pattern. params holds the values bound to {param} segments.
// The principal is never nil: guarded channels deny unauthenticated requests
// before any AuthFunc runs.
type AuthFunc func(ctx context.Context, p *Principal, params map[string]string) (Decision, error)

type guardRoute struct {
	segments []string
	fn       AuthFunc
}

// Guard is the channel authorization registry. Patterns are matched against
// the bare channel name (no visibility prefix), split on dots; a segment of
// the form {name} binds the corresponding value.
//
//	guard.Channel("orders.{orderID}", func(ctx, p, params) (Decision, error) { ... })
type Guard struct {
	mu     sync.RWMutex
	routes []guardRoute
}

// NewGuard creates an empty authorization registry. With no registered
// patterns every guarded channel denies.
func NewGuard() *Guard {
	return &Guard{}
}

// Channel registers an authorization callback for channels matching pattern.
// First registered match wins.
func (g *Guard) Channel(pattern string, fn AuthFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, guardRoute{segments: strings.Split(pattern, "."), fn: fn})
}

// Authorize applies the channel's visibility policy:
//   - public channels always allow;
//   - guarded channels deny without a principal;
//   - otherwise the first matching pattern's callback decides, and no match
//     denies.
//
// Allowed presence results always carry a member; the principal's identity is
// the default when the callback does not name one.
func (g *Guard) Authorize(ctx context.Context, ch channel.Channel, p *Principal) (AuthResult, error) {
	res, err := g.authorize(ctx, ch, p)
	if err != nil {
		return res, err
	}
	if res.Allowed {
		metrics.AuthDecisionsTotal.WithLabelValues("allow").Inc()
	} else {
		metrics.AuthDecisionsTotal.WithLabelValues("deny").Inc()
	}
	return res, nil
}

func (g *Guard) authorize(ctx context.Context, ch channel.Channel, p *Principal) (AuthResult, error) {
	if !ch.Guarded() {
		return AuthResult{Allowed: true}, nil
	}
	if p == nil {
		return AuthResult{}, nil
	}

	route, params, found := g.match(ch.Name())
	if !found {
		return AuthResult{}, nil
	}

	decision, err := route.fn(ctx, p, params)
	if err != nil {
		return AuthResult{}, err
	}
	if !decision.Allowed {
		return AuthResult{}, nil
	}

	res := AuthResult{Allowed: true}
	if ch.Visibility() == channel.Presence {
		member := decision.Member
		if member == nil {
			member = &Member{ID: p.ID, Info: p.Info}
		}
		res.Member = member
	}
	return res, nil
}

func (g *Guard) match(name string) (guardRoute, map[string]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	segments := strings.Split(name, ".")
	for _, route := range g.routes {
		if params, ok := matchSegments(route.segments, segments); ok {
			return route, params, true
		}
	}
	return guardRoute{}, nil, false
}

func matchSegments(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			params[p[1:len(p)-1]] = segments[i]
			continue
		}
		if p != segments[i] {
			return nil, false
		}
	}
	return params, true
}

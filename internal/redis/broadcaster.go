package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pscheid92/fanout/internal/broadcast"
	"github.com/pscheid92/fanout/internal/channel"
	apperrors "github.com/pscheid92/fanout/internal/errors"
	"github.com/pscheid92/fanout/internal/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// message is the wire format published on each channel. Subscribers compare
// Socket against their own connection id to skip the sender's echo.
type message struct {
	Event  string         `json:"event"`
	Data   map[string]any `json:"data"`
	Socket string         `json:"socket,omitempty"`
}

// Broadcaster publishes events via Redis Pub/Sub, one PUBLISH per channel.
// Channels with zero subscribers are fine; PUBLISH just reports zero
// receivers. Publishing runs behind a circuit breaker so delivery workers fail
// fast while Redis is down instead of piling up on timeouts.
type Broadcaster struct {
	client *Client
	guard  *broadcast.Guard
	cb     *gobreaker.CircuitBreaker
}

var _ broadcast.Broadcaster = (*Broadcaster)(nil)

// NewBroadcaster creates a Pub/Sub backend authorizing against guard.
func NewBroadcaster(client *Client, guard *broadcast.Guard) *Broadcaster {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis",
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateToFloat(to))
		},
	})
	return &Broadcaster{client: client, guard: guard, cb: cb}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (b *Broadcaster) Broadcast(ctx context.Context, channels []channel.Channel, event string, payload map[string]any) error {
	data, socket := broadcast.SplitSocket(payload)

	raw, err := json.Marshal(message{Event: event, Data: data, Socket: socket})
	if err != nil {
		return apperrors.ValidationError("broadcast payload is not JSON-serializable").WithField("cause", err.Error())
	}

	for _, ch := range channels {
		_, err := b.cb.Execute(func() (any, error) {
			return nil, b.client.rdb.Publish(ctx, b.client.key(ch.WireName()), raw).Err()
		})
		if err != nil {
			metrics.BroadcastFailuresTotal.WithLabelValues("redis").Inc()
			return apperrors.ExternalError("redis publish failed", err).WithField("channel", ch.WireName())
		}
	}

	metrics.BroadcastsTotal.WithLabelValues("redis").Inc()
	return nil
}

func (b *Broadcaster) Auth(ctx context.Context, req broadcast.AuthRequest) (broadcast.AuthResult, error) {
	return b.guard.Authorize(ctx, req.Channel, req.Principal)
}

// Subscription is an active Pub/Sub subscription to a set of wire channels.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan Delivery
	cancel context.CancelFunc
}

// Delivery is one received broadcast, tagged with the wire channel it arrived
// on (prefix stripped).
type Delivery struct {
	Channel string
	Event   string
	Data    map[string]any
	Socket  string
}

// Close unsubscribes and closes the subscription.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// Subscribe listens on the given wire channels. Returns a Subscription whose
// channel receives deliveries until Close. Slow receivers drop messages rather
// than blocking the Pub/Sub reader.
func (b *Broadcaster) Subscribe(ctx context.Context, wireChannels ...string) *Subscription {
	prefixed := make([]string, len(wireChannels))
	for i, ch := range wireChannels {
		prefixed[i] = b.client.key(ch)
	}
	sub := b.client.rdb.Subscribe(ctx, prefixed...)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Delivery, 16)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var m message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					slog.Warn("Failed to unmarshal pubsub message", "error", err)
					continue
				}
				d := Delivery{
					Channel: b.stripPrefix(msg.Channel),
					Event:   m.Event,
					Data:    m.Data,
					Socket:  m.Socket,
				}
				select {
				case ch <- d:
				default:
					// Drop if receiver is slow
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{sub: sub, Ch: ch, cancel: cancel}
}

func (b *Broadcaster) stripPrefix(name string) string {
	return strings.TrimPrefix(name, b.client.prefix)
}

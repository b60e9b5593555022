package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fanout/internal/broadcast"
	apperrors "github.com/pscheid92/fanout/internal/errors"
)

const presenceKeyPrefix = "presence:"

// PresenceStore keeps presence-channel membership in a Redis hash per channel,
// field = member id, value = the member plus its last touch time. Stale
// members are pruned on every touch; the hash itself expires at twice the TTL
// so abandoned channels clean up on their own.
type PresenceStore struct {
	client *Client
	clock  clockwork.Clock
	ttl    time.Duration
}

var _ broadcast.PresenceStore = (*PresenceStore)(nil)

type presenceEntry struct {
	Member  broadcast.Member `json:"member"`
	Touched time.Time        `json:"touched"`
}

// NewPresenceStore creates a Redis-backed presence store. ttl bounds how long
// an untouched member stays in a channel.
func NewPresenceStore(client *Client, clock clockwork.Clock, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, clock: clock, ttl: ttl}
}

func (s *PresenceStore) Touch(ctx context.Context, ch string, member broadcast.Member) ([]broadcast.Member, error) {
	key := s.client.key(presenceKeyPrefix + ch)
	now := s.clock.Now()

	raw, err := json.Marshal(presenceEntry{Member: member, Touched: now})
	if err != nil {
		return nil, apperrors.InternalError("failed to marshal presence member", err)
	}
	if err := s.client.rdb.HSet(ctx, key, member.ID, raw).Err(); err != nil {
		return nil, apperrors.ExternalError("redis presence write failed", err).WithField("channel", ch)
	}

	fields, err := s.client.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, apperrors.ExternalError("redis presence read failed", err).WithField("channel", ch)
	}

	var stale []string
	members := make([]broadcast.Member, 0, len(fields))
	for id, value := range fields {
		var entry presenceEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			stale = append(stale, id)
			continue
		}
		if now.Sub(entry.Touched) > s.ttl {
			stale = append(stale, id)
			continue
		}
		members = append(members, entry.Member)
	}

	if len(stale) > 0 {
		if err := s.client.rdb.HDel(ctx, key, stale...).Err(); err != nil {
			return nil, apperrors.ExternalError("redis presence prune failed", err).WithField("channel", ch)
		}
	}
	if err := s.client.rdb.Expire(ctx, key, 2*s.ttl).Err(); err != nil {
		return nil, apperrors.ExternalError("redis presence expire failed", err).WithField("channel", ch)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

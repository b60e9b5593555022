package broadcast

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	apperrors "github.com/pscheid92/fanout/internal/errors"
)

// MemoryStore is the in-process EventStore and PresenceStore. It backs the
// poll driver in development and single-instance deployments, and doubles as
// the test twin of the Postgres store.
type MemoryStore struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	presenceTTL time.Duration
	nextID      int64
	events      []Record
	members     map[string]map[string]memoryMember
}

type memoryMember struct {
	member  Member
	touched time.Time
}

var (
	_ EventStore    = (*MemoryStore)(nil)
	_ PresenceStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates an in-process store. presenceTTL bounds how long an
// untouched member stays in a presence channel.
func NewMemoryStore(clock clockwork.Clock, presenceTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		clock:       clock,
		presenceTTL: presenceTTL,
		members:     make(map[string]map[string]memoryMember),
	}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = strconv.FormatInt(s.nextID, 10)
	rec.CreatedAt = s.clock.Now()
	s.events = append(s.events, rec)
	return rec, nil
}

func (s *MemoryStore) Since(_ context.Context, channels []string, cursor string) ([]Record, string, error) {
	after, err := ParseCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	wanted := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		wanted[ch] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	last := after
	for _, rec := range s.events {
		id, _ := strconv.ParseInt(rec.ID, 10, 64)
		if id <= after {
			continue
		}
		if _, ok := wanted[rec.Channel]; !ok {
			continue
		}
		out = append(out, rec)
		last = id
	}

	next := cursor
	if last > after {
		next = strconv.FormatInt(last, 10)
	}
	return out, next, nil
}

func (s *MemoryStore) Touch(_ context.Context, ch string, member Member) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	channelMembers, ok := s.members[ch]
	if !ok {
		channelMembers = make(map[string]memoryMember)
		s.members[ch] = channelMembers
	}

	for id, entry := range channelMembers {
		if now.Sub(entry.touched) > s.presenceTTL {
			delete(channelMembers, id)
		}
	}

	channelMembers[member.ID] = memoryMember{member: member, touched: now}

	out := make([]Member, 0, len(channelMembers))
	for _, entry := range channelMembers {
		out = append(out, entry.member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ParseCursor converts a poll cursor to its numeric form. Empty means "from
// the beginning". Stores share this so cursor errors are uniform.
func ParseCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || id < 0 {
		return 0, apperrors.ValidationError("invalid poll cursor").WithField("cursor", cursor)
	}
	return id, nil
}

package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/fanout/internal/broadcast"
	apperrors "github.com/pscheid92/fanout/internal/errors"
)

// EventStore persists broadcasts in broadcast_events. The bigserial id is the
// poll cursor: strictly increasing in commit order.
type EventStore struct {
	pool *pgxpool.Pool
}

var _ broadcast.EventStore = (*EventStore)(nil)

// NewEventStore creates a store over an existing pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func (s *EventStore) Append(ctx context.Context, rec broadcast.Record) (broadcast.Record, error) {
	var (
		id        int64
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO broadcast_events (channel, event, payload, socket_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at
	`, rec.Channel, rec.Event, rec.Payload, rec.Socket).Scan(&id, &createdAt)
	if err != nil {
		return broadcast.Record{}, apperrors.ExternalError("failed to append broadcast event", err).WithField("channel", rec.Channel)
	}

	rec.ID = strconv.FormatInt(id, 10)
	rec.CreatedAt = createdAt
	return rec, nil
}

func (s *EventStore) Since(ctx context.Context, channels []string, cursor string) ([]broadcast.Record, string, error) {
	after, err := broadcast.ParseCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, channel, event, payload, COALESCE(socket_id, ''), created_at
		FROM broadcast_events
		WHERE id > $1 AND channel = ANY($2)
		ORDER BY id
	`, after, channels)
	if err != nil {
		return nil, "", apperrors.ExternalError("failed to query broadcast events", err)
	}
	defer rows.Close()

	var out []broadcast.Record
	last := after
	for rows.Next() {
		var (
			id  int64
			rec broadcast.Record
		)
		if err := rows.Scan(&id, &rec.Channel, &rec.Event, &rec.Payload, &rec.Socket, &rec.CreatedAt); err != nil {
			return nil, "", apperrors.ExternalError("failed to scan broadcast event", err)
		}
		rec.ID = strconv.FormatInt(id, 10)
		out = append(out, rec)
		last = id
	}
	if err := rows.Err(); err != nil {
		return nil, "", apperrors.ExternalError("failed to read broadcast events", err)
	}

	next := cursor
	if last > after {
		next = strconv.FormatInt(last, 10)
	}
	return out, next, nil
}

// PruneOlderThan deletes events created before the retention cutoff and
// returns how many rows went away.
func (s *EventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM broadcast_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, apperrors.ExternalError("failed to prune broadcast events", err)
	}
	return tag.RowsAffected(), nil
}

// Package postgres implements the durable event store behind the poll
// backend. Events land in an append-only table whose bigserial id is the poll
// cursor, so commit order and poll order agree.
package postgres

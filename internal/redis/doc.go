// Package redis implements the Redis-backed broadcast components.
//
// Provides Broadcaster (cross-instance fan-out via Pub/Sub), Locker (TTL locks
// for unique broadcast deduplication), and PresenceStore (presence-channel
// membership in hashes). Publishing runs behind a circuit breaker so a failing
// Redis does not stall the delivery workers.
package redis

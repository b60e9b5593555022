// Package broadcast implements the channel-based event dispatch core: the
// Broadcaster contract its backends fulfil, the capability interfaces
// broadcastable events implement, the connection manager that resolves and
// memoizes backends, and the queued delivery job that carries a frozen event
// snapshot to the configured backend.
package broadcast

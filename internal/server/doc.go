// Package server exposes the dispatch HTTP surface: channel authorization,
// socket identity, event polling, and the emit API. Handlers resolve the
// acting principal from the cookie session and delegate every channel
// decision to the active broadcaster.
package server

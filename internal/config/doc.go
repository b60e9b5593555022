// Package config loads the service configuration from environment variables
// with fail-fast validation. Driver-specific settings are only required when
// the corresponding driver is active.
package config

// Package config loads and validates the server configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// HOMEAUTO_* environment variable overrides. Both homeautod and dispatchd
// read the same file so they agree on the database path, the executor
// socket, and the heartbeat timeout.
package config

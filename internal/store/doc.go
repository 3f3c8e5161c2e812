// Package store persists the controller's state: the device fleet, their
// pins, shared variables, input triggers and the audit log.
//
// Access is transactional. Callers obtain a Tx through Store.WithTx and use
// its typed accessors; the store serializes transactions so an evaluation
// pass observes one consistent state from its first read to its last write.
//
// Device aliveness is derived, not stored: a device is alive when its
// last_seen stamp is within the configured heartbeat timeout. Timestamps are
// stored as fixed-width RFC 3339 UTC strings so lexical comparison in SQL
// matches chronological order.
package store

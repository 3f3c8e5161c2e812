// Package database wraps database/sql over SQLite with the pragmas,
// connection limits, and embedded-migration support the rest of the
// server relies on.
//
// The State Store (internal/store) builds its transactional accessors on
// top of this package; both homeautod and dispatchd open the same database
// file and run Migrate at startup.
package database

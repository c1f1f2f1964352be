// Package sqlite persists sessions and turn logs in a single SQLite file
// through the pure-Go modernc.org/sqlite driver.
//
// Open creates the schema; the Store and the TurnLog share the returned handle.
package sqlite

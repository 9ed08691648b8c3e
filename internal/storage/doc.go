// Package storage defines the persistence interfaces for the match engine.
//
// The in-memory event stream ring buffer serves live consumers; the stores
// here keep the durable side: match records and the full append-only event
// journal, hash-chained for tamper evidence. Implementations (e.g. SQLite)
// live in subpackages.
//
// # Error Types
//
//   - ErrNotFound: indicates a requested record is missing.
package storage

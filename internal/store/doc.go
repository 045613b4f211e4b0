// Package store provides durable per-user session storage for ticketbot.
//
// # Architecture
//
// The Store interface captures the session lifecycle:
//
//   - GetOrCreate: load the session for a user, creating it at INITIAL
//   - Get: load without creating (dashboard reads)
//   - Save: upsert the full session record
//   - ListActive: snapshot of sessions active since a cutoff
//   - Delete: remove a session (end of conversation)
//
// Two implementations exist. SQLiteStore is the production store, a single
// sessions table keyed by user_id with JSON-encoded form data and history.
// MemoryStore backs tests and development; it deep-copies sessions at every
// boundary so callers never share mutable state with the store.
//
// # Concurrency
//
// The store itself is safe for concurrent use but does not serialize
// read-modify-write cycles. Callers that mutate sessions (the router) must
// hold a per-user lock across GetOrCreate, mutation and Save. Dashboard
// reads deliberately skip those locks and observe committed snapshots.
//
// # Session Model
//
// A Session carries the conversation state machine (State, SubStep), the
// partially collected form data, an opaque AI thread reference and a
// bounded conversation history. Timestamps are stored as RFC3339 text and
// LastActivityAt only moves forward.
package store
